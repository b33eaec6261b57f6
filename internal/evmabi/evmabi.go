// Package evmabi holds the hand-encoded ABI fragments the monitoring core
// needs: ERC-20 Transfer/balanceOf/totalSupply, the UniswapV2 pair's Swap
// event and token0() getter, and the bonding-curve contract's price/token
// accessors. No abigen step runs in this build, so calls are packed and
// unpacked directly with go-ethereum's accounts/abi package rather than
// through generated bindings.
package evmabi

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Well-known topic0 hashes for the log signatures this system filters on,
// computed at init time rather than hardcoded to avoid transcription
// errors.
var (
	TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	SwapTopic     = crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ERC20 exposes the subset of the ERC-20 interface this system calls:
// balanceOf and totalSupply (both read-only eth_call targets).
var ERC20 = mustABI(`[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`)

// Pair exposes the UniswapV2 pair accessor this system needs to decide
// whether the base token is token0 or token1.
var Pair = mustABI(`[
	{"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"type":"function"}
]`)

// Curve exposes the bonding-curve contract's price/token accessors. Not
// every curve implementation exposes every method; callers try each in
// sequence and use the first that succeeds (spec §4.7).
var Curve = mustABI(`[
	{"constant":true,"inputs":[],"name":"token","outputs":[{"name":"","type":"address"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"agentToken","outputs":[{"name":"","type":"address"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"getTokenPrice","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"getPrice","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`)

// PackCall packs a zero-argument (or simple-argument) call for the given
// ABI/method.
func PackCall(a abi.ABI, method string, args ...interface{}) ([]byte, error) {
	return a.Pack(method, args...)
}

// UnpackAddress unpacks a single address return value.
func UnpackAddress(a abi.ABI, method string, data []byte) (common.Address, error) {
	out, err := a.Unpack(method, data)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) == 0 {
		return common.Address{}, nil
	}
	return out[0].(common.Address), nil
}

// UnpackUint256 unpacks a single uint256 return value.
func UnpackUint256(a abi.ABI, method string, data []byte) (*big.Int, error) {
	out, err := a.Unpack(method, data)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return big.NewInt(0), nil
	}
	return out[0].(*big.Int), nil
}

// DecodeTransfer decodes an ERC-20 Transfer log: from/to come from the
// indexed topics, value from the data word.
func DecodeTransfer(topics []common.Hash, data []byte) (from, to common.Address, value *big.Int) {
	if len(topics) >= 3 {
		from = common.BytesToAddress(topics[1].Bytes())
		to = common.BytesToAddress(topics[2].Bytes())
	}
	value = new(big.Int).SetBytes(data)
	return
}

// SwapAmounts is the UniswapV2 Swap event's non-indexed data payload:
// amount0In, amount1In, amount0Out, amount1Out, in that order.
type SwapAmounts struct {
	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int
}

var swapDataArgs = abi.Arguments{
	{Type: mustType("uint256")},
	{Type: mustType("uint256")},
	{Type: mustType("uint256")},
	{Type: mustType("uint256")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// DecodeSwap unpacks the non-indexed fields of a UniswapV2 Swap event.
func DecodeSwap(data []byte) (SwapAmounts, error) {
	vals, err := swapDataArgs.Unpack(data)
	if err != nil {
		return SwapAmounts{}, err
	}
	return SwapAmounts{
		Amount0In:  vals[0].(*big.Int),
		Amount1In:  vals[1].(*big.Int),
		Amount0Out: vals[2].(*big.Int),
		Amount1Out: vals[3].(*big.Int),
	}, nil
}
