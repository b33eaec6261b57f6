package rpcpool

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"launchsentinel/internal/evmabi"
)

// call performs a read-only eth_call against contract for method, decoding
// a single return value with decode. blockNumber may be nil for "latest".
func call[T any](ctx context.Context, c *ethclient.Client, contract common.Address, a abi.ABI, method string, blockNumber *big.Int, decode func(abi.ABI, string, []byte) (T, error), args ...interface{}) (T, error) {
	var zero T
	data, err := evmabi.PackCall(a, method, args...)
	if err != nil {
		return zero, err
	}
	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, blockNumber)
	if err != nil {
		return zero, err
	}
	return decode(a, method, out)
}

// BalanceOf reads the ERC-20 balance of account, optionally at a
// historical block (nil for latest).
func BalanceOf(ctx context.Context, c *ethclient.Client, token, account common.Address, block *big.Int) (*big.Int, error) {
	return call(ctx, c, token, evmabi.ERC20, "balanceOf", block, evmabi.UnpackUint256, account)
}

// TotalSupply reads the ERC-20 total supply at the latest block.
func TotalSupply(ctx context.Context, c *ethclient.Client, token common.Address) (*big.Int, error) {
	return call(ctx, c, token, evmabi.ERC20, "totalSupply", nil, evmabi.UnpackUint256)
}

// PairToken0 reads a UniswapV2-style pair's token0() getter.
func PairToken0(ctx context.Context, c *ethclient.Client, pair common.Address) (common.Address, error) {
	return call(ctx, c, pair, evmabi.Pair, "token0", nil, evmabi.UnpackAddress)
}

// CurveToken tries token() then agentToken(), returning the first
// non-zero address (spec §4.7).
func CurveToken(ctx context.Context, c *ethclient.Client, curve common.Address) (common.Address, error) {
	if addr, err := call(ctx, c, curve, evmabi.Curve, "token", nil, evmabi.UnpackAddress); err == nil && addr != (common.Address{}) {
		return addr, nil
	}
	return call(ctx, c, curve, evmabi.Curve, "agentToken", nil, evmabi.UnpackAddress)
}

// CurvePrice tries getTokenPrice() then getPrice() (spec §4.7).
func CurvePrice(ctx context.Context, c *ethclient.Client, curve common.Address) (*big.Int, error) {
	if price, err := call(ctx, c, curve, evmabi.Curve, "getTokenPrice", nil, evmabi.UnpackUint256); err == nil {
		return price, nil
	}
	return call(ctx, c, curve, evmabi.Curve, "getPrice", nil, evmabi.UnpackUint256)
}
