// Package whaledetector implements the Swap Detector (spec §4.6): watches
// either a UniswapV2-style pair's Swap event or the base token's Transfer
// event to or from a bonding-curve pool for trades crossing a configured
// threshold, deduplicated by transaction hash.
package whaledetector

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"launchsentinel/internal/domain"
	"launchsentinel/internal/evmabi"
	"launchsentinel/internal/pushclient"
	"launchsentinel/internal/rpcpool"
)

const dedupCapacity = 1000

// Detector watches one pool for whale trades in either AMM-v2 or curve
// mode, emitting domain.WhaleTrade values on Trades.
type Detector struct {
	pool      *rpcpool.Pool
	push      *pushclient.Client
	log       *logrus.Entry
	poolAddr  common.Address
	baseToken common.Address
	threshold *big.Int
	poolType  domain.PoolType

	baseIsToken0 bool
	dedup        *txHashLRU

	Trades chan domain.WhaleTrade
}

// New builds a detector. For AMM-v2 mode, token0/token1 detection happens
// lazily on Start via PairToken0; for curve mode it is unused.
func New(pool *rpcpool.Pool, push *pushclient.Client, log *logrus.Entry, poolAddr, baseToken common.Address, threshold *big.Int, poolType domain.PoolType) *Detector {
	return &Detector{
		pool:      pool,
		push:      push,
		log:       log,
		poolAddr:  poolAddr,
		baseToken: baseToken,
		threshold: threshold,
		poolType:  poolType,
		dedup:     newTxHashLRU(dedupCapacity),
		Trades:    make(chan domain.WhaleTrade, 256),
	}
}

// Start reads token0 (AMM-v2 mode only) and subscribes to the relevant
// event, dispatching decoded trades until ctx is cancelled.
func (d *Detector) Start(ctx context.Context) error {
	switch d.poolType {
	case domain.PoolTypeAMMV2:
		return d.startAMMV2(ctx)
	case domain.PoolTypeCurve:
		return d.startCurve(ctx)
	default:
		return nil
	}
}

func (d *Detector) startAMMV2(ctx context.Context) error {
	token0, err := rpcpool.Call(ctx, d.pool, func(ctx context.Context, c *ethclient.Client) (common.Address, error) {
		return rpcpool.PairToken0(ctx, c, d.poolAddr)
	})
	if err != nil {
		return err
	}
	d.baseIsToken0 = token0 == d.baseToken

	logs, err := d.push.SubscribeLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{d.poolAddr},
		Topics:    [][]common.Hash{{evmabi.SwapTopic}},
	})
	if err != nil {
		return err
	}

	go d.consumeAMMV2(ctx, logs)
	return nil
}

func (d *Detector) consumeAMMV2(ctx context.Context, logs <-chan types.Log) {
	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-logs:
			if !ok {
				return
			}
			d.handleSwapLog(l)
		}
	}
}

func (d *Detector) handleSwapLog(l types.Log) {
	hash := l.TxHash.Hex()
	if d.dedup.SeenOrAdd(hash) {
		return
	}

	amounts, err := evmabi.DecodeSwap(l.Data)
	if err != nil {
		d.log.WithError(err).Warn("failed to decode swap log")
		return
	}
	if len(l.Topics) < 2 {
		return
	}
	sender := common.BytesToAddress(l.Topics[1].Bytes())

	var baseDelta, tokenDelta *big.Int
	if d.baseIsToken0 {
		baseDelta = new(big.Int).Sub(amounts.Amount0In, amounts.Amount0Out)
		tokenDelta = new(big.Int).Sub(amounts.Amount1In, amounts.Amount1Out)
	} else {
		baseDelta = new(big.Int).Sub(amounts.Amount1In, amounts.Amount1Out)
		tokenDelta = new(big.Int).Sub(amounts.Amount0In, amounts.Amount0Out)
	}

	absBase := new(big.Int).Abs(baseDelta)
	if absBase.Cmp(d.threshold) < 0 {
		return
	}

	direction := domain.TradeSell
	if baseDelta.Sign() > 0 {
		direction = domain.TradeBuy
	}

	d.emit(domain.WhaleTrade{
		Direction:     direction,
		AmountVirtual: absBase,
		AmountToken:   new(big.Int).Abs(tokenDelta),
		Trader:        sender.Hex(),
		TxHash:        hash,
		BlockNumber:   l.BlockNumber,
		Timestamp:     time.Now(),
	})
}

func (d *Detector) startCurve(ctx context.Context) error {
	logs, err := d.push.SubscribeLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{d.baseToken},
		Topics:    [][]common.Hash{{evmabi.TransferTopic}},
	})
	if err != nil {
		return err
	}
	go d.consumeCurve(ctx, logs)
	return nil
}

func (d *Detector) consumeCurve(ctx context.Context, logs <-chan types.Log) {
	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-logs:
			if !ok {
				return
			}
			d.handleTransferLog(l)
		}
	}
}

func (d *Detector) handleTransferLog(l types.Log) {
	hash := l.TxHash.Hex()
	if d.dedup.SeenOrAdd(hash) {
		return
	}

	from, to, value := evmabi.DecodeTransfer(l.Topics, l.Data)
	if value.Cmp(d.threshold) < 0 {
		return
	}

	var direction domain.TradeDirection
	var trader common.Address
	switch {
	case to == d.poolAddr:
		direction = domain.TradeBuy
		trader = from
	case from == d.poolAddr:
		direction = domain.TradeSell
		trader = to
	default:
		return
	}

	d.emit(domain.WhaleTrade{
		Direction:     direction,
		AmountVirtual: value,
		AmountToken:   big.NewInt(0),
		Trader:        trader.Hex(),
		TxHash:        hash,
		BlockNumber:   l.BlockNumber,
		Timestamp:     time.Now(),
	})
}

func (d *Detector) emit(trade domain.WhaleTrade) {
	select {
	case d.Trades <- trade:
	default:
		d.log.Warn("whale trade channel full, dropping trade")
	}
}
