// Package taxtracker implements the Ledger Scanner (spec §4.4): exact
// accounting of net inflow into the fee-receiver address over [T0, now]
// by incrementally scanning the base token's transfer log.
package taxtracker

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"launchsentinel/internal/apperr"
	"launchsentinel/internal/domain"
	"launchsentinel/internal/evmabi"
	"launchsentinel/internal/rpcpool"
)

const (
	maxBlockRange  = 2000
	catchUpUpdates = 10
)

// Tracker owns the running TaxCounters for one tracked project.
type Tracker struct {
	pool     *rpcpool.Pool
	log      *logrus.Entry
	token    common.Address
	receiver common.Address

	counters domain.TaxCounters
}

// New builds a tracker for the given base token and fee-receiver address.
func New(pool *rpcpool.Pool, log *logrus.Entry, token, receiver common.Address) *Tracker {
	return &Tracker{pool: pool, log: log, token: token, receiver: receiver}
}

// Init implements spec §4.4 step 1: locate the block at T0, read the
// receiver's historical balance there (one retry, then "net-inflow only"
// fallback), and set the scan cursor to that block.
func (t *Tracker) Init(ctx context.Context, t0 time.Time, avgBlockTime time.Duration) error {
	blockStart, err := rpcpool.BlockForTime(ctx, t.pool, t0, avgBlockTime)
	if err != nil {
		return err
	}

	startBalance, err := t.readBalanceAt(ctx, blockStart)
	if err != nil {
		startBalance, err = t.readBalanceAt(ctx, blockStart)
		if err != nil {
			t.log.WithError(err).Warn("historical balance read failed twice, falling back to net-inflow only mode")
			startBalance = big.NewInt(0)
		}
	}

	t.counters = domain.TaxCounters{
		Inflow:             big.NewInt(0),
		Outflow:            big.NewInt(0),
		StartBalance:       startBalance,
		CurrentBalance:     new(big.Int).Set(startBalance),
		LastProcessedBlock: blockStart,
	}
	return nil
}

func (t *Tracker) readBalanceAt(ctx context.Context, block uint64) (*big.Int, error) {
	return rpcpool.Call(ctx, t.pool, func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return rpcpool.BalanceOf(ctx, c, t.token, t.receiver, new(big.Int).SetUint64(block))
	})
}

// Update implements spec §4.4 step 2: scan transfer logs in
// (lastProcessedBlock, min(latest, lastProcessedBlock+2000)], fold them
// into the running counters, and advance the cursor.
func (t *Tracker) Update(ctx context.Context) (domain.TaxCounters, error) {
	latest, err := rpcpool.Call(ctx, t.pool, func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
	if err != nil {
		return t.counters, err
	}

	from := t.counters.LastProcessedBlock + 1
	to := t.counters.LastProcessedBlock + maxBlockRange
	if to > latest {
		to = latest
	}
	if from > to {
		return t.counters, nil
	}

	logs, err := rpcpool.Call(ctx, t.pool, func(ctx context.Context, c *ethclient.Client) ([]types.Log, error) {
		return c.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{t.token},
			Topics:    [][]common.Hash{{evmabi.TransferTopic}},
		})
	})
	if err != nil {
		t.pool.RotateRequest()
		return t.counters, apperr.Rpc(t.pool.CurrentRequestEndpoint(), err)
	}

	inflowDelta, outflowDelta := big.NewInt(0), big.NewInt(0)
	for _, l := range logs {
		sender, recipient, value := evmabi.DecodeTransfer(l.Topics, l.Data)
		if recipient == t.receiver {
			inflowDelta.Add(inflowDelta, value)
		}
		if sender == t.receiver {
			outflowDelta.Add(outflowDelta, value)
		}
	}
	t.counters.Inflow.Add(t.counters.Inflow, inflowDelta)
	t.counters.Outflow.Add(t.counters.Outflow, outflowDelta)

	currentBalance, err := rpcpool.Call(ctx, t.pool, func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return rpcpool.BalanceOf(ctx, c, t.token, t.receiver, nil)
	})
	if err == nil {
		t.counters.CurrentBalance = currentBalance
	}

	t.counters.LastProcessedBlock = to
	return t.counters, nil
}

// CatchUp implements spec §4.4 step 3: while the cursor lags the chain tip
// by more than one block range, call Update repeatedly (capped at
// catchUpUpdates per tick) so long-lived scans converge quickly.
func (t *Tracker) CatchUp(ctx context.Context) error {
	for i := 0; i < catchUpUpdates; i++ {
		latest, err := rpcpool.Call(ctx, t.pool, func(ctx context.Context, c *ethclient.Client) (uint64, error) {
			return c.BlockNumber(ctx)
		})
		if err != nil {
			return err
		}
		if latest <= t.counters.LastProcessedBlock+maxBlockRange {
			return nil
		}
		if _, err := t.Update(ctx); err != nil {
			return err
		}
	}
	return nil
}

// GetTaxTotal returns the net inflow accumulated so far.
func (t *Tracker) GetTaxTotal() *big.Int {
	return t.counters.NetInflow()
}

// Counters returns a snapshot of the running counters.
func (t *Tracker) Counters() domain.TaxCounters {
	cp := t.counters
	cp.Inflow = new(big.Int).Set(t.counters.Inflow)
	cp.Outflow = new(big.Int).Set(t.counters.Outflow)
	cp.StartBalance = new(big.Int).Set(t.counters.StartBalance)
	cp.CurrentBalance = new(big.Int).Set(t.counters.CurrentBalance)
	return cp
}
