package rpcpool

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// BlockForTime estimates the block number whose timestamp is closest to
// target, first by an average-block-time projection from the latest
// block, then refined by binary search within ±500 blocks comparing
// block timestamps (spec §4.4 step 1).
func BlockForTime(ctx context.Context, p *Pool, target time.Time, avgBlockTime time.Duration) (uint64, error) {
	latestHeader, err := Call(ctx, p, func(ctx context.Context, c *ethclient.Client) (blockHeader, error) {
		return headerAt(ctx, c, nil)
	})
	if err != nil {
		return 0, err
	}

	elapsed := latestHeader.timestamp.Sub(target)
	var estimate int64
	if avgBlockTime > 0 {
		estimate = int64(elapsed / avgBlockTime)
	}
	guess := int64(latestHeader.number) - estimate
	if guess < 0 {
		guess = 0
	}

	low := guess - 500
	if low < 0 {
		low = 0
	}
	high := guess + 500
	if uint64(high) > latestHeader.number {
		high = int64(latestHeader.number)
	}

	return binarySearchBlock(ctx, p, uint64(low), uint64(high), target)
}

type blockHeader struct {
	number    uint64
	timestamp time.Time
}

func headerAt(ctx context.Context, c *ethclient.Client, number *big.Int) (blockHeader, error) {
	h, err := c.HeaderByNumber(ctx, number)
	if err != nil {
		return blockHeader{}, err
	}
	return blockHeader{number: h.Number.Uint64(), timestamp: time.Unix(int64(h.Time), 0).UTC()}, nil
}

// binarySearchBlock finds the highest block number in [low, high] whose
// timestamp is <= target, i.e. the last block at-or-before T0.
func binarySearchBlock(ctx context.Context, p *Pool, low, high uint64, target time.Time) (uint64, error) {
	result := low
	for low <= high {
		mid := low + (high-low)/2
		header, err := Call(ctx, p, func(ctx context.Context, c *ethclient.Client) (blockHeader, error) {
			return headerAt(ctx, c, new(big.Int).SetUint64(mid))
		})
		if err != nil {
			return 0, err
		}
		if !header.timestamp.After(target) {
			result = mid
			if mid == high {
				break
			}
			low = mid + 1
		} else {
			if mid == 0 {
				break
			}
			high = mid - 1
		}
	}
	return result, nil
}
