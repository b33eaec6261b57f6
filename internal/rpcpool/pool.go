// Package rpcpool multiplexes a pool of HTTP JSON-RPC endpoints with a
// rotate-on-failure retry discipline (spec §4.1). The generic Call helper
// is reused by every monitor and tracker that needs "try the current
// endpoint, rotate and retry on failure, give up after one full lap".
package rpcpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"launchsentinel/internal/apperr"
)

const (
	baseRetryDelay  = 500 * time.Millisecond
	maxRetryDelay   = 5 * time.Second
	retryBackoffMul = 2.0
	selectTimeout   = 5 * time.Second
)

// Pool owns an ordered list of HTTP endpoints and hands out lazily-dialed
// *ethclient.Client handles. Shared resources rule (spec §5): no caller
// may hold a contract binding across a rotation, so Pool only ever returns
// the client for the *current* endpoint; callers rebind on every call.
type Pool struct {
	log *logrus.Entry

	mu        sync.RWMutex
	endpoints []string
	clients   []*ethclient.Client // lazily dialed, same index as endpoints
	active    int

	pushConnected bool
	lastLatencyMS int64
}

// New builds a pool over the given ordered HTTP endpoints. Dialing is
// lazy: no network call happens until Current or Call is invoked.
func New(endpoints []string, log *logrus.Entry) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, apperr.Config(fmt.Errorf("rpcpool: at least one HTTP endpoint is required"))
	}
	return &Pool{
		log:       log,
		endpoints: endpoints,
		clients:   make([]*ethclient.Client, len(endpoints)),
	}, nil
}

// Current returns the currently active endpoint's client, dialing it if
// this is the first use since the pool started or since the last rotation
// landed on this index.
func (p *Pool) Current(ctx context.Context) (*ethclient.Client, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked(ctx)
}

func (p *Pool) currentLocked(ctx context.Context) (*ethclient.Client, string, error) {
	idx := p.active
	endpoint := p.endpoints[idx]
	if p.clients[idx] == nil {
		c, err := ethclient.DialContext(ctx, endpoint)
		if err != nil {
			return nil, endpoint, apperr.Rpc(endpoint, err)
		}
		p.clients[idx] = c
	}
	return p.clients[idx], endpoint, nil
}

// CurrentRequestEndpoint returns the active endpoint's URL without dialing.
func (p *Pool) CurrentRequestEndpoint() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endpoints[p.active]
}

// RotateRequest advances the active index modulo the list length.
func (p *Pool) RotateRequest() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = (p.active + 1) % len(p.endpoints)
}

// Call executes op against the pool under the retry discipline of spec
// §4.1: max_attempts equals the endpoint list length, each retry rotates
// to the next endpoint, base delay 500ms doubling to a 5s cap. The fatal
// error is only returned once every endpoint has been tried once.
func Call[T any](ctx context.Context, p *Pool, op func(ctx context.Context, c *ethclient.Client) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := baseRetryDelay

	for attempt := 0; attempt < len(p.endpoints); attempt++ {
		p.mu.Lock()
		client, endpoint, err := p.currentLocked(ctx)
		p.mu.Unlock()
		if err == nil {
			start := time.Now()
			result, opErr := op(ctx, client)
			if opErr == nil {
				p.mu.Lock()
				p.lastLatencyMS = time.Since(start).Milliseconds()
				p.mu.Unlock()
				return result, nil
			}
			err = opErr
			p.log.WithError(err).WithField("endpoint", endpoint).Warn("rpc call failed")
		}
		lastErr = apperr.Rpc(endpoint, err)

		if attempt == len(p.endpoints)-1 {
			break
		}
		p.RotateRequest()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * retryBackoffMul)
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
	return zero, lastErr
}

// SelectFastest races getBlockHeight (BlockNumber) across every endpoint
// with a per-endpoint timeout and makes the lowest-latency endpoint active.
func (p *Pool) SelectFastest(ctx context.Context) error {
	type result struct {
		idx     int
		latency time.Duration
		err     error
	}

	p.mu.RLock()
	n := len(p.endpoints)
	endpoints := append([]string(nil), p.endpoints...)
	p.mu.RUnlock()

	results := make(chan result, n)
	for i, endpoint := range endpoints {
		go func(idx int, endpoint string) {
			cctx, cancel := context.WithTimeout(ctx, selectTimeout)
			defer cancel()
			c, err := ethclient.DialContext(cctx, endpoint)
			if err != nil {
				results <- result{idx: idx, err: err}
				return
			}
			start := time.Now()
			_, err = c.BlockNumber(cctx)
			results <- result{idx: idx, latency: time.Since(start), err: err}
		}(i, endpoint)
	}

	best := -1
	var bestLatency time.Duration
	for i := 0; i < n; i++ {
		r := <-results
		if r.err != nil {
			continue
		}
		if best == -1 || r.latency < bestLatency {
			best = r.idx
			bestLatency = r.latency
		}
	}
	if best == -1 {
		return apperr.Generic(fmt.Errorf("rpcpool: no endpoint responded to select_fastest"))
	}

	p.mu.Lock()
	p.active = best
	p.lastLatencyMS = bestLatency.Milliseconds()
	p.mu.Unlock()
	return nil
}

// SetPushConnected records the Resilient Push Client's current connection
// state for inclusion in HealthSnapshot.
func (p *Pool) SetPushConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushConnected = connected
}

// HealthSnapshot measures a single-call latency on the current endpoint
// and reports it alongside the most recent push connection flag.
// pushEndpoint is accepted from the caller but is not used in the result.
func (p *Pool) HealthSnapshot(ctx context.Context, pushEndpoint string) (healthy bool, latencyMS int64, pushConnected bool) {
	start := time.Now()
	_, err := Call(ctx, p, func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
	latency := time.Since(start).Milliseconds()

	p.mu.RLock()
	defer p.mu.RUnlock()
	return err == nil, latency, p.pushConnected
}

// Shutdown tears down every dialed client.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clients {
		if c != nil {
			c.Close()
		}
	}
}
