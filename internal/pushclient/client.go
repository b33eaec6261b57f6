// Package pushclient maintains a single logical long-lived subscription
// connection to a chain push endpoint (spec §4.2). It wraps go-ethereum's
// rpc.Client/EthSubscribe machinery with the teacher's reconnect-and-replay
// discipline: exponential backoff on disconnect, reset to the base delay on
// a successful reconnect, and replay of only the *live* subscriptions that
// survived the drop — never a historical replay, which is the ledger
// scanner's job via block-range scans.
package pushclient

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"launchsentinel/internal/apperr"
)

const (
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 60 * time.Second
)

// registration is one live log subscription: the filter query that
// produced it, the channel handed back to the caller, and the current
// upstream subscription handle (replaced on every reconnect).
type registration struct {
	query ethereum.FilterQuery
	out   chan types.Log
	sub   ethereum.Subscription
}

// Client is a single resilient push connection. All registered
// subscriptions share the one underlying websocket/ipc connection.
type Client struct {
	endpoint string
	log      *logrus.Entry

	mu        sync.Mutex
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	regs      map[uint64]*registration
	nextID    uint64

	connected    atomic.Bool
	closed       atomic.Bool
	reconnecting atomic.Bool
	done         chan struct{}
	wg           sync.WaitGroup
}

// New builds a push client bound to endpoint without dialing it. Connect
// dials eagerly; SubscribeLogs dials on its own if no connection is live.
func New(endpoint string, log *logrus.Entry) *Client {
	return &Client{
		endpoint: endpoint,
		log:      log,
		regs:     make(map[uint64]*registration),
		done:     make(chan struct{}),
	}
}

// Connect dials the push endpoint. Calling Connect on an already-connected
// client is a no-op, making it safe to call idempotently from startup code.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.connected.Load() {
		return nil
	}
	rc, err := rpc.DialContext(ctx, c.endpoint)
	if err != nil {
		return apperr.Rpc(c.endpoint, fmt.Errorf("push dial: %w", err))
	}
	c.rpcClient = rc
	c.ethClient = ethclient.NewClient(rc)
	c.connected.Store(true)
	return nil
}

// Connected reports whether the underlying connection is currently live.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// SubscribeLogs registers a live filter-log subscription and returns a
// channel of matching logs. The subscription survives reconnects: on
// disconnect the client redials and reissues this exact query, delivering
// new logs on the same channel without replaying history.
func (c *Client) SubscribeLogs(ctx context.Context, query ethereum.FilterQuery) (<-chan types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, apperr.Generic(fmt.Errorf("pushclient: closed"))
	}
	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	out := make(chan types.Log, 256)
	sub, err := c.ethClient.SubscribeFilterLogs(ctx, query, out)
	if err != nil {
		return nil, apperr.Rpc(c.endpoint, fmt.Errorf("subscribe logs: %w", err))
	}

	id := c.nextID
	c.nextID++
	reg := &registration{query: query, out: out, sub: sub}
	c.regs[id] = reg

	c.wg.Add(1)
	go c.watch(id, reg)

	return out, nil
}

// watch observes one subscription's error channel. A non-nil error means
// the upstream connection dropped; it triggers a full reconnect-and-replay
// cycle for every live registration, not just this one.
func (c *Client) watch(id uint64, reg *registration) {
	defer c.wg.Done()
	select {
	case err := <-reg.sub.Err():
		if c.closed.Load() {
			return
		}
		if err != nil {
			c.log.WithError(err).Warn("push subscription dropped, reconnecting")
		}
		c.reconnectAll()
	case <-c.done:
		return
	}
}

// reconnectAll redials the endpoint and reissues every subscription that
// was live at the moment of the drop, with exponential backoff between
// attempts. Backoff resets to the base delay as soon as a reconnect
// succeeds (spec §4.2).
func (c *Client) reconnectAll() {
	if c.reconnecting.Swap(true) {
		return
	}
	defer c.reconnecting.Store(false)

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.connected.Store(false)
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
	c.mu.Unlock()

	delay := baseReconnectDelay
	for {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.redialAndResubscribe(ctx)
		cancel()
		if err == nil {
			return
		}

		c.log.WithError(err).Warn("push reconnect attempt failed")
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (c *Client) redialAndResubscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	for id, reg := range c.regs {
		sub, err := c.ethClient.SubscribeFilterLogs(ctx, reg.query, reg.out)
		if err != nil {
			c.connected.Store(false)
			return fmt.Errorf("resubscribe %d: %w", id, err)
		}
		reg.sub = sub
		c.wg.Add(1)
		go c.watch(id, reg)
	}
	return nil
}

// Close tears down the connection and stops all reconnect attempts.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.done)

	c.mu.Lock()
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
	for _, reg := range c.regs {
		reg.sub.Unsubscribe()
	}
	c.mu.Unlock()

	c.wg.Wait()
}
