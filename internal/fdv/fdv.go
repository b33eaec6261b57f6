// Package fdv implements the FDV Calculator (spec §4.7): stateless
// fully-diluted-valuation helpers backed by a 10-second USD-quote cache.
package fdv

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"launchsentinel/internal/rpcpool"
)

const (
	quoteCacheTTL = 10 * time.Second
	quoteTimeout  = 5 * time.Second
)

var weiScale = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// Calculator computes curve-based FDV and caches the last USD quote.
type Calculator struct {
	pool      *rpcpool.Pool
	http      *http.Client
	quoteURL  string

	mu          sync.Mutex
	lastQuote   *big.Float
	lastFetched time.Time
}

// New builds a Calculator that reads quoteURL for a USD price quote.
func New(pool *rpcpool.Pool, quoteURL string) *Calculator {
	return &Calculator{
		pool:     pool,
		http:     &http.Client{Timeout: quoteTimeout},
		quoteURL: quoteURL,
	}
}

type quoteResponse struct {
	Price float64 `json:"price"`
}

// VirtualUSDPrice fetches a USD quote, caching it for 10s. On failure it
// returns the last cached value (possibly stale) or (nil, false) if none
// has ever been fetched.
func (c *Calculator) VirtualUSDPrice(ctx context.Context) (*big.Float, bool) {
	c.mu.Lock()
	if time.Since(c.lastFetched) < quoteCacheTTL && c.lastQuote != nil {
		q := c.lastQuote
		c.mu.Unlock()
		return q, true
	}
	c.mu.Unlock()

	quote, err := c.fetchQuote(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.lastQuote != nil {
			return c.lastQuote, true
		}
		return nil, false
	}
	c.lastQuote = quote
	c.lastFetched = time.Now()
	return quote, true
}

func (c *Calculator) fetchQuote(ctx context.Context) (*big.Float, error) {
	cctx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, c.quoteURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}
	var q quoteResponse
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, err
	}
	return big.NewFloat(q.Price), nil
}

// TokenFromCurve discovers the project token behind a bonding curve: tries
// token() first, falling back to agentToken() (spec §4.7).
func (c *Calculator) TokenFromCurve(ctx context.Context, curve common.Address) (common.Address, error) {
	return rpcpool.Call(ctx, c.pool, func(ctx context.Context, cl *ethclient.Client) (common.Address, error) {
		return rpcpool.CurveToken(ctx, cl, curve)
	})
}

// Result is the outcome of a curve FDV computation.
type Result struct {
	FDVVirtual *big.Float // price * supply / 1e18, in base-token display units
	FDVUSD     *big.Float // nil if no USD quote was available
	Estimate   bool
}

// ComputeCurveFDV implements spec §4.7: reads price (getTokenPrice then
// getPrice) and total supply, computes fdvInVirtual, and multiplies by the
// cached USD quote when available. tokenHint may be the zero address, in
// which case the token is discovered via TokenFromCurve.
func (c *Calculator) ComputeCurveFDV(ctx context.Context, curve common.Address, tokenHint common.Address) (Result, error) {
	token := tokenHint
	if token == (common.Address{}) {
		discovered, err := c.TokenFromCurve(ctx, curve)
		if err != nil {
			return Result{}, err
		}
		token = discovered
	}

	price, err := rpcpool.Call(ctx, c.pool, func(ctx context.Context, cl *ethclient.Client) (*big.Int, error) {
		return rpcpool.CurvePrice(ctx, cl, curve)
	})
	if err != nil {
		return Result{}, err
	}

	supply, err := rpcpool.Call(ctx, c.pool, func(ctx context.Context, cl *ethclient.Client) (*big.Int, error) {
		return rpcpool.TotalSupply(ctx, cl, token)
	})
	if err != nil {
		return Result{}, err
	}

	fdvVirtual := new(big.Float).Quo(
		new(big.Float).Mul(new(big.Float).SetInt(price), new(big.Float).SetInt(supply)),
		weiScale,
	)

	result := Result{FDVVirtual: fdvVirtual}
	if usd, ok := c.VirtualUSDPrice(ctx); ok {
		result.FDVUSD = new(big.Float).Mul(fdvVirtual, usd)
	}
	return result, nil
}
