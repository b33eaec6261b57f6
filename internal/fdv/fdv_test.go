package fdv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualUSDPriceCachesAcrossCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(quoteResponse{Price: 2.5})
	}))
	defer server.Close()

	c := New(nil, server.URL)
	q1, ok := c.VirtualUSDPrice(context.Background())
	require.True(t, ok)
	q2, ok := c.VirtualUSDPrice(context.Background())
	require.True(t, ok)

	assert.Equal(t, q1.String(), q2.String())
	assert.Equal(t, int32(1), calls.Load(), "second call should be served from the 10s cache")
}

func TestVirtualUSDPriceFallsBackToStaleOnFailure(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(quoteResponse{Price: 3.0})
	}))
	defer server.Close()

	c := New(nil, server.URL)
	_, ok := c.VirtualUSDPrice(context.Background())
	require.True(t, ok)

	c.lastFetched = c.lastFetched.Add(-quoteCacheTTL * 2)
	fail.Store(true)
	q, ok := c.VirtualUSDPrice(context.Background())
	require.True(t, ok)
	assert.Equal(t, "3", q.String())
}

func TestVirtualUSDPriceNoneWhenNeverFetched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(nil, server.URL)
	_, ok := c.VirtualUSDPrice(context.Background())
	assert.False(t, ok)
}
