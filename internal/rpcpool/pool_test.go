package rpcpool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockNumberServer(t *testing.T, block uint64, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0x" + itoHex(block),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func itoHex(n uint64) string {
	const hexDigits = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{hexDigits[n%16]}, buf...)
		n /= 16
	}
	return string(buf)
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestCallRotatesOnFailureAndRecovers(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	healthy := blockNumberServer(t, 42, nil)
	defer healthy.Close()

	pool, err := New([]string{failing.URL, healthy.URL}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := Call(ctx, pool, func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), result)
	assert.Equal(t, healthy.URL, pool.CurrentRequestEndpoint())
}

func TestCallExhaustsAllEndpointsBeforeFailing(t *testing.T) {
	failingA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failingA.Close()
	failingB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failingB.Close()

	pool, err := New([]string{failingA.URL, failingB.URL}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = Call(ctx, pool, func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
	require.Error(t, err)
}

func TestSelectFastestPicksLowerLatencyEndpoint(t *testing.T) {
	fast := blockNumberServer(t, 100, nil)
	defer fast.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": "0x64"}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer slow.Close()

	pool, err := New([]string{slow.URL, fast.URL}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.SelectFastest(ctx))
	assert.Equal(t, fast.URL, pool.CurrentRequestEndpoint())
}

func TestRotateRequestWrapsAroundList(t *testing.T) {
	pool, err := New([]string{"http://a", "http://b"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "http://a", pool.CurrentRequestEndpoint())
	pool.RotateRequest()
	assert.Equal(t, "http://b", pool.CurrentRequestEndpoint())
	pool.RotateRequest()
	assert.Equal(t, "http://a", pool.CurrentRequestEndpoint())
}
