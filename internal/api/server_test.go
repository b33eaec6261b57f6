package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchsentinel/internal/catalog"
	"launchsentinel/internal/config"
	"launchsentinel/internal/domain"
	"launchsentinel/internal/rpcpool"
)

func fakeBlockNumberServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": "0x1"})
	}))
}

type fakeSnapshotter struct {
	ctx domain.LifecycleContext
}

func (f *fakeSnapshotter) Snapshot() domain.LifecycleContext { return f.ctx }

func newTestServer(t *testing.T, catalogURL string) *Server {
	cfg := &config.Config{}
	cfg.API.Addr = ":0"
	cat := catalog.New(catalogURL)

	rpcServer := fakeBlockNumberServer(t)
	t.Cleanup(rpcServer.Close)
	pool, err := rpcpool.New([]string{rpcServer.URL}, testLogger())
	require.NoError(t, err)

	snap := &fakeSnapshotter{ctx: domain.LifecycleContext{Phase: domain.PhaseLaunchWindow}}
	return New(cfg, snap, cat, pool, testLogger())
}

func TestHandleStateReturnsCurrentPhase(t *testing.T) {
	s := newTestServer(t, "http://unused")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	s.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "LAUNCH_WINDOW", body["state"])
}

func TestIngestPopulatesTradesAndEventsRings(t *testing.T) {
	s := newTestServer(t, "http://unused")
	s.ingest(domain.Event{Kind: domain.EventWhaleTrade, Payload: domain.WhaleTrade{TxHash: "0xabc", Direction: domain.TradeBuy}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["trades"], 1)
	require.Len(t, s.events.snapshot(), 1)
}

func TestHandleHealthReportsRPCSnapshot(t *testing.T) {
	s := newTestServer(t, "http://unused")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	s.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body domain.RPCHealthSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Healthy)
}

func TestHandleUpcomingLaunchesProxiesCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}, "nextCursor": ""})
	}))
	defer server.Close()

	s := newTestServer(t, server.URL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/upcoming-launches", nil)
	s.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
