package pushclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscribeServer is a minimal eth_subscribe/eth_unsubscribe JSON-RPC
// WebSocket server. It accepts one connection at a time and, after
// dropAfter connections, keeps the next one alive so reconnect tests can
// observe recovery.
type fakeSubscribeServer struct {
	server      *httptest.Server
	dropAfter   int32
	connections int32
	upgrader    websocket.Upgrader
}

func newFakeSubscribeServer(t *testing.T, dropAfter int32) *fakeSubscribeServer {
	t.Helper()
	f := &fakeSubscribeServer{dropAfter: dropAfter}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeSubscribeServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connNum := atomic.AddInt32(&f.connections, 1)

	for {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params []interface{}   `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		switch req.Method {
		case "eth_subscribe":
			_ = conn.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  "0xsub1",
			})
			if connNum <= f.dropAfter {
				conn.Close()
				return
			}
			go func() {
				time.Sleep(20 * time.Millisecond)
				_ = conn.WriteJSON(map[string]interface{}{
					"jsonrpc": "2.0",
					"method":  "eth_subscription",
					"params": map[string]interface{}{
						"subscription": "0xsub1",
						"result": map[string]interface{}{
							"address":          "0x0000000000000000000000000000000000000001",
							"topics":           []string{},
							"data":             "0x",
							"blockNumber":      "0x1",
							"transactionHash":  "0x0000000000000000000000000000000000000000000000000000000000000001",
							"transactionIndex": "0x0",
							"blockHash":        "0x0000000000000000000000000000000000000000000000000000000000000002",
							"logIndex":         "0x0",
							"removed":          false,
						},
					},
				})
			}()
		case "eth_unsubscribe":
			_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": true})
		}
	}
}

func (f *fakeSubscribeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeSubscribeServer) Close() { f.server.Close() }

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestSubscribeLogsDeliversNotification(t *testing.T) {
	fake := newFakeSubscribeServer(t, 0)
	defer fake.Close()

	c := New(fake.wsURL(), testLogger())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logs, err := c.SubscribeLogs(ctx, ethereum.FilterQuery{Addresses: []common.Address{{}}})
	require.NoError(t, err)

	select {
	case l := <-logs:
		assert.Equal(t, uint64(1), l.BlockNumber)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for log notification")
	}
	assert.True(t, c.Connected())
}

func TestReconnectResubscribesAfterDrop(t *testing.T) {
	fake := newFakeSubscribeServer(t, 1)
	defer fake.Close()

	c := New(fake.wsURL(), testLogger())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logs, err := c.SubscribeLogs(ctx, ethereum.FilterQuery{Addresses: []common.Address{{}}})
	require.NoError(t, err)

	select {
	case <-logs:
		t.Fatal("should not receive a notification from the dropped connection")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case l := <-logs:
		assert.Equal(t, uint64(1), l.BlockNumber)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for post-reconnect notification")
	}
}
