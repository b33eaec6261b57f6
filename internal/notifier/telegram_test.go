package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchsentinel/internal/domain"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestNotifyProjectStartSendsMessage(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New("test-token", "12345", testLogger())
	c.http = server.Client()
	c.apiBase = server.URL

	c.NotifyProjectStart(context.Background(), &domain.ProjectDescriptor{Name: "Test Project", Symbol: "TST"})
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotifyHealthSkipsSendWhenHealthy(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New("test-token", "12345", testLogger())
	c.http = server.Client()
	c.apiBase = server.URL

	c.NotifyHealth(context.Background(), true, 50, true)
	assert.Equal(t, int32(0), calls.Load(), "healthy ping should not hit the API")
}

func TestNoBotTokenIsNoOp(t *testing.T) {
	c := New("", "", testLogger())
	require.NotPanics(t, func() {
		c.NotifyProjectComplete(context.Background(), &domain.ProjectDescriptor{Name: "X", Symbol: "X"})
	})
}

func TestSendRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New("test-token", "12345", testLogger())
	c.http = server.Client()
	c.apiBase = server.URL

	c.send(context.Background(), "hi")
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}
