package catalog

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

func TestByIDReturnsNilOnNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New(server.URL)
	got, err := c.ByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestByIDDecodesProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/7", r.URL.Path)
		_ = json.NewEncoder(w).Encode(rawProject{
			ID: 7, Name: "Foo", Symbol: "FOO", Factory: "bonding_curve_v2",
			Status: "undergrad", PreTokenPair: "0xabc", CreatedAt: 1700000000000,
		})
	}))
	defer server.Close()

	c := New(server.URL)
	got, err := c.ByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "FOO", got.Symbol)
}

func TestGetRetriesOnServerErrorThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(rawProject{ID: 1, Symbol: "OK"})
	}))
	defer server.Close()

	c := New(server.URL)
	c.retryDelay = 1 // near-instant in test
	got, err := c.ByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "OK", got.Symbol)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUpcomingLaunchesCachesAcrossCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(page{Items: nil})
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.UpcomingLaunches(context.Background())
	require.NoError(t, err)
	_, err = c.UpcomingLaunches(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(len(trackedFactories)), calls.Load(), "second call should be served from cache")
}
