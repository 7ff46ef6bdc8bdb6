package refresh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPFetcherSendsOneRequestPerQuery(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Query().Get("query"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	fetcher := NewHTTPFetcher(upstream.URL, 6000, 5*time.Second, zap.NewNop().Sugar())
	err := fetcher.Fetch(context.Background(), 1, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, seen)
}

func TestHTTPFetcherContinuesPastFailures(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	fetcher := NewHTTPFetcher(upstream.URL, 6000, 5*time.Second, zap.NewNop().Sugar())
	err := fetcher.Fetch(context.Background(), 1, []string{"good", "bad", "good2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 queries failed")
}

func TestHTTPFetcherHonorsContextCancel(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	// One token per minute: the second query has to wait on the limiter,
	// where the cancelled context interrupts it.
	fetcher := NewHTTPFetcher(upstream.URL, 1, 5*time.Second, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fetcher.Fetch(ctx, 1, []string{"alpha", "beta"})
	require.Error(t, err)
}
