package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivbliss/catalogcrawl/internal/domain"
	"github.com/vivbliss/catalogcrawl/internal/fetcher"
	"github.com/vivbliss/catalogcrawl/internal/logger"
)

func newFetcher(t *testing.T) *fetcher.Fetcher {
	t.Helper()

	f, err := fetcher.New(fetcher.Config{
		RateLimit:      time.Millisecond,
		RequestTimeout: 5 * time.Second,
	}, logger.NewNoOp())
	require.NoError(t, err)

	return f
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`<html><body><h1>Catalog</h1></body></html>`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<html><body>not found</body></html>`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	f := newFetcher(t)

	t.Run("parses successful response", func(t *testing.T) {
		result, err := f.Fetch(context.Background(), domain.Request{URL: server.URL + "/ok"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, result.StatusCode)
		assert.Equal(t, "Catalog", result.Document.Find("h1").Text())
	})

	t.Run("non-success status is an error", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), domain.Request{URL: server.URL + "/missing"})
		require.ErrorIs(t, err, fetcher.ErrHTTPStatus)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.Fetch(ctx, domain.Request{URL: server.URL + "/ok"})
		require.Error(t, err)
	})
}
