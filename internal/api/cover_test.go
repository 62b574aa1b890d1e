package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/covercache"
	"github.com/jylhava/coverd/internal/observability"
	"github.com/jylhava/coverd/internal/resolver"
	"github.com/jylhava/coverd/internal/storage"
)

// nullStore satisfies the persistence contract without doing anything; API
// tests exercise cache-served paths only.
type nullStore struct{}

func (nullStore) Store(_ context.Context, locator, itemID, label string) (cover.ImageDetails, error) {
	return cover.ImageDetails{Path: "covers/" + itemID + ".jpg", SourceLabel: label, SourceID: itemID}, nil
}

var _ storage.Adapter = nullStore{}

func newTestServer(t *testing.T) (*Server, *covercache.Store) {
	t.Helper()
	cfg := &conf.ResolverSettings{
		PathByURL:      conf.CacheSettings{Capacity: 100, TTL: time.Hour},
		ProvisionalURL: conf.CacheSettings{Capacity: 100, TTL: time.Hour},
		FinalDetails:   conf.CacheSettings{Capacity: 100, TTL: time.Hour},
		BadURLs:        conf.CacheSettings{Capacity: 100, TTL: time.Hour},
		BadIdentifiers: conf.CacheSettings{Capacity: 100, TTL: time.Hour},
	}
	cache := covercache.New(cfg, []cover.Source{cover.SourceGoogleBooks}, nil)
	pool := resolver.NewPool(1, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, pool.Shutdown(ctx))
	})
	orch := resolver.NewOrchestrator(cache, nullStore{}, nil)
	svc := resolver.NewService(cache, orch, nil, pool, nil)

	metrics, err := observability.NewResolverMetrics()
	require.NoError(t, err)
	return New(conf.WebServerSettings{Listen: ":0"}, svc, metrics), cache
}

func doRequest(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestGetCoverFromCache(t *testing.T) {
	s, cache := newTestServer(t)
	cache.SetFinalDetails("9780132350884", cover.ImageDetails{
		Path: "covers/9780132350884.jpg",
		Kind: cover.SourceGoogleBooks,
	}.WithDimensions(480, 720))

	rec := doRequest(s, "/api/v1/books/9780132350884/cover")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CoverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "covers/9780132350884.jpg", resp.CoverPath)
	assert.Equal(t, 480, resp.Width)
	assert.Equal(t, 720, resp.Height)
	assert.True(t, resp.HighResolution)
	assert.NotEmpty(t, resp.RequestID)
}

func TestGetCoverUnresolvedReturnsPlaceholder(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, "/api/v1/books/unknown-id/cover")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CoverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, cover.DefaultPlaceholderPath, resp.CoverPath)
	assert.False(t, resp.DimensionsKnown)
}

func TestGetCoverBadSource(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, "/api/v1/books/x/cover?source=BOGUS")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCoverBadResolution(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, "/api/v1/books/x/cover?resolution=ULTRA")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cover_cache")
}
