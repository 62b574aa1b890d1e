package provider

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/errors"
)

func newTestLongitoodClient(t *testing.T) *LongitoodClient {
	t.Helper()
	c := NewLongitoodClient(conf.ProviderSettings{
		BaseURL:     "https://longitood.test",
		RateLimitMS: 1,
	})
	httpmock.ActivateNonDefault(c.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestLongitoodFetch(t *testing.T) {
	c := newTestLongitoodClient(t)
	httpmock.RegisterResponder("GET", "https://longitood.test/bookcover/9780132350884",
		httpmock.NewStringResponder(http.StatusOK,
			`{"url":"https://images-na.ssl-images-amazon.com/images/I/41xShlnTZTL.jpg"}`))

	details, err := c.Fetch(context.Background(), "9780132350884", cover.ResolutionAny)
	require.NoError(t, err)
	assert.Equal(t, "https://images-na.ssl-images-amazon.com/images/I/41xShlnTZTL.jpg", details.Path)
	assert.Equal(t, cover.SourceLongitood, details.Kind)
	assert.Equal(t, "9780132350884", details.SourceID)
}

func TestLongitoodFetchEmptyURL(t *testing.T) {
	c := newTestLongitoodClient(t)
	httpmock.RegisterResponder("GET", "https://longitood.test/bookcover/9780132350884",
		httpmock.NewStringResponder(http.StatusOK, `{"url":""}`))

	_, err := c.Fetch(context.Background(), "9780132350884", cover.ResolutionAny)
	assert.True(t, errors.Is(err, ErrImageNotFound))
}

func TestLongitoodFetchNotFound(t *testing.T) {
	c := newTestLongitoodClient(t)
	httpmock.RegisterResponder("GET", "https://longitood.test/bookcover/1111111111111",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":"no cover"}`))

	_, err := c.Fetch(context.Background(), "1111111111111", cover.ResolutionAny)
	assert.True(t, errors.Is(err, ErrImageNotFound))
}

func TestLongitoodFetchResponseCached(t *testing.T) {
	c := newTestLongitoodClient(t)
	httpmock.RegisterResponder("GET", "https://longitood.test/bookcover/9780132350884",
		httpmock.NewStringResponder(http.StatusOK, `{"url":"https://cdn.test/cover.jpg"}`))

	_, err := c.Fetch(context.Background(), "9780132350884", cover.ResolutionAny)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), "9780132350884", cover.ResolutionHigh)
	require.NoError(t, err)

	assert.Equal(t, 1, httpmock.GetTotalCallCount(),
		"Longitood serves one size, the cache key ignores the tier")
}
