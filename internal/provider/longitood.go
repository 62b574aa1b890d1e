package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/model"
)

const longitoodLabel = "Longitood"

// longitoodResponse is the bookcover endpoint's response shape.
type longitoodResponse struct {
	URL string `json:"url"`
}

// LongitoodClient resolves cover images through the Longitood bookcover API.
// Longitood serves a single size, so the resolution preference only travels
// through to the returned descriptor.
type LongitoodClient struct {
	config     conf.ProviderSettings
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
}

// NewLongitoodClient creates a client from the provider settings.
func NewLongitoodClient(config conf.ProviderSettings) *LongitoodClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://bookcover.longitood.com"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = time.Hour
	}
	if config.RateLimitMS == 0 {
		config.RateLimitMS = 250
	}

	c := &LongitoodClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      cache.New(config.CacheTTL, config.CacheTTL*2),
		limiter:    rate.NewLimiter(rate.Every(time.Duration(config.RateLimitMS)*time.Millisecond), 1),
	}

	logger.Info("Longitood client initialized",
		"base_url", config.BaseURL,
		"cache_ttl", config.CacheTTL,
		"rate_limit_ms", config.RateLimitMS)
	return c
}

// Name identifies the provider in provenance records and negative caches.
func (c *LongitoodClient) Name() cover.Source {
	return cover.SourceLongitood
}

// Fetch looks up the cover URL for an ISBN-13.
func (c *LongitoodClient) Fetch(ctx context.Context, identifier string, pref cover.Resolution) (cover.ImageDetails, error) {
	identifier = model.NormalizeISBN(identifier)
	if identifier == "" {
		return cover.ImageDetails{}, ErrImageNotFound
	}

	cacheKey := "bookcover:" + identifier
	if cached, found := c.cache.Get(cacheKey); found {
		if details, ok := cached.(cover.ImageDetails); ok {
			logger.Debug("Longitood cache hit", "identifier", identifier)
			return details, nil
		}
	}

	reqURL := fmt.Sprintf("%s/bookcover/%s", c.config.BaseURL, identifier)
	var result longitoodResponse
	if err := doGetJSON(ctx, c.httpClient, c.limiter, "provider.longitood", reqURL, &result); err != nil {
		return cover.ImageDetails{}, err
	}

	if !usableURL(result.URL) {
		return cover.ImageDetails{}, ErrImageNotFound
	}

	details := cover.ImageDetails{
		Path:        result.URL,
		SourceLabel: longitoodLabel,
		SourceID:    identifier,
		Kind:        cover.SourceLongitood,
		Preference:  pref,
	}
	c.cache.Set(cacheKey, details, cache.DefaultExpiration)

	logger.Debug("Longitood cover resolved",
		"identifier", identifier,
		"url", result.URL)
	return details, nil
}

// HTTPClient exposes the underlying client for transport mocking in tests.
func (c *LongitoodClient) HTTPClient() *http.Client {
	return c.httpClient
}

var _ ImageProvider = (*LongitoodClient)(nil)
