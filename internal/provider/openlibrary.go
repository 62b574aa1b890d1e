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

const openLibraryLabel = "OpenLibrary"

// openLibraryEdition is the slice of the edition endpoint we consume.
type openLibraryEdition struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Covers []int  `json:"covers"`
}

// OpenLibraryClient resolves cover images through the OpenLibrary editions
// and covers APIs.
type OpenLibraryClient struct {
	config     conf.ProviderSettings
	coversBase string
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
}

// NewOpenLibraryClient creates a client from the provider settings.
func NewOpenLibraryClient(config conf.ProviderSettings) *OpenLibraryClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://openlibrary.org"
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

	c := &OpenLibraryClient{
		config:     config,
		coversBase: "https://covers.openlibrary.org",
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      cache.New(config.CacheTTL, config.CacheTTL*2),
		limiter:    rate.NewLimiter(rate.Every(time.Duration(config.RateLimitMS)*time.Millisecond), 1),
	}

	logger.Info("OpenLibrary client initialized",
		"base_url", config.BaseURL,
		"cache_ttl", config.CacheTTL,
		"rate_limit_ms", config.RateLimitMS)
	return c
}

// Name identifies the provider in provenance records and negative caches.
func (c *OpenLibraryClient) Name() cover.Source {
	return cover.SourceOpenLibrary
}

// Fetch resolves the edition for an ISBN and builds the covers-service URL
// for its first cover ID.
func (c *OpenLibraryClient) Fetch(ctx context.Context, identifier string, pref cover.Resolution) (cover.ImageDetails, error) {
	identifier = model.NormalizeISBN(identifier)
	if identifier == "" {
		return cover.ImageDetails{}, ErrImageNotFound
	}

	cacheKey := fmt.Sprintf("edition:%s:%s", identifier, pref)
	if cached, found := c.cache.Get(cacheKey); found {
		if details, ok := cached.(cover.ImageDetails); ok {
			logger.Debug("OpenLibrary cache hit", "identifier", identifier)
			return details, nil
		}
	}

	reqURL := fmt.Sprintf("%s/isbn/%s.json", c.config.BaseURL, identifier)
	var edition openLibraryEdition
	if err := doGetJSON(ctx, c.httpClient, c.limiter, "provider.openlibrary", reqURL, &edition); err != nil {
		return cover.ImageDetails{}, err
	}

	if len(edition.Covers) == 0 || edition.Covers[0] <= 0 {
		return cover.ImageDetails{}, ErrImageNotFound
	}

	size := "L"
	if pref == cover.ResolutionLow {
		size = "M"
	}
	details := cover.ImageDetails{
		Path:        fmt.Sprintf("%s/b/id/%d-%s.jpg", c.coversBase, edition.Covers[0], size),
		SourceLabel: openLibraryLabel,
		SourceID:    edition.Key,
		Kind:        cover.SourceOpenLibrary,
		Preference:  pref,
	}
	c.cache.Set(cacheKey, details, cache.DefaultExpiration)

	logger.Debug("OpenLibrary edition resolved",
		"identifier", identifier,
		"edition_key", edition.Key,
		"cover_id", edition.Covers[0])
	return details, nil
}

// HTTPClient exposes the underlying client for transport mocking in tests.
func (c *OpenLibraryClient) HTTPClient() *http.Client {
	return c.httpClient
}

var _ ImageProvider = (*OpenLibraryClient)(nil)
