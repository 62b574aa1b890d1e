package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/model"
)

const googleBooksLabel = "Google Books"

// googleBooksResponse is the slice of the volumes API response we consume.
type googleBooksResponse struct {
	TotalItems int               `json:"totalItems"`
	Items      []googleBooksItem `json:"items"`
}

type googleBooksItem struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title      string `json:"title"`
		ImageLinks struct {
			SmallThumbnail string `json:"smallThumbnail"`
			Thumbnail      string `json:"thumbnail"`
			Small          string `json:"small"`
			Medium         string `json:"medium"`
			Large          string `json:"large"`
			ExtraLarge     string `json:"extraLarge"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

// GoogleBooksClient resolves cover images through the Google Books volumes API.
type GoogleBooksClient struct {
	config     conf.ProviderSettings
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
}

// NewGoogleBooksClient creates a client from the provider settings.
func NewGoogleBooksClient(config conf.ProviderSettings) *GoogleBooksClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://www.googleapis.com/books/v1"
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

	c := &GoogleBooksClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      cache.New(config.CacheTTL, config.CacheTTL*2),
		limiter:    rate.NewLimiter(rate.Every(time.Duration(config.RateLimitMS)*time.Millisecond), 1),
	}

	logger.Info("Google Books client initialized",
		"base_url", config.BaseURL,
		"cache_ttl", config.CacheTTL,
		"rate_limit_ms", config.RateLimitMS,
		"api_key_configured", config.APIKey != "")
	return c
}

// Name identifies the provider in provenance records and negative caches.
func (c *GoogleBooksClient) Name() cover.Source {
	return cover.SourceGoogleBooks
}

// Fetch looks up the best cover image for an ISBN or volume query string.
func (c *GoogleBooksClient) Fetch(ctx context.Context, identifier string, pref cover.Resolution) (cover.ImageDetails, error) {
	identifier = model.NormalizeISBN(identifier)
	if identifier == "" {
		return cover.ImageDetails{}, ErrImageNotFound
	}

	cacheKey := fmt.Sprintf("volume:%s:%s", identifier, pref)
	if cached, found := c.cache.Get(cacheKey); found {
		if details, ok := cached.(cover.ImageDetails); ok {
			logger.Debug("Google Books cache hit", "identifier", identifier)
			return details, nil
		}
	}

	reqURL := fmt.Sprintf("%s/volumes?q=isbn:%s", c.config.BaseURL, url.QueryEscape(identifier))
	if c.config.APIKey != "" {
		reqURL = fmt.Sprintf("%s&key=%s", reqURL, url.QueryEscape(c.config.APIKey))
	}

	var result googleBooksResponse
	if err := doGetJSON(ctx, c.httpClient, c.limiter, "provider.googlebooks", reqURL, &result); err != nil {
		return cover.ImageDetails{}, err
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return cover.ImageDetails{}, ErrImageNotFound
	}

	item := result.Items[0]
	imageURL := pickGoogleBooksImage(item, pref)
	if !usableURL(imageURL) {
		return cover.ImageDetails{}, ErrImageNotFound
	}

	details := cover.ImageDetails{
		Path:        normalizeGoogleBooksURL(imageURL),
		SourceLabel: googleBooksLabel,
		SourceID:    item.ID,
		Kind:        cover.SourceGoogleBooks,
		Preference:  pref,
	}
	c.cache.Set(cacheKey, details, cache.DefaultExpiration)

	logger.Debug("Google Books volume resolved",
		"identifier", identifier,
		"volume_id", item.ID,
		"title", item.VolumeInfo.Title)
	return details, nil
}

// pickGoogleBooksImage chooses the best image link for the requested tier,
// falling back through the available sizes.
func pickGoogleBooksImage(item googleBooksItem, pref cover.Resolution) string {
	links := item.VolumeInfo.ImageLinks
	var ordered []string
	if pref == cover.ResolutionLow {
		ordered = []string{links.Thumbnail, links.SmallThumbnail, links.Small, links.Medium, links.Large, links.ExtraLarge}
	} else {
		ordered = []string{links.ExtraLarge, links.Large, links.Medium, links.Small, links.Thumbnail, links.SmallThumbnail}
	}
	for _, u := range ordered {
		if u != "" {
			return u
		}
	}
	return ""
}

// normalizeGoogleBooksURL upgrades the scheme; the API hands out http links
// that redirect to https anyway.
func normalizeGoogleBooksURL(raw string) string {
	if strings.HasPrefix(raw, "http://") {
		return "https://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

// HTTPClient exposes the underlying client for transport mocking in tests.
func (c *GoogleBooksClient) HTTPClient() *http.Client {
	return c.httpClient
}

// ClearCache drops all cached responses.
func (c *GoogleBooksClient) ClearCache() {
	c.cache.Flush()
}

var _ ImageProvider = (*GoogleBooksClient)(nil)
