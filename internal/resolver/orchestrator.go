// Package resolver implements the cover resolution pipeline: the
// fetch-and-cache orchestrator, the caller-facing resolution service and the
// bounded background worker pool. Every failure path converges to the
// placeholder descriptor; the per-request provenance log is the only place
// failure detail survives.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/covercache"
	"github.com/jylhava/coverd/internal/errors"
	"github.com/jylhava/coverd/internal/observability"
	"github.com/jylhava/coverd/internal/provider"
	"github.com/jylhava/coverd/internal/storage"
)

// ResolveRequest parameterizes one orchestrated fetch against one provider.
// CacheKey addresses the negative cache through the IsKnownBad/MarkKnownBad
// pair; RemoteFetch is the only provider network call the orchestrator makes.
type ResolveRequest struct {
	CacheKey     string
	IsKnownBad   func(key string) bool
	MarkKnownBad func(key string)
	RemoteFetch  func(ctx context.Context) (cover.ImageDetails, error)

	// Provider and ReasonPrefix tag the provenance attempt and the
	// placeholder reasons, e.g. prefix "googlebooks" yields
	// "googlebooks-no-image" on an empty provider response.
	Provider     cover.Source
	ReasonPrefix string
	// DownloadLabel annotates the stored descriptor's source label.
	DownloadLabel string
	// ItemID names the item in storage keys and log lines.
	ItemID string

	// ValidateURL, when set, vets the provider-returned locator before any
	// download. ValidateStored, when set, gets a say over a stored result
	// that already failed structural validation.
	ValidateURL    func(locator string) bool
	ValidateStored func(details cover.ImageDetails) bool
}

// Orchestrator runs the known-bad short-circuit, remote fetch, URL
// validation, persistence and post-validation pipeline for a single provider
// call. It never returns an error; callers compose multi-provider fallback by
// issuing sequential calls and taking the first non-placeholder result.
type Orchestrator struct {
	cache   *covercache.Store
	store   storage.Adapter
	metrics *observability.ResolverMetrics
	logger  *slog.Logger
}

// NewOrchestrator wires the orchestrator to its cache store and persistence
// adapter. metrics may be nil.
func NewOrchestrator(cache *covercache.Store, store storage.Adapter, metrics *observability.ResolverMetrics) *Orchestrator {
	return &Orchestrator{
		cache:   cache,
		store:   store,
		metrics: metrics,
		logger:  serviceLogger(),
	}
}

// Resolve executes one fetch attempt and records it in log. The result is
// either the persisted descriptor or a placeholder whose reason carries the
// request's prefix plus the failure suffix. Failure branches mark the cache
// key bad; success never un-marks a key within the marker's TTL window.
func (o *Orchestrator) Resolve(ctx context.Context, log *cover.ProvenanceLog, req ResolveRequest) cover.ImageDetails {
	if req.CacheKey != "" && req.IsKnownBad != nil && req.IsKnownBad(req.CacheKey) {
		attempt := log.Begin(req.Provider, req.CacheKey)
		log.Complete(attempt, cover.StatusSkippedBadURL, "key marked known bad")
		o.metrics.IncrementKnownBadSkips()
		o.logger.Debug("skipping known bad key",
			"provider", req.Provider,
			"key", req.CacheKey,
			"item_id", req.ItemID)
		return o.placeholder(req.ReasonPrefix + "-known-bad")
	}

	attempt := log.Begin(req.Provider, req.CacheKey)

	fetched, err := req.RemoteFetch(ctx)
	switch {
	case err != nil && errors.Is(err, provider.ErrImageNotFound):
		o.markBad(req, "")
		log.Complete(attempt, cover.StatusFailureNotFound, "No ImageDetails returned from remote service")
		return o.placeholder(req.ReasonPrefix + "-no-image")
	case err != nil:
		o.markBad(req, "")
		log.Complete(attempt, cover.StatusFailureGeneric, err.Error())
		o.logger.Warn("remote fetch failed",
			"provider", req.Provider,
			"item_id", req.ItemID,
			"error", err)
		return o.placeholder(req.ReasonPrefix + "-exception")
	case fetched.IsZero():
		o.markBad(req, "")
		log.Complete(attempt, cover.StatusFailureNotFound, "No ImageDetails returned from remote service")
		return o.placeholder(req.ReasonPrefix + "-no-image")
	}

	locator := strings.TrimSpace(fetched.Path)
	if !usableLocator(locator) {
		o.markBad(req, "")
		log.Complete(attempt, cover.StatusFailureNoURLInResponse, "no usable URL in provider response")
		return o.placeholder(req.ReasonPrefix + "-no-url")
	}

	if req.ValidateURL != nil && !req.ValidateURL(locator) {
		o.markBad(req, locator)
		log.Complete(attempt, cover.StatusFailureInvalidDetails, "provider URL failed validation")
		return o.placeholder(req.ReasonPrefix + "-invalid-url")
	}

	// A URL already downloaded and stored resolves without another download,
	// keeping the dimensions probed by the original store.
	if cached, ok := o.cache.GetPathByURL(locator); ok {
		o.metrics.IncrementCacheHits()
		stored := fetched
		stored.Path = cached.Path
		if cached.DimensionsKnown {
			stored = stored.WithDimensions(cached.Width, cached.Height)
		}
		stored.Kind = req.Provider
		log.CompleteSuccess(attempt, locator, stored.DimensionString())
		return stored
	}
	o.metrics.IncrementCacheMisses()

	start := time.Now()
	stored, err := o.store.Store(ctx, locator, req.ItemID, req.DownloadLabel)
	o.metrics.ObserveDownloadDuration(time.Since(start).Seconds())
	o.metrics.IncrementImageDownloads()
	if err != nil {
		o.metrics.IncrementDownloadErrors()
		o.markBad(req, locator)
		log.Complete(attempt, cover.StatusFailureGenericDownload, err.Error())
		o.logger.Warn("cover download failed",
			"provider", req.Provider,
			"item_id", req.ItemID,
			"url", locator,
			"error", err)
		return o.placeholder(req.ReasonPrefix + "-dl-fail")
	}

	if stored.Path == "" || stored.IsPlaceholder() {
		o.metrics.IncrementDownloadErrors()
		o.markBad(req, locator)
		if req.ValidateStored != nil && !req.ValidateStored(stored) {
			log.Complete(attempt, cover.StatusFailureInvalidDetails, "custom validator failed")
			return o.placeholder(req.ReasonPrefix + "-custom-invalid")
		}
		log.Complete(attempt, cover.StatusFailureInvalidDetails, "downloaded image failed validation")
		return o.placeholder(req.ReasonPrefix + "-dl-fail")
	}

	stored.Kind = req.Provider
	stored.Preference = fetched.Preference
	o.cache.SetPathByURL(locator, stored)
	log.CompleteSuccess(attempt, locator, stored.DimensionString())
	o.logger.Debug("cover resolved",
		"provider", req.Provider,
		"item_id", req.ItemID,
		"url", locator,
		"path", stored.Path,
		"dimensions", stored.DimensionString())
	return stored
}

// markBad records the cache key, and optionally a locator URL, as known bad.
func (o *Orchestrator) markBad(req ResolveRequest, locator string) {
	if req.MarkKnownBad != nil && req.CacheKey != "" {
		req.MarkKnownBad(req.CacheKey)
	}
	if locator != "" {
		o.cache.MarkBadURL(locator)
	}
}

func (o *Orchestrator) placeholder(reason string) cover.ImageDetails {
	o.metrics.IncrementPlaceholderUses()
	return cover.Placeholder(reason)
}

// usableLocator reports whether a provider-returned locator is an HTTP(S)
// reference worth downloading.
func usableLocator(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}
