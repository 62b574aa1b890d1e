package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/covercache"
	"github.com/jylhava/coverd/internal/model"
	"github.com/jylhava/coverd/internal/observability"
	"github.com/jylhava/coverd/internal/provider"
)

// Service is the caller-facing entry point of the pipeline. GetBestCover
// answers from the cache layer immediately and schedules the authoritative
// multi-provider resolution in the background; the caller is never blocked on
// a provider.
type Service struct {
	cache     *covercache.Store
	orch      *Orchestrator
	providers []provider.ImageProvider
	pool      *Pool
	metrics   *observability.ResolverMetrics
	logger    *slog.Logger
}

// NewService wires the resolution service. providers are tried in slice
// order; pool runs the background resolutions. metrics may be nil.
func NewService(cache *covercache.Store, orch *Orchestrator, providers []provider.ImageProvider, pool *Pool, metrics *observability.ResolverMetrics) *Service {
	return &Service{
		cache:     cache,
		orch:      orch,
		providers: providers,
		pool:      pool,
		metrics:   metrics,
		logger:    serviceLogger(),
	}
}

// GetBestCover resolves the best currently-known cover for the book and
// returns immediately. The result's dimensions stay unknown until a later
// call observes the background resolution through the final-details cache.
//
// A nil book or a book without any identifier resolves synchronously to the
// placeholder with no provider attempt recorded.
func (s *Service) GetBestCover(book *model.Book, preferred cover.Source, pref cover.Resolution) model.ResolvedCover {
	if book == nil {
		return model.PlaceholderResolved(model.Book{})
	}
	b := *book

	identifier := b.Identifier()
	if identifier == "" {
		s.metrics.IncrementPlaceholderUses()
		return model.PlaceholderResolved(b)
	}

	fallback := s.fallbackPath(b)
	log := cover.NewProvenanceLog(identifier)

	// Fast path: an unexpired authoritative resolution answers outright.
	if details, ok := s.cache.GetFinalDetails(identifier); ok && sourceMatches(details.Kind, preferred) {
		s.metrics.IncrementCacheHits()
		return model.ResolvedCover{
			Book:            b,
			CoverPath:       details.Path,
			FallbackPath:    fallback,
			Width:           details.Width,
			Height:          details.Height,
			DimensionsKnown: details.DimensionsKnown,
			HighResolution:  details.HighResolution(),
			Provenance:      log,
		}
	}
	s.metrics.IncrementCacheMisses()

	coverPath := fallback
	if url, ok := s.cache.GetProvisionalURL(identifier); ok {
		coverPath = url
	}

	accepted := s.pool.Submit(func(ctx context.Context) {
		s.resolveAuthoritative(ctx, b, preferred, pref, log)
	})
	if !accepted {
		s.logger.Warn("background resolution not scheduled, pool shut down",
			"item_id", identifier)
	}

	return model.ResolvedCover{
		Book:         b,
		CoverPath:    coverPath,
		FallbackPath: fallback,
		Provenance:   log,
	}
}

// fallbackPath captures the book's pre-existing cover reference as the
// fallback of last resort, defaulting to the system placeholder.
func (s *Service) fallbackPath(b model.Book) string {
	for _, candidate := range []string{b.CoverURL, b.ThumbnailURL} {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" && candidate != cover.DefaultPlaceholderPath {
			return candidate
		}
	}
	return cover.DefaultPlaceholderPath
}

// resolveAuthoritative runs the full provider fallback chain and writes the
// first success into the provisional and final-details caches. It has no
// other observable effect.
func (s *Service) resolveAuthoritative(ctx context.Context, b model.Book, preferred cover.Source, pref cover.Resolution, log *cover.ProvenanceLog) {
	identifier := b.Identifier()

	// The book's own cover URL is resolvable without any provider. It is
	// keyed by URL in the negative cache, so a URL that failed before is
	// skipped for every book referencing it.
	if existing := s.existingCoverURL(b); existing != "" && sourceMatches(cover.SourceUserUpload, preferred) {
		details := s.orch.Resolve(ctx, log, ResolveRequest{
			CacheKey:      existing,
			IsKnownBad:    s.cache.IsBadURL,
			MarkKnownBad:  s.cache.MarkBadURL,
			RemoteFetch:   existingCoverFetch(existing, pref),
			Provider:      cover.SourceUserUpload,
			ReasonPrefix:  "coverurl",
			DownloadLabel: "existing cover download",
			ItemID:        identifier,
		})
		if !details.IsPlaceholder() {
			s.commit(identifier, existing, details)
			return
		}
	}

	for _, p := range s.providers {
		if !sourceMatches(p.Name(), preferred) {
			continue
		}
		details := s.orch.Resolve(ctx, log, ResolveRequest{
			CacheKey: identifier,
			IsKnownBad: func(key string) bool {
				return s.cache.IsBadIdentifier(p.Name(), key)
			},
			MarkKnownBad: func(key string) {
				s.cache.MarkBadIdentifier(p.Name(), key)
			},
			RemoteFetch: func(ctx context.Context) (cover.ImageDetails, error) {
				return p.Fetch(ctx, identifier, pref)
			},
			Provider:      p.Name(),
			ReasonPrefix:  sourcePrefix(p.Name()),
			DownloadLabel: sourcePrefix(p.Name()) + " download",
			ItemID:        identifier,
			ValidateURL: func(locator string) bool {
				return !s.cache.IsBadURL(locator)
			},
		})
		if !details.IsPlaceholder() {
			s.commit(identifier, details.Path, details)
			return
		}
	}

	s.logger.Debug("no provider resolved a cover",
		"item_id", identifier,
		"attempts", log.Len())
}

// commit writes a successful resolution into the cache layer. Concurrent
// resolutions of the same identifier race freely; last write wins.
func (s *Service) commit(identifier, locator string, details cover.ImageDetails) {
	s.cache.SetProvisionalURL(identifier, details.Path)
	s.cache.SetFinalDetails(identifier, details)
	s.logger.Info("cover resolution committed",
		"item_id", identifier,
		"source", details.Kind,
		"url", locator,
		"path", details.Path)
}

// existingCoverURL returns the book's own remote cover reference, if any.
func (s *Service) existingCoverURL(b model.Book) string {
	for _, candidate := range []string{b.CoverURL, b.ThumbnailURL} {
		candidate = strings.TrimSpace(candidate)
		if usableLocator(candidate) {
			return candidate
		}
	}
	return ""
}

// existingCoverFetch builds a remote-fetch supplier for a URL that is already
// known; there is no provider lookup step, only the download.
func existingCoverFetch(url string, pref cover.Resolution) func(ctx context.Context) (cover.ImageDetails, error) {
	return func(context.Context) (cover.ImageDetails, error) {
		return cover.ImageDetails{
			Path:       url,
			Kind:       cover.SourceUserUpload,
			Preference: pref,
		}, nil
	}
}

// sourceMatches reports whether a source satisfies the caller's preference.
func sourceMatches(src, preferred cover.Source) bool {
	return preferred == cover.SourceAny || preferred == "" || src == preferred
}

// sourcePrefix is the placeholder reason prefix for a provider.
func sourcePrefix(src cover.Source) string {
	switch src {
	case cover.SourceGoogleBooks:
		return "googlebooks"
	case cover.SourceOpenLibrary:
		return "openlibrary"
	case cover.SourceLongitood:
		return "longitood"
	case cover.SourceUserUpload:
		return "coverurl"
	default:
		return strings.ToLower(string(src))
	}
}
