// Package covercache implements the layered key-value caches of the cover
// resolution pipeline: positive path/URL/details caches plus the negative
// "known bad" caches that suppress repeated doomed provider calls.
package covercache

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/datastore"
	"github.com/jylhava/coverd/internal/logging"
)

// Store owns every cache of the pipeline. All operations are safe for
// concurrent use; writes are atomic per key and last write wins.
type Store struct {
	pathByURL    *expirable.LRU[string, cover.ImageDetails]
	provisional  *expirable.LRU[string, string]
	finalDetails *expirable.LRU[string, cover.ImageDetails]
	badURLs      *expirable.LRU[string, time.Time]
	badIDs       map[cover.Source]*expirable.LRU[string, time.Time]

	finalTTL time.Duration
	db       datastore.Interface // optional write-through persistence
	logger   *slog.Logger
}

// New builds a store sized per the resolver settings. badIdentifierSources
// lists the providers that get an independent negative identifier cache.
// db may be nil to run memory-only.
func New(cfg *conf.ResolverSettings, badIdentifierSources []cover.Source, db datastore.Interface) *Store {
	s := &Store{
		pathByURL:    expirable.NewLRU[string, cover.ImageDetails](cfg.PathByURL.Capacity, nil, cfg.PathByURL.TTL),
		provisional:  expirable.NewLRU[string, string](cfg.ProvisionalURL.Capacity, nil, cfg.ProvisionalURL.TTL),
		finalDetails: expirable.NewLRU[string, cover.ImageDetails](cfg.FinalDetails.Capacity, nil, cfg.FinalDetails.TTL),
		badURLs:      expirable.NewLRU[string, time.Time](cfg.BadURLs.Capacity, nil, cfg.BadURLs.TTL),
		badIDs:       make(map[cover.Source]*expirable.LRU[string, time.Time], len(badIdentifierSources)),
		finalTTL:     cfg.FinalDetails.TTL,
		db:           db,
		logger:       logging.ForService("covercache"),
	}
	for _, src := range badIdentifierSources {
		s.badIDs[src] = expirable.NewLRU[string, time.Time](cfg.BadIdentifiers.Capacity, nil, cfg.BadIdentifiers.TTL)
	}
	return s
}

// GetPathByURL returns the stored descriptor for an image URL: the storage
// path plus the dimensions probed when it was first downloaded. A hit
// refreshes the entry so the TTL behaves as time since last access.
func (s *Store) GetPathByURL(url string) (cover.ImageDetails, bool) {
	details, ok := s.pathByURL.Get(url)
	if ok {
		s.pathByURL.Add(url, details)
	}
	return details, ok
}

// SetPathByURL stores the descriptor for an image URL, overwriting any
// previous value.
func (s *Store) SetPathByURL(url string, details cover.ImageDetails) {
	s.pathByURL.Add(url, details)
}

// InvalidatePathByURL removes the entry; absent keys are a no-op.
func (s *Store) InvalidatePathByURL(url string) {
	s.pathByURL.Remove(url)
}

// GetProvisionalURL returns the best-known cover URL for an identifier.
// The provisional cache expires on write time, not access.
func (s *Store) GetProvisionalURL(identifier string) (string, bool) {
	return s.provisional.Get(identifier)
}

// SetProvisionalURL stores the best-known URL for an identifier.
func (s *Store) SetProvisionalURL(identifier, url string) {
	s.provisional.Add(identifier, url)
}

// InvalidateProvisionalURL removes the entry; absent keys are a no-op.
func (s *Store) InvalidateProvisionalURL(identifier string) {
	s.provisional.Remove(identifier)
}

// GetFinalDetails returns the authoritative resolved details for an
// identifier. A hit refreshes the entry (TTL since last access).
func (s *Store) GetFinalDetails(identifier string) (cover.ImageDetails, bool) {
	details, ok := s.finalDetails.Get(identifier)
	if ok {
		s.finalDetails.Add(identifier, details)
	}
	return details, ok
}

// SetFinalDetails stores resolved details and writes them through to the
// datastore when one is configured. Placeholders are kept in memory only.
func (s *Store) SetFinalDetails(identifier string, details cover.ImageDetails) {
	s.finalDetails.Add(identifier, details)

	if s.db == nil || details.IsPlaceholder() {
		return
	}
	entry := &datastore.CoverCache{
		Identifier:      identifier,
		Path:            details.Path,
		SourceLabel:     details.SourceLabel,
		SourceID:        details.SourceID,
		Kind:            string(details.Kind),
		Width:           details.Width,
		Height:          details.Height,
		DimensionsKnown: details.DimensionsKnown,
	}
	if err := s.db.SaveCoverCache(entry); err != nil {
		// Persistence is best effort; the in-memory cache stays authoritative.
		s.logger.Warn("failed to persist cover details",
			"identifier", identifier,
			"error", err)
	}
}

// InvalidateFinalDetails removes the entry from memory and the datastore.
func (s *Store) InvalidateFinalDetails(identifier string) {
	s.finalDetails.Remove(identifier)
	if s.db != nil {
		if err := s.db.DeleteCoverCache(identifier); err != nil {
			s.logger.Warn("failed to delete persisted cover details",
				"identifier", identifier,
				"error", err)
		}
	}
}

// MarkBadURL records an image URL as known bad until the marker expires.
func (s *Store) MarkBadURL(url string) {
	if url == "" {
		return
	}
	s.badURLs.Add(url, time.Now())
}

// IsBadURL reports whether the URL currently carries a known-bad marker.
func (s *Store) IsBadURL(url string) bool {
	if url == "" {
		return false
	}
	_, bad := s.badURLs.Get(url)
	return bad
}

// MarkBadIdentifier records that a provider had no usable image for an
// identifier. Unknown sources and empty identifiers are ignored.
func (s *Store) MarkBadIdentifier(source cover.Source, identifier string) {
	if identifier == "" {
		return
	}
	if c, ok := s.badIDs[source]; ok {
		c.Add(identifier, time.Now())
	}
}

// IsBadIdentifier reports whether the identifier is marked bad for the given
// provider. An empty identifier is never bad; no lookup is performed for it.
func (s *Store) IsBadIdentifier(source cover.Source, identifier string) bool {
	if identifier == "" {
		return false
	}
	c, ok := s.badIDs[source]
	if !ok {
		return false
	}
	_, bad := c.Get(identifier)
	return bad
}

// WarmFromStore loads persisted final details into memory, skipping entries
// older than the final-details TTL. Errors leave the cache empty but usable.
func (s *Store) WarmFromStore() error {
	if s.db == nil {
		return nil
	}
	entries, err := s.db.GetAllCoverCaches()
	if err != nil {
		s.logger.Warn("failed to load persisted cover details, starting cold", "error", err)
		return err
	}
	cutoff := time.Now().Add(-s.finalTTL)
	loaded := 0
	for i := range entries {
		e := &entries[i]
		if e.CachedAt.Before(cutoff) {
			continue
		}
		s.finalDetails.Add(e.Identifier, cover.ImageDetails{
			Path:            e.Path,
			SourceLabel:     e.SourceLabel,
			SourceID:        e.SourceID,
			Kind:            cover.Source(e.Kind),
			Width:           e.Width,
			Height:          e.Height,
			DimensionsKnown: e.DimensionsKnown,
		})
		loaded++
	}
	s.logger.Info("cover cache warmed from datastore",
		"persisted", len(entries),
		"loaded", loaded)
	return nil
}

// Len reports the current entry counts, for diagnostics.
func (s *Store) Len() (pathByURL, provisional, finalDetails, badURLs int) {
	return s.pathByURL.Len(), s.provisional.Len(), s.finalDetails.Len(), s.badURLs.Len()
}
