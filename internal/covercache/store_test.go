package covercache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/datastore"
)

func testSettings() *conf.ResolverSettings {
	return &conf.ResolverSettings{
		PathByURL:      conf.CacheSettings{Capacity: 10, TTL: time.Hour},
		ProvisionalURL: conf.CacheSettings{Capacity: 10, TTL: time.Hour},
		FinalDetails:   conf.CacheSettings{Capacity: 10, TTL: time.Hour},
		BadURLs:        conf.CacheSettings{Capacity: 10, TTL: time.Hour},
		BadIdentifiers: conf.CacheSettings{Capacity: 10, TTL: time.Hour},
	}
}

func badSources() []cover.Source {
	return []cover.Source{cover.SourceGoogleBooks, cover.SourceOpenLibrary}
}

func TestPathByURL(t *testing.T) {
	t.Parallel()
	s := New(testSettings(), badSources(), nil)

	_, ok := s.GetPathByURL("http://example.com/a.jpg")
	assert.False(t, ok, "miss must not error or block")

	s.SetPathByURL("http://example.com/a.jpg", cover.ImageDetails{Path: "covers/a.jpg"}.WithDimensions(480, 720))
	details, ok := s.GetPathByURL("http://example.com/a.jpg")
	require.True(t, ok)
	assert.Equal(t, "covers/a.jpg", details.Path)
	assert.True(t, details.DimensionsKnown, "probed dimensions travel with the path")
	assert.Equal(t, 480, details.Width)

	s.SetPathByURL("http://example.com/a.jpg", cover.ImageDetails{Path: "covers/b.jpg"})
	details, _ = s.GetPathByURL("http://example.com/a.jpg")
	assert.Equal(t, "covers/b.jpg", details.Path, "put overwrites")

	s.InvalidatePathByURL("http://example.com/a.jpg")
	_, ok = s.GetPathByURL("http://example.com/a.jpg")
	assert.False(t, ok)

	// Invalidating an absent key is a no-op.
	s.InvalidatePathByURL("http://example.com/never-stored.jpg")
}

func TestCapacityEviction(t *testing.T) {
	t.Parallel()
	cfg := testSettings()
	cfg.PathByURL.Capacity = 3
	s := New(cfg, nil, nil)

	for i := range 5 {
		s.SetPathByURL(fmt.Sprintf("http://example.com/%d.jpg", i), cover.ImageDetails{Path: "p"})
	}
	pathLen, _, _, _ := s.Len()
	assert.Equal(t, 3, pathLen, "exceeding capacity evicts older entries regardless of TTL")

	// The most recent entries survive.
	_, ok := s.GetPathByURL("http://example.com/4.jpg")
	assert.True(t, ok)
	_, ok = s.GetPathByURL("http://example.com/0.jpg")
	assert.False(t, ok)
}

func TestFinalDetailsWriteThrough(t *testing.T) {
	t.Parallel()
	db := datastore.NewSQLiteStore(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { _ = db.Close() })

	s := New(testSettings(), badSources(), db)

	details := cover.ImageDetails{
		Path:     "covers/9780132350884.jpg",
		SourceID: "9780132350884",
		Kind:     cover.SourceGoogleBooks,
	}.WithDimensions(480, 720)
	s.SetFinalDetails("9780132350884", details)

	got, ok := s.GetFinalDetails("9780132350884")
	require.True(t, ok)
	assert.Equal(t, details, got)

	persisted, err := db.GetCoverCache("9780132350884")
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "covers/9780132350884.jpg", persisted.Path)
	assert.Equal(t, 480, persisted.Width)
	assert.True(t, persisted.DimensionsKnown)
}

func TestPlaceholderNotPersisted(t *testing.T) {
	t.Parallel()
	db := datastore.NewSQLiteStore(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { _ = db.Close() })

	s := New(testSettings(), badSources(), db)
	s.SetFinalDetails("id-1", cover.Placeholder("googlebooks-no-image"))

	_, ok := s.GetFinalDetails("id-1")
	assert.True(t, ok, "placeholder stays in memory")

	persisted, err := db.GetCoverCache("id-1")
	require.NoError(t, err)
	assert.Nil(t, persisted, "placeholders are never written through")
}

func TestWarmFromStore(t *testing.T) {
	t.Parallel()
	db := datastore.NewSQLiteStore(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.SaveCoverCache(&datastore.CoverCache{
		Identifier: "9780132350884",
		Path:       "covers/9780132350884.jpg",
		Kind:       "OPEN_LIBRARY",
	}))

	s := New(testSettings(), badSources(), db)
	require.NoError(t, s.WarmFromStore())

	got, ok := s.GetFinalDetails("9780132350884")
	require.True(t, ok)
	assert.Equal(t, "covers/9780132350884.jpg", got.Path)
	assert.Equal(t, cover.SourceOpenLibrary, got.Kind)
}

func TestBadURLMarking(t *testing.T) {
	t.Parallel()
	s := New(testSettings(), badSources(), nil)

	assert.False(t, s.IsBadURL("http://bad.example.com/x.jpg"))
	s.MarkBadURL("http://bad.example.com/x.jpg")
	assert.True(t, s.IsBadURL("http://bad.example.com/x.jpg"))

	// Marking is monotonic within the TTL window; marking again keeps it bad.
	s.MarkBadURL("http://bad.example.com/x.jpg")
	assert.True(t, s.IsBadURL("http://bad.example.com/x.jpg"))

	assert.False(t, s.IsBadURL(""), "empty URL is never bad")
	s.MarkBadURL("")
	assert.False(t, s.IsBadURL(""))
}

func TestBadIdentifiersPerProvider(t *testing.T) {
	t.Parallel()
	s := New(testSettings(), badSources(), nil)

	s.MarkBadIdentifier(cover.SourceGoogleBooks, "9780132350884")

	assert.True(t, s.IsBadIdentifier(cover.SourceGoogleBooks, "9780132350884"))
	assert.False(t, s.IsBadIdentifier(cover.SourceOpenLibrary, "9780132350884"),
		"negative caches are independent per provider")

	assert.False(t, s.IsBadIdentifier(cover.SourceGoogleBooks, ""),
		"empty identifier short-circuits to not-bad")

	// An unconfigured provider never reports bad.
	s.MarkBadIdentifier(cover.SourceLongitood, "9780132350884")
	assert.False(t, s.IsBadIdentifier(cover.SourceLongitood, "9780132350884"))
}

func TestBadIdentifierExpiry(t *testing.T) {
	t.Parallel()
	cfg := testSettings()
	cfg.BadIdentifiers.TTL = 20 * time.Millisecond
	s := New(cfg, badSources(), nil)

	s.MarkBadIdentifier(cover.SourceGoogleBooks, "id-x")
	assert.True(t, s.IsBadIdentifier(cover.SourceGoogleBooks, "id-x"))

	assert.Eventually(t, func() bool {
		return !s.IsBadIdentifier(cover.SourceGoogleBooks, "id-x")
	}, time.Second, 10*time.Millisecond, "marker expires naturally")
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	s := New(testSettings(), badSources(), nil)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("id-%d", n%5)
			s.SetProvisionalURL(key, fmt.Sprintf("http://example.com/%d.jpg", n))
			s.GetProvisionalURL(key)
			s.MarkBadIdentifier(cover.SourceGoogleBooks, key)
			s.IsBadIdentifier(cover.SourceGoogleBooks, key)
			s.SetFinalDetails(key, cover.ImageDetails{Path: key})
			s.GetFinalDetails(key)
		}(i)
	}
	wg.Wait()

	// Last write wins for each key; any stored value is a valid descriptor.
	for i := range 5 {
		details, ok := s.GetFinalDetails(fmt.Sprintf("id-%d", i))
		require.True(t, ok)
		assert.NotEmpty(t, details.Path)
	}
}
