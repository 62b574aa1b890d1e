// Package datastore persists resolved cover details in SQLite through GORM so
// the in-memory final-details cache survives restarts.
package datastore

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jylhava/coverd/internal/errors"
)

// CoverCache is one persisted resolved cover. Identifier is the cache key
// (ISBN or catalog ID); the remaining columns mirror cover.ImageDetails.
type CoverCache struct {
	ID              uint   `gorm:"primaryKey"`
	Identifier      string `gorm:"uniqueIndex;not null"`
	Path            string
	SourceLabel     string
	SourceID        string
	Kind            string
	Width           int
	Height          int
	DimensionsKnown bool
	CachedAt        time.Time
}

// Interface is the persistence contract the cache layer consumes.
type Interface interface {
	Open() error
	Close() error
	GetCoverCache(identifier string) (*CoverCache, error)
	SaveCoverCache(entry *CoverCache) error
	GetAllCoverCaches() ([]CoverCache, error)
	DeleteCoverCache(identifier string) error
}

// SQLiteStore implements Interface on a local SQLite file.
type SQLiteStore struct {
	path string
	db   *gorm.DB
}

// NewSQLiteStore creates a store for the given database path. Use ":memory:"
// in tests.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Open connects to the database and migrates the cover cache table.
func (s *SQLiteStore) Open() error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return errors.Newf("failed to open SQLite database: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("path", s.path).
			Build()
	}
	if err := db.AutoMigrate(&CoverCache{}); err != nil {
		return errors.Newf("failed to migrate cover cache table: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	s.db = db
	getLogger().Info("database opened", "path", s.path)
	return nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	getLogger().Info("database closed", "path", s.path)
	return sqlDB.Close()
}

// GetCoverCache returns the persisted entry for identifier, or nil when absent.
func (s *SQLiteStore) GetCoverCache(identifier string) (*CoverCache, error) {
	if s.db == nil {
		return nil, errNotOpen()
	}
	var entry CoverCache
	err := s.db.Where("identifier = ?", identifier).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Newf("failed to get cover cache entry: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("identifier", identifier).
			Build()
	}
	return &entry, nil
}

// SaveCoverCache inserts or overwrites the entry for its identifier.
func (s *SQLiteStore) SaveCoverCache(entry *CoverCache) error {
	if s.db == nil {
		return errNotOpen()
	}
	if entry.Identifier == "" {
		return errors.ValidationError("cover cache identifier cannot be empty")
	}
	entry.CachedAt = time.Now()
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identifier"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"path", "source_label", "source_id", "kind",
			"width", "height", "dimensions_known", "cached_at",
		}),
	}).Create(entry).Error
	if err != nil {
		return errors.Newf("failed to save cover cache entry: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("identifier", entry.Identifier).
			Build()
	}
	return nil
}

// GetAllCoverCaches returns every persisted entry, used for cache warm-up.
func (s *SQLiteStore) GetAllCoverCaches() ([]CoverCache, error) {
	if s.db == nil {
		return nil, errNotOpen()
	}
	var entries []CoverCache
	if err := s.db.Find(&entries).Error; err != nil {
		getLogger().Error("failed to load cover cache entries", "error", err)
		return nil, errors.Newf("failed to load cover cache entries: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	getLogger().Debug("loaded cover cache entries", "count", len(entries))
	return entries, nil
}

// DeleteCoverCache removes the entry for identifier; absent keys are a no-op.
func (s *SQLiteStore) DeleteCoverCache(identifier string) error {
	if s.db == nil {
		return errNotOpen()
	}
	return s.db.Where("identifier = ?", identifier).Delete(&CoverCache{}).Error
}

func errNotOpen() error {
	return errors.Newf("database connection is not initialized").
		Category(errors.CategoryDatabase).
		Component("datastore").
		Build()
}
