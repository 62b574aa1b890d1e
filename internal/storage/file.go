package storage

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/errors"
)

// FileStore persists cover images on the local filesystem under a root
// directory. The returned Path is the stored file's path relative to the
// process working directory, so it resolves back to the asset.
type FileStore struct {
	root       string
	minBytes   int64
	timeout    time.Duration
	httpClient *http.Client
}

// NewFileStore creates a filesystem-backed adapter from the storage settings.
func NewFileStore(cfg conf.StorageSettings) *FileStore {
	if cfg.Root == "" {
		cfg.Root = "covers/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &FileStore{
		root:       cfg.Root,
		minBytes:   cfg.MinBytes,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Store downloads the image behind locator and writes it under the root
// directory. The write is atomic: a temp file renamed into place, so a
// concurrent reader never observes a partial cover.
func (s *FileStore) Store(ctx context.Context, locator, itemID, label string) (cover.ImageDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	d, err := download(ctx, s.httpClient, locator, s.minBytes)
	if err != nil {
		return cover.ImageDetails{}, err
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return cover.ImageDetails{}, errors.Newf("failed to create storage root: %w", err).
			Category(errors.CategoryFileIO).
			Component("storage").
			Context("root", s.root).
			Build()
	}

	finalPath := filepath.Join(s.root, objectKey(itemID, d.ext))
	tmp, err := os.CreateTemp(s.root, ".cover-*")
	if err != nil {
		return cover.ImageDetails{}, errors.Newf("failed to create temp file: %w", err).
			Category(errors.CategoryFileIO).
			Component("storage").
			Build()
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(d.data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return cover.ImageDetails{}, errors.Newf("failed to write cover file: %w", err).
			Category(errors.CategoryFileIO).
			Component("storage").
			Context("path", finalPath).
			Build()
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return cover.ImageDetails{}, errors.Newf("failed to close cover file: %w", err).
			Category(errors.CategoryFileIO).
			Component("storage").
			Build()
	}
	if err := os.Rename(tmpName, finalPath); err != nil {
		_ = os.Remove(tmpName)
		return cover.ImageDetails{}, errors.Newf("failed to move cover into place: %w", err).
			Category(errors.CategoryFileIO).
			Component("storage").
			Context("path", finalPath).
			Build()
	}

	details := cover.ImageDetails{
		Path:        finalPath,
		SourceLabel: label,
		SourceID:    itemID,
	}
	if d.dimsOK {
		details = details.WithDimensions(d.width, d.height)
	}

	storageLogger.Info("cover stored",
		"item_id", itemID,
		"path", finalPath,
		"dimensions", details.DimensionString())
	return details, nil
}

// HTTPClient exposes the download client for transport mocking in tests.
func (s *FileStore) HTTPClient() *http.Client {
	return s.httpClient
}

var _ Adapter = (*FileStore)(nil)
