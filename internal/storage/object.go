package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/errors"
)

// ObjectClient is the minimal object-store interface the adapter needs.
// Inject a client backed by S3, MinIO or a test double.
type ObjectClient interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
}

// ObjectStore persists cover images through an ObjectClient. The returned
// Path is the object key under the configured prefix.
type ObjectStore struct {
	client     ObjectClient
	prefix     string
	minBytes   int64
	timeout    time.Duration
	httpClient *http.Client
}

// NewObjectStore creates an object-store-backed adapter. client must not be nil.
func NewObjectStore(client ObjectClient, cfg conf.StorageSettings) (*ObjectStore, error) {
	if client == nil {
		return nil, errors.Newf("object storage client must not be nil").
			Category(errors.CategoryConfiguration).
			Component("storage").
			Build()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ObjectStore{
		client:     client,
		prefix:     cfg.Root,
		minBytes:   cfg.MinBytes,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Store downloads the image behind locator and puts it under the key prefix.
func (s *ObjectStore) Store(ctx context.Context, locator, itemID, label string) (cover.ImageDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	d, err := download(ctx, s.httpClient, locator, s.minBytes)
	if err != nil {
		return cover.ImageDetails{}, err
	}

	key := path.Join(s.prefix, objectKey(itemID, d.ext))
	if err := s.client.Put(ctx, key, bytes.NewReader(d.data), contentTypeFor(d.ext)); err != nil {
		return cover.ImageDetails{}, errors.Newf("object store put failed: %w", err).
			Category(errors.CategoryImageStorage).
			Component("storage").
			Context("key", key).
			Build()
	}

	details := cover.ImageDetails{
		Path:        key,
		SourceLabel: label,
		SourceID:    itemID,
	}
	if d.dimsOK {
		details = details.WithDimensions(d.width, d.height)
	}

	storageLogger.Info("cover stored",
		"item_id", itemID,
		"key", key,
		"dimensions", details.DimensionString())
	return details, nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// HTTPClient exposes the download client for transport mocking in tests.
func (s *ObjectStore) HTTPClient() *http.Client {
	return s.httpClient
}

var _ Adapter = (*ObjectStore)(nil)
