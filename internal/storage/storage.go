// Package storage persists validated remote cover images in durable storage
// and hands back canonical descriptors pointing at the stored asset.
package storage

import (
	"bytes"
	"context"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	// Header-only dimension probing for the formats cover providers serve.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/errors"
	"github.com/jylhava/coverd/internal/logging"
)

// maxDownloadBytes caps a single cover download.
const maxDownloadBytes = 20 << 20

// Adapter is the persistence contract the orchestrator consumes: download the
// image behind locator, store it durably, and return a descriptor whose Path
// resolves back to the stored asset.
type Adapter interface {
	Store(ctx context.Context, locator, itemID, label string) (cover.ImageDetails, error)
}

// download fetches the image bytes behind locator and probes their dimensions.
type downloaded struct {
	data   []byte
	ext    string
	width  int
	height int
	dimsOK bool
}

var storageLogger *slog.Logger

func init() {
	storageLogger = logging.ForService("storage")
}

func download(ctx context.Context, httpClient *http.Client, locator string, minBytes int64) (*downloaded, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, http.NoBody)
	if err != nil {
		return nil, errors.Newf("failed to create download request: %w", err).
			Category(errors.CategoryImageStorage).
			Component("storage").
			Context("url", locator).
			Build()
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Newf("image download failed: %w", err).
			Category(errors.CategoryNetwork).
			Component("storage").
			Context("url", locator).
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("image download returned status %d", resp.StatusCode).
			Category(errors.CategoryImageStorage).
			Component("storage").
			Context("url", locator).
			Context("status_code", resp.StatusCode).
			Build()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, errors.Newf("failed to read image body: %w", err).
			Category(errors.CategoryNetwork).
			Component("storage").
			Context("url", locator).
			Build()
	}
	if int64(len(data)) < minBytes {
		return nil, errors.Newf("downloaded image too small: %d bytes", len(data)).
			Category(errors.CategoryImageStorage).
			Component("storage").
			Context("url", locator).
			Context("size_bytes", len(data)).
			Build()
	}

	d := &downloaded{data: data, ext: extensionFor(resp.Header.Get("Content-Type"), locator)}

	// Header-only probe; failure leaves dimensions unknown, it does not fail
	// the store.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		d.width, d.height, d.dimsOK = cfg.Width, cfg.Height, true
	}

	storageLogger.Debug("cover image downloaded",
		"url", locator,
		"size_bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())
	return d, nil
}

// extensionFor picks a file extension from the content type, falling back to
// whatever the URL ends with, then to .jpg.
func extensionFor(contentType, locator string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif"} {
		if strings.HasSuffix(strings.ToLower(locator), ext) {
			return ext
		}
	}
	return ".jpg"
}

// objectKey builds a safe storage key for an item identifier.
func objectKey(itemID, ext string) string {
	var b strings.Builder
	for _, r := range itemID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		b.WriteString("cover")
	}
	return b.String() + ext
}
