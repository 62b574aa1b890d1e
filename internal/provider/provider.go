// Package provider implements the external image source clients of the cover
// pipeline: Google Books, OpenLibrary and Longitood, plus the resilience
// wrapper their calls go through.
package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/errors"
	"github.com/jylhava/coverd/internal/logging"
)

// ErrImageNotFound reports that the provider completed normally but has no
// image for the identifier. It is an expected condition, not a transient
// failure, and callers negative-cache it.
var ErrImageNotFound = errors.NotFoundError("image not found")

// ImageProvider is the contract of one external image source. Fetch must
// never panic; all failure is reported through the error: ErrImageNotFound
// for a clean no-result, anything else for a transient or permanent fault.
type ImageProvider interface {
	Name() cover.Source
	Fetch(ctx context.Context, identifier string, pref cover.Resolution) (cover.ImageDetails, error)
}

// Package-level logger shared by the provider clients.
var logger *slog.Logger

func init() {
	logger = logging.ForService("provider")
}

// doGetJSON performs one rate-limited GET and decodes the JSON response into
// result. Non-200 statuses and decode failures come back as enhanced errors
// categorized for the resilience wrapper and the provenance log.
func doGetJSON(ctx context.Context, httpClient *http.Client, limiter *rate.Limiter, component, url string, result any) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return errors.Newf("rate limiter wait cancelled: %w", err).
				Category(errors.CategoryTimeout).
				Component(component).
				Context("url", url).
				Build()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Component(component).
			Context("url", url).
			Build()
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		logger.Error("provider request failed",
			"component", component,
			"url", url,
			"error", err)
		return errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Component(component).
			Context("url", url).
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Component(component).
			Context("url", url).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrImageNotFound
	}
	if resp.StatusCode >= 400 {
		preview := string(bodyBytes)
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		logger.Warn("provider error response",
			"component", component,
			"status_code", resp.StatusCode,
			"url", url,
			"response_preview", preview)
		return errors.Newf("provider API error (status %d)", resp.StatusCode).
			Category(categoryForStatus(resp.StatusCode)).
			Component(component).
			Context("status_code", resp.StatusCode).
			Context("url", url).
			Build()
	}

	if result != nil {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return errors.Newf("failed to parse provider response: %w", err).
				Category(errors.CategoryImageProvider).
				Component(component).
				Context("url", url).
				Context("response_size", len(bodyBytes)).
				Build()
		}
	}

	logger.Debug("provider request successful",
		"component", component,
		"url", url,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// categoryForStatus maps HTTP status codes to error categories.
func categoryForStatus(statusCode int) errors.ErrorCategory {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.CategoryConfiguration
	case http.StatusTooManyRequests:
		return errors.CategoryLimit
	case http.StatusNotFound:
		return errors.CategoryNotFound
	default:
		return errors.CategoryNetwork
	}
}

// usableURL reports whether a provider-returned locator looks like an image
// reference worth downloading.
func usableURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}
