// Package observability provides Prometheus metrics for the cover resolution
// pipeline.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ResolverMetrics contains all Prometheus metrics related to cover resolution.
type ResolverMetrics struct {
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	ImageDownloads   prometheus.Counter
	DownloadErrors   prometheus.Counter
	KnownBadSkips    prometheus.Counter
	PlaceholderUses  prometheus.Counter
	QueueDepth       prometheus.Gauge
	DownloadDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewResolverMetrics creates and registers the resolver metrics on a fresh
// registry.
func NewResolverMetrics() (*ResolverMetrics, error) {
	registry := prometheus.NewRegistry()
	m := &ResolverMetrics{
		registry: registry,
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cover_cache_hits_total",
			Help: "Total number of cover cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cover_cache_misses_total",
			Help: "Total number of cover cache misses.",
		}),
		ImageDownloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cover_downloads_total",
			Help: "Total number of cover image downloads.",
		}),
		DownloadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cover_download_errors_total",
			Help: "Total number of cover image download errors.",
		}),
		KnownBadSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cover_known_bad_skips_total",
			Help: "Total number of fetches skipped by the known-bad cache.",
		}),
		PlaceholderUses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cover_placeholder_uses_total",
			Help: "Total number of resolutions that fell back to the placeholder.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cover_background_queue_depth",
			Help: "Number of background resolutions currently queued or running.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cover_download_duration_seconds",
			Help:    "Duration of cover image downloads in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		m.CacheHits, m.CacheMisses, m.ImageDownloads, m.DownloadErrors,
		m.KnownBadSkips, m.PlaceholderUses, m.QueueDepth, m.DownloadDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register resolver metrics: %w", err)
		}
	}
	return m, nil
}

// Registry exposes the underlying registry for the /metrics endpoint.
func (m *ResolverMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncrementCacheHits increments the cache hit counter.
func (m *ResolverMetrics) IncrementCacheHits() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// IncrementCacheMisses increments the cache miss counter.
func (m *ResolverMetrics) IncrementCacheMisses() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// IncrementImageDownloads increments the download counter.
func (m *ResolverMetrics) IncrementImageDownloads() {
	if m != nil {
		m.ImageDownloads.Inc()
	}
}

// IncrementDownloadErrors increments the download error counter.
func (m *ResolverMetrics) IncrementDownloadErrors() {
	if m != nil {
		m.DownloadErrors.Inc()
	}
}

// IncrementKnownBadSkips increments the known-bad short-circuit counter.
func (m *ResolverMetrics) IncrementKnownBadSkips() {
	if m != nil {
		m.KnownBadSkips.Inc()
	}
}

// IncrementPlaceholderUses increments the placeholder fallback counter.
func (m *ResolverMetrics) IncrementPlaceholderUses() {
	if m != nil {
		m.PlaceholderUses.Inc()
	}
}

// ObserveDownloadDuration records the duration of one download in seconds.
func (m *ResolverMetrics) ObserveDownloadDuration(seconds float64) {
	if m != nil {
		m.DownloadDuration.Observe(seconds)
	}
}

// AddQueueDepth adjusts the background queue depth gauge.
func (m *ResolverMetrics) AddQueueDepth(delta float64) {
	if m != nil {
		m.QueueDepth.Add(delta)
	}
}
