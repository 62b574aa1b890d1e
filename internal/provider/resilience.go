package provider

import (
	"context"
	"sync"
	"time"

	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/errors"
)

// Resilient decorates an ImageProvider with a per-call timeout and a
// consecutive-failure breaker: after failureThreshold transient failures the
// provider is skipped for the cooldown window. A clean not-found does not
// count as a failure.
type Resilient struct {
	inner            ImageProvider
	timeout          time.Duration
	failureThreshold int
	cooldown         time.Duration

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

// WithResilience wraps the provider. A zero failureThreshold disables the
// breaker; a zero timeout disables the per-call deadline.
func WithResilience(inner ImageProvider, timeout time.Duration, failureThreshold int, cooldown time.Duration) *Resilient {
	return &Resilient{
		inner:            inner,
		timeout:          timeout,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
	}
}

// Name returns the wrapped provider's source.
func (r *Resilient) Name() cover.Source {
	return r.inner.Name()
}

// Fetch calls through to the wrapped provider under the configured timeout.
// An open breaker and an expired deadline both surface as ordinary provider
// errors, so the orchestrator converges them to a placeholder the same way.
func (r *Resilient) Fetch(ctx context.Context, identifier string, pref cover.Resolution) (cover.ImageDetails, error) {
	if err := r.checkOpen(); err != nil {
		return cover.ImageDetails{}, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	details, err := r.inner.Fetch(ctx, identifier, pref)
	switch {
	case err == nil, errors.Is(err, ErrImageNotFound):
		r.recordSuccess()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.recordFailure()
		return cover.ImageDetails{}, errors.Newf("provider call timed out after %s", r.timeout).
			Category(errors.CategoryTimeout).
			Component(string(r.inner.Name())).
			Context("identifier", identifier).
			Build()
	default:
		r.recordFailure()
	}
	return details, err
}

func (r *Resilient) checkOpen() error {
	if r.failureThreshold <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Now().Before(r.openUntil) {
		return errors.Newf("provider circuit open until %s", r.openUntil.Format(time.RFC3339)).
			Category(errors.CategoryLimit).
			Component(string(r.inner.Name())).
			Build()
	}
	return nil
}

func (r *Resilient) recordSuccess() {
	if r.failureThreshold <= 0 {
		return
	}
	r.mu.Lock()
	r.failures = 0
	r.mu.Unlock()
}

func (r *Resilient) recordFailure() {
	if r.failureThreshold <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	if r.failures >= r.failureThreshold {
		r.openUntil = time.Now().Add(r.cooldown)
		r.failures = 0
		logger.Warn("provider circuit opened",
			"provider", r.inner.Name(),
			"cooldown", r.cooldown)
	}
}
