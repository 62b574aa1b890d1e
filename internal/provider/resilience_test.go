package provider

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/errors"
)

// stubProvider is a scriptable ImageProvider for wrapper tests.
type stubProvider struct {
	calls int64
	fetch func(ctx context.Context) (cover.ImageDetails, error)
}

func (s *stubProvider) Name() cover.Source { return cover.SourceGoogleBooks }

func (s *stubProvider) Fetch(ctx context.Context, identifier string, pref cover.Resolution) (cover.ImageDetails, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.fetch(ctx)
}

func (s *stubProvider) callCount() int64 { return atomic.LoadInt64(&s.calls) }

func TestResilientPassthrough(t *testing.T) {
	t.Parallel()

	want := cover.ImageDetails{Path: "https://cdn.test/x.jpg", Kind: cover.SourceGoogleBooks}
	stub := &stubProvider{fetch: func(context.Context) (cover.ImageDetails, error) {
		return want, nil
	}}
	r := WithResilience(stub, time.Second, 3, time.Minute)

	got, err := r.Fetch(context.Background(), "id", cover.ResolutionAny)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, cover.SourceGoogleBooks, r.Name())
}

func TestResilientTimeout(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{fetch: func(ctx context.Context) (cover.ImageDetails, error) {
		<-ctx.Done()
		return cover.ImageDetails{}, ctx.Err()
	}}
	r := WithResilience(stub, 20*time.Millisecond, 0, 0)

	_, err := r.Fetch(context.Background(), "id", cover.ResolutionAny)
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err), "an expired deadline surfaces as a timeout error")
}

func TestResilientBreakerOpens(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{fetch: func(context.Context) (cover.ImageDetails, error) {
		return cover.ImageDetails{}, errors.Newf("connection refused").Category(errors.CategoryNetwork).Build()
	}}
	r := WithResilience(stub, time.Second, 2, time.Minute)

	for range 2 {
		_, err := r.Fetch(context.Background(), "id", cover.ResolutionAny)
		require.Error(t, err)
	}
	require.EqualValues(t, 2, stub.callCount())

	// Threshold reached, the next call is short-circuited.
	_, err := r.Fetch(context.Background(), "id", cover.ResolutionAny)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryLimit))
	assert.EqualValues(t, 2, stub.callCount(), "open breaker skips the provider")
}

func TestResilientBreakerCooldownExpires(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{fetch: func(context.Context) (cover.ImageDetails, error) {
		return cover.ImageDetails{}, errors.Newf("down").Category(errors.CategoryNetwork).Build()
	}}
	r := WithResilience(stub, time.Second, 1, 20*time.Millisecond)

	_, err := r.Fetch(context.Background(), "id", cover.ResolutionAny)
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		before := stub.callCount()
		_, _ = r.Fetch(context.Background(), "id", cover.ResolutionAny)
		return stub.callCount() > before
	}, time.Second, 10*time.Millisecond, "cooldown expiry closes the breaker")
}

func TestResilientNotFoundDoesNotTrip(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{fetch: func(context.Context) (cover.ImageDetails, error) {
		return cover.ImageDetails{}, ErrImageNotFound
	}}
	r := WithResilience(stub, time.Second, 1, time.Minute)

	for range 5 {
		_, err := r.Fetch(context.Background(), "id", cover.ResolutionAny)
		assert.True(t, errors.Is(err, ErrImageNotFound))
	}
	assert.EqualValues(t, 5, stub.callCount(), "clean not-found never opens the breaker")
}
