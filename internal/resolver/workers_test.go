package resolver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPoolRunsJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewPool(2, nil)
	var ran atomic.Int32
	for range 10 {
		require.True(t, pool.Submit(func(context.Context) {
			ran.Add(1)
		}))
	}

	require.Eventually(t, func() bool {
		return ran.Load() == 10
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewPool(2, nil)
	var current, peak atomic.Int32
	release := make(chan struct{})

	for range 6 {
		pool.Submit(func(context.Context) {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			current.Add(-1)
		})
	}

	require.Eventually(t, func() bool {
		return current.Load() == 2
	}, 5*time.Second, 10*time.Millisecond, "exactly two workers run at once")
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewPool(1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	assert.False(t, pool.Submit(func(context.Context) {}))
}

func TestPoolShutdownCancelsRunningJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewPool(1, nil)
	started := make(chan struct{})
	pool.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx), "shutdown cancels the job and returns")
}
