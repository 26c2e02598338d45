package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterEnforcesConcurrencyAndDelay(t *testing.T) {
	const (
		maxConcurrent = 2
		callers       = 4
		minDelay      = 10 * time.Millisecond
		work          = 50 * time.Millisecond
	)

	limiter := New(maxConcurrent, minDelay)
	defer limiter.Close()

	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := limiter.Acquire(context.Background())
			require.NoError(t, err)
			defer release()
			time.Sleep(work)
		}()
	}
	wg.Wait()

	// ceil(4/2) * (delay + work) = 2 * 60ms
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 2*(minDelay+work), "elapsed %v", elapsed)
}

func TestLimiterEnforcesMinDelay(t *testing.T) {
	limiter := New(10, 100*time.Millisecond)
	defer limiter.Close()

	start := time.Now()
	release, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestReleaseIsIdempotent(t *testing.T) {
	limiter := New(1, 0)
	defer limiter.Close()

	release, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release() // second call must not free a phantom permit

	// pool size 1: acquire must succeed exactly once without blocking
	release2, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	defer release2()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireAfterCloseFails(t *testing.T) {
	limiter := New(1, 0)
	limiter.Close()

	_, err := limiter.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	limiter := New(1, 0)
	defer limiter.Close()

	release, err := limiter.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	release()
}
