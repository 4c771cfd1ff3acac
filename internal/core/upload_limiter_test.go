package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Upload Limiter Tests
// =============================================================================

func TestUploadLimiter_TimeoutsDoNotTouchActiveCount(t *testing.T) {
	limiter := NewUploadLimiter(1, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	for range 3 {
		assert.ErrorIs(t, limiter.Acquire(ctx), ErrTooManyUploads)
	}
	assert.Equal(t, 1, limiter.ActiveCount())

	limiter.Release()
	assert.Equal(t, 0, limiter.ActiveCount())
	assert.Equal(t, UploadLimiterStatus{Active: 0, Available: 1, MaxConcurrent: 1}, limiter.Status())
}

func TestUploadLimiter_CancelledContextBeatsWaitTimer(t *testing.T) {
	limiter := NewUploadLimiter(1, time.Minute)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTooManyUploads)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, limiter.ActiveCount())
}

func TestUploadLimiter_WaitTimerBeatsLaterContext(t *testing.T) {
	limiter := NewUploadLimiter(1, 20*time.Millisecond)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	assert.ErrorIs(t, limiter.Acquire(ctx), ErrTooManyUploads)
}

func TestUploadLimiter_WaitForDrain(t *testing.T) {
	limiter := NewUploadLimiter(2, time.Second)
	ctx := context.Background()
	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))

	done := make(chan error, 1)
	go func() { done <- limiter.WaitForDrain(context.Background()) }()

	limiter.Release()
	select {
	case err := <-done:
		t.Fatalf("WaitForDrain returned with one ingestion active: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	limiter.Release()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not return after the last release")
	}
}

func TestUploadLimiter_WaitForDrainHonoursContext(t *testing.T) {
	limiter := NewUploadLimiter(1, time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, limiter.WaitForDrain(ctx), context.DeadlineExceeded)
}

func TestUploadLimiter_Defaults(t *testing.T) {
	limiter := NewUploadLimiter(0, 0)

	assert.Equal(t, DefaultMaxConcurrentUploads, limiter.MaxConcurrent())
	assert.Equal(t, DefaultMaxWaitTime, limiter.maxWait)
	assert.Equal(t, UploadLimiterStatus{
		Available:     DefaultMaxConcurrentUploads,
		MaxConcurrent: DefaultMaxConcurrentUploads,
	}, limiter.Status())
}
