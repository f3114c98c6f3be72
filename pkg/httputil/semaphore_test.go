package httputil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreTryAcquire(t *testing.T) {
	sem := NewSemaphore(2)

	assert.True(t, sem.TryAcquire())
	assert.True(t, sem.TryAcquire())
	assert.False(t, sem.TryAcquire(), "third acquire exceeds capacity")
	assert.Equal(t, int64(1), sem.DroppedCount())

	sem.Release()
	assert.True(t, sem.TryAcquire())
}

func TestSemaphoreAcquireHonorsContext(t *testing.T) {
	sem := NewSemaphore(1)
	require.NoError(t, sem.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sem.Acquire(ctx), context.DeadlineExceeded)
}

func TestSemaphoreConcurrentUse(t *testing.T) {
	sem := NewSemaphore(10)
	var acquired atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem.TryAcquire() {
				acquired.Add(1)
				time.Sleep(10 * time.Millisecond)
				sem.Release()
			}
		}()
	}
	wg.Wait()

	stats := sem.Stats()
	assert.Zero(t, stats.InUse, "all slots released after completion")
	assert.Positive(t, acquired.Load())
}

func TestSemaphoreStats(t *testing.T) {
	sem := NewSemaphore(5)
	sem.TryAcquire()
	sem.TryAcquire()

	stats := sem.Stats()
	assert.Equal(t, 5, stats.Capacity)
	assert.Equal(t, 2, stats.InUse)
	assert.Equal(t, 3, stats.Available)
}

func TestSemaphoreDefaultCapacity(t *testing.T) {
	assert.Equal(t, 100, cap(NewSemaphore(0).sem))
	assert.Equal(t, 100, cap(NewSemaphore(-5).sem))
}
