package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestDoCachesWithinTTL(t *testing.T) {
	clock := newFakeClock()
	reg := cache.New(cache.Options{Clock: clock.Now})

	var computes int32
	compute := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&computes, 1)
		return "result", nil
	}

	v1, err := reg.Do(context.Background(), "key-a", 5*time.Minute, compute)
	require.NoError(t, err)
	v2, err := reg.Do(context.Background(), "key-a", 5*time.Minute, compute)
	require.NoError(t, err)

	// Identical value, compute ran once
	assert.Equal(t, "result", v1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))

	hits, misses := reg.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestDoRecomputesAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	reg := cache.New(cache.Options{Clock: clock.Now})

	var computes int32
	compute := func(ctx context.Context) (interface{}, error) {
		return atomic.AddInt32(&computes, 1), nil
	}

	v1, err := reg.Do(context.Background(), "key-b", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v1)

	clock.Advance(59 * time.Second)
	v2, err := reg.Do(context.Background(), "key-b", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v2)

	clock.Advance(2 * time.Second)
	v3, err := reg.Do(context.Background(), "key-b", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v3)
}

func TestDoDoesNotCacheErrors(t *testing.T) {
	reg := cache.New(cache.Options{})

	var computes int32
	boom := errors.New("archive unreadable")
	compute := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&computes, 1)
		return nil, boom
	}

	_, err := reg.Do(context.Background(), "key-c", time.Minute, compute)
	assert.ErrorIs(t, err, boom)
	_, err = reg.Do(context.Background(), "key-c", time.Minute, compute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), atomic.LoadInt32(&computes))
}

func TestDisabledIsPurePassThrough(t *testing.T) {
	reg := cache.New(cache.Options{Disabled: true})
	assert.False(t, reg.Enabled())

	var computes int32
	compute := func(ctx context.Context) (interface{}, error) {
		return atomic.AddInt32(&computes, 1), nil
	}

	v1, err := reg.Do(context.Background(), "key-d", time.Hour, compute)
	require.NoError(t, err)
	v2, err := reg.Do(context.Background(), "key-d", time.Hour, compute)
	require.NoError(t, err)

	// Every call computes; nothing is stored or shared
	assert.Equal(t, int32(1), v1)
	assert.Equal(t, int32(2), v2)
}

func TestInvalidateAndClear(t *testing.T) {
	reg := cache.New(cache.Options{})

	var computes int32
	compute := func(ctx context.Context) (interface{}, error) {
		return atomic.AddInt32(&computes, 1), nil
	}

	_, err := reg.Do(context.Background(), "key-e", time.Hour, compute)
	require.NoError(t, err)

	reg.Invalidate("key-e")
	v, err := reg.Do(context.Background(), "key-e", time.Hour, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)

	_, err = reg.Do(context.Background(), "key-f", time.Hour, compute)
	require.NoError(t, err)

	reg.Clear()
	v, err = reg.Do(context.Background(), "key-e", time.Hour, compute)
	require.NoError(t, err)
	assert.Equal(t, int32(4), v)
}

func TestConcurrentCallersShareOneCompute(t *testing.T) {
	reg := cache.New(cache.Options{})

	var computes int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&computes, 1)
		<-release
		return "shared", nil
	}

	const callers = 16
	results := make(chan interface{}, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := reg.Do(context.Background(), "key-g", time.Hour, compute)
			assert.NoError(t, err)
			results <- v
		}()
	}

	// Give the goroutines a moment to pile up behind the in-flight compute,
	// then release it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))
	for v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestDoReleasesKeyWhenComputePanics(t *testing.T) {
	reg := cache.New(cache.Options{})

	assert.Panics(t, func() {
		_, _ = reg.Do(context.Background(), "key-p", time.Hour, func(ctx context.Context) (interface{}, error) {
			panic("compute blew up")
		})
	})

	// The fingerprint must not stay marked in-flight; the next call runs a
	// fresh compute instead of waiting forever.
	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := reg.Do(context.Background(), "key-p", time.Hour, func(ctx context.Context) (interface{}, error) {
			return "recovered", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "recovered", v)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Do blocked on a key whose compute panicked")
	}
}

func TestWaiterHonorsContextCancellation(t *testing.T) {
	reg := cache.New(cache.Options{})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = reg.Do(context.Background(), "key-h", time.Hour, func(ctx context.Context) (interface{}, error) {
			close(started)
			<-release
			return "late", nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := reg.Do(ctx, "key-h", time.Hour, func(ctx context.Context) (interface{}, error) {
		t.Fatal("second compute must not run while one is in flight")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestFingerprintDeterminism(t *testing.T) {
	a := cache.Fingerprint("site", nil, map[string]interface{}{"regions": []string{"nsw1"}, "window": "2024-01"})
	b := cache.Fingerprint("site", nil, map[string]interface{}{"window": "2024-01", "regions": []string{"nsw1"}})
	assert.Equal(t, a, b)

	// Different argument values and different sites both change the key
	c := cache.Fingerprint("site", nil, map[string]interface{}{"window": "2024-02", "regions": []string{"nsw1"}})
	assert.NotEqual(t, a, c)
	d := cache.Fingerprint("other", nil, map[string]interface{}{"regions": []string{"nsw1"}, "window": "2024-01"})
	assert.NotEqual(t, a, d)

	// Positional arguments participate too
	e := cache.Fingerprint("site", []interface{}{5}, nil)
	f := cache.Fingerprint("site", []interface{}{6}, nil)
	assert.NotEqual(t, e, f)
}
