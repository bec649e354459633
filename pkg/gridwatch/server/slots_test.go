package server_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	server "github.com/tigerroll/gridwatch/pkg/gridwatch/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnknownSlot(t *testing.T) {
	slots := server.NewPrefetchSlots(false, false)
	_, err := slots.Get(context.Background(), "nope")
	assert.Error(t, err)
}

func TestColdSlotComputesOnceThenServesPublished(t *testing.T) {
	slots := server.NewPrefetchSlots(false, false)

	var computes int32
	slots.Register("overview", func(ctx context.Context) (interface{}, error) {
		return atomic.AddInt32(&computes, 1), nil
	})

	v1, err := slots.Get(context.Background(), "overview")
	require.NoError(t, err)
	v2, err := slots.Get(context.Background(), "overview")
	require.NoError(t, err)

	// The cold Get published its result; the second Get serves it
	assert.Equal(t, int32(1), v1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))
}

func TestSafeModeAlwaysComputesSynchronously(t *testing.T) {
	slots := server.NewPrefetchSlots(true, false)

	var computes int32
	slots.Register("overview", func(ctx context.Context) (interface{}, error) {
		return atomic.AddInt32(&computes, 1), nil
	})

	slots.Start(context.Background())
	assert.Equal(t, int32(0), atomic.LoadInt32(&computes))

	v1, err := slots.Get(context.Background(), "overview")
	require.NoError(t, err)
	v2, err := slots.Get(context.Background(), "overview")
	require.NoError(t, err)

	// No slot state: every request runs the pipeline itself
	assert.Equal(t, int32(1), v1)
	assert.Equal(t, int32(2), v2)
}

func TestLazyDefersFirstRefresh(t *testing.T) {
	slots := server.NewPrefetchSlots(false, true)

	var computes int32
	slots.Register("prices", func(ctx context.Context) (interface{}, error) {
		return atomic.AddInt32(&computes, 1), nil
	})

	slots.Start(context.Background())
	assert.Equal(t, int32(0), atomic.LoadInt32(&computes))

	v, err := slots.Get(context.Background(), "prices")
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
}

func TestStartPrefetchesAllSlots(t *testing.T) {
	slots := server.NewPrefetchSlots(false, false)

	var computes int32
	done := make(chan struct{}, 2)
	for _, name := range []string{"overview", "penetration"} {
		name := name
		slots.Register(name, func(ctx context.Context) (interface{}, error) {
			atomic.AddInt32(&computes, 1)
			done <- struct{}{}
			return name, nil
		})
	}

	slots.Start(context.Background())
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("prefetch did not run")
		}
	}

	// Published values are served without recomputing
	v, err := slots.Get(context.Background(), "overview")
	require.NoError(t, err)
	assert.Equal(t, "overview", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&computes))
}

func TestInvalidateDiscardsStaleRefresh(t *testing.T) {
	slots := server.NewPrefetchSlots(false, false)

	var computes int32
	release := make(chan struct{})
	started := make(chan struct{})
	slots.Register("overview", func(ctx context.Context) (interface{}, error) {
		n := atomic.AddInt32(&computes, 1)
		if n == 1 {
			close(started)
			<-release
		}
		return n, nil
	})

	refreshed := make(chan struct{})
	go func() {
		slots.Refresh(context.Background(), "overview")
		close(refreshed)
	}()
	<-started

	// The invalidation lands while the first refresh is still computing, so
	// its result must be thrown away on arrival.
	slots.Invalidate("overview")
	close(release)
	<-refreshed

	v, err := slots.Get(context.Background(), "overview")
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestInvalidateAllClearsPublishedValues(t *testing.T) {
	slots := server.NewPrefetchSlots(false, false)

	var computes int32
	slots.Register("overview", func(ctx context.Context) (interface{}, error) {
		return atomic.AddInt32(&computes, 1), nil
	})

	_, err := slots.Get(context.Background(), "overview")
	require.NoError(t, err)

	slots.InvalidateAll()
	v, err := slots.Get(context.Background(), "overview")
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}
