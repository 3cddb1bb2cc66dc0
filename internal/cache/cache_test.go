package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newMemoryCache(t *testing.T) (*Cache, *fakeClock, *Metrics) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemory()
	store.now = clock.Now
	metrics := NewMetrics(prometheus.NewRegistry())
	return New(store, zap.NewNop(), metrics), clock, metrics
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()

	t.Run("HitReturnsStoredBytes", func(t *testing.T) {
		c, _, metrics := newMemoryCache(t)
		calls := 0
		fn := func(ctx context.Context) ([]byte, error) {
			calls++
			return []byte(`{"n":1}`), nil
		}

		first, err := c.GetOrCompute(ctx, "k", time.Hour, fn)
		require.NoError(t, err)
		second, err := c.GetOrCompute(ctx, "k", time.Hour, fn)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.lookups.WithLabelValues("hit")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.lookups.WithLabelValues("miss")))
	})

	t.Run("ExpiresAfterTTL", func(t *testing.T) {
		c, clock, _ := newMemoryCache(t)
		calls := 0
		fn := func(ctx context.Context) ([]byte, error) {
			calls++
			return []byte("v"), nil
		}

		_, _ = c.GetOrCompute(ctx, "k", time.Hour, fn)
		clock.Advance(59 * time.Minute)
		_, _ = c.GetOrCompute(ctx, "k", time.Hour, fn)
		assert.Equal(t, 1, calls)

		clock.Advance(time.Minute)
		_, _ = c.GetOrCompute(ctx, "k", time.Hour, fn)
		assert.Equal(t, 2, calls)
	})

	t.Run("ErrorsAreNotCached", func(t *testing.T) {
		c, _, _ := newMemoryCache(t)
		boom := errors.New("boom")

		_, err := c.GetOrCompute(ctx, "k", time.Hour, func(ctx context.Context) ([]byte, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		v, err := c.GetOrCompute(ctx, "k", time.Hour, func(ctx context.Context) ([]byte, error) {
			return []byte("ok"), nil
		})
		assert.NoError(t, err)
		assert.Equal(t, []byte("ok"), v)
	})

	t.Run("Invalidate", func(t *testing.T) {
		c, _, _ := newMemoryCache(t)
		var calls int32
		fn := func(ctx context.Context) ([]byte, error) {
			atomic.AddInt32(&calls, 1)
			return []byte("v"), nil
		}

		_, _ = c.GetOrCompute(ctx, "k", time.Hour, fn)
		require.NoError(t, c.Invalidate("k"))
		_, _ = c.GetOrCompute(ctx, "k", time.Hour, fn)

		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("ConcurrentCallersGetSameValue", func(t *testing.T) {
		c, _, _ := newMemoryCache(t)
		var wg sync.WaitGroup
		results := make([][]byte, 16)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err := c.GetOrCompute(ctx, "k", time.Hour, func(ctx context.Context) ([]byte, error) {
					return []byte("same"), nil
				})
				assert.NoError(t, err)
				results[i] = v
			}(i)
		}
		wg.Wait()
		for _, r := range results {
			assert.Equal(t, []byte("same"), r)
		}
	})
}

func TestGetOrCompute_CancelledCaller(t *testing.T) {
	// Arrange
	c, _, _ := newMemoryCache(t)
	started := make(chan struct{})
	release := make(chan struct{})
	computeErr := make(chan error, 1)
	fn := func(ctx context.Context) ([]byte, error) {
		close(started)
		<-release
		computeErr <- ctx.Err()
		return []byte("v"), nil
	}
	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(first, "k", time.Hour, fn)
		firstErr <- err
	}()
	<-started

	// Act
	secondDone := make(chan []byte, 1)
	go func() {
		v, err := c.GetOrCompute(context.Background(), "k", time.Hour, fn)
		assert.NoError(t, err)
		secondDone <- v
	}()
	cancel()
	err := <-firstErr
	close(release)

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, <-computeErr)
	assert.Equal(t, []byte("v"), <-secondDone)
}

func TestMemory_Sweep(t *testing.T) {
	// Arrange
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemory()
	store.now = clock.Now
	defer store.Close()
	for _, key := range []string{"gaps:A:10", "gaps:A:11", "gaps:A:12"} {
		require.NoError(t, store.Set(key, []byte("v"), time.Minute))
	}
	require.NoError(t, store.Set("forever", []byte("v"), 0))
	require.NoError(t, store.Set("later", []byte("v"), time.Hour))

	// Act
	clock.Advance(2 * time.Minute)
	removed := store.Sweep()

	// Assert
	assert.Equal(t, 3, removed)
	assert.Equal(t, 2, store.Len())
	_, ok, err := store.Get("later")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_JanitorEvictsUnreadEntries(t *testing.T) {
	store := NewMemory()
	require.NoError(t, store.Set("k", []byte("v"), time.Millisecond))

	store.StartJanitor(5 * time.Millisecond)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestFetch(t *testing.T) {
	c, _, _ := newMemoryCache(t)
	type payload struct {
		Ticker string  `json:"ticker"`
		Value  float64 `json:"value"`
	}
	calls := 0
	fn := func(ctx context.Context) (payload, error) {
		calls++
		return payload{Ticker: "ABC", Value: 1.5}, nil
	}

	first, err := Fetch(context.Background(), c, "p", time.Hour, fn)
	require.NoError(t, err)
	second, err := Fetch(context.Background(), c, "p", time.Hour, fn)
	require.NoError(t, err)

	assert.Equal(t, payload{Ticker: "ABC", Value: 1.5}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestBadgerStore(t *testing.T) {
	store, err := OpenBadger("")
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("k", []byte("v"), time.Hour))
	v, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, store.Delete("k"))
	_, ok, err = store.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	c := New(store, zap.NewNop(), nil)
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := c.GetOrCompute(context.Background(), "x", time.Hour, func(ctx context.Context) ([]byte, error) {
			calls++
			return []byte("y"), nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}
