package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, clock Clock) *Cache {
	t.Helper()
	c, err := New(Options{Clock: clock})
	require.NoError(t, err)
	return c
}

// cached returns the stored value of key without touching its recency.
func cached[T any](c *Cache, key Key) (T, bool) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.store.Peek(key.String())
	if !ok {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

func counting(calls *int32, values ...string) Fetcher[string] {
	return func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(calls, 1)
		idx := int(n) - 1
		if idx >= len(values) {
			idx = len(values) - 1
		}
		return values[idx], nil
	}
}

func TestFetchFreshIsServedFromCache(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	key := Key{"courses"}
	var calls int32

	v1, err := Fetch(context.Background(), c, key, time.Minute, counting(&calls, "a", "b"))
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	v2, err := Fetch(context.Background(), c, key, time.Minute, counting(&calls, "a", "b"))
	require.NoError(t, err)

	assert.Equal(t, "a", v1)
	assert.Equal(t, "a", v2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, Fresh, c.State(key))
}

func TestFetchStaleServesOldValueAndRefreshes(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	key := Key{"courseCompletions"}
	var calls int32
	fetch := counting(&calls, "old", "new")

	_, err := Fetch(context.Background(), c, key, time.Minute, fetch)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, Stale, c.State(key))

	v, err := Fetch(context.Background(), c, key, time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "old", v, "stale value is served while refreshing")

	c.Wait()
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, Fresh, c.State(key))

	v, err = Fetch(context.Background(), c, key, time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "new", v)
}

func TestFetchDeduplicatesConcurrentReaders(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"dedup", "course-1"}

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "detail", nil
	}

	misses := testutil.ToFloat64(c.metrics.MissesTotal.WithLabelValues("dedup"))

	results := make([]string, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, key, time.Minute, fetch)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.metrics.MissesTotal.WithLabelValues("dedup"))-misses == 2
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"detail", "detail"}, results)
}

func TestFetchFailureWithoutValueStaysAbsent(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"organizations"}
	boom := errors.New("boom")

	_, err := Fetch(context.Background(), c, key, time.Hour, func(ctx context.Context) ([]string, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Absent, c.State(key))

	v, err := Fetch(context.Background(), c, key, time.Hour, func(ctx context.Context) ([]string, error) {
		return []string{"ORG"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORG"}, v)
}

func TestBackgroundFailureKeepsPreviousValue(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	key := Key{"learningPaths"}

	_, err := Fetch(context.Background(), c, key, time.Minute, func(ctx context.Context) (string, error) {
		return "kept", nil
	})
	require.NoError(t, err)
	clock.Advance(time.Hour)

	v, err := Fetch(context.Background(), c, key, time.Minute, func(ctx context.Context) (string, error) {
		return "", errors.New("upstream down")
	})
	require.NoError(t, err)
	assert.Equal(t, "kept", v)

	c.Wait()
	got, ok := cached[string](c, key)
	require.True(t, ok)
	assert.Equal(t, "kept", got)
	assert.Equal(t, Stale, c.State(key))
}

func TestInvalidateForcesRefetch(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"learningPath", "lp-1"}
	var calls int32
	fetch := counting(&calls, "v1", "v2")

	_, _ = Fetch(context.Background(), c, key, time.Hour, fetch)
	c.Invalidate(key)
	assert.Equal(t, Absent, c.State(key))

	v, err := Fetch(context.Background(), c, key, time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestInvalidateDuringFetchDropsResult(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"course", "c-1"}
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := Fetch(context.Background(), c, key, time.Hour, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "before-invalidate", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "before-invalidate", v)
	}()

	<-started
	c.Invalidate(key)
	close(release)
	<-done

	assert.Equal(t, Absent, c.State(key))
}

func TestCallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"course", "slow"}
	release := make(chan struct{})
	stored := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, key, time.Hour, func(fctx context.Context) (string, error) {
			defer close(stored)
			<-release
			return "value", fctx.Err()
		})
		errCh <- err
	}()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	<-stored
	require.Eventually(t, func() bool { return c.State(key) == Fresh }, time.Second, time.Millisecond)
}

func TestPatchIsCopyOnWrite(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"enrollment", "c-1"}
	original := []string{"a"}
	Set(c, key, original, time.Minute)

	ok := Patch(c, key, func(cur []string) []string {
		next := append([]string(nil), cur...)
		return append(next, "b")
	})
	require.True(t, ok)

	got, _ := cached[[]string](c, key)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []string{"a"}, original)

	assert.False(t, Patch(c, Key{"missing"}, func(cur []string) []string { return cur }))
	assert.False(t, Patch(c, key, func(cur int) int { return cur }), "type mismatch")
}

func TestInvalidatePrefix(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	Set(c, Key{"learningPath", "a"}, 1, time.Hour)
	Set(c, Key{"learningPath", "b"}, 2, time.Hour)
	Set(c, Key{"learningPaths"}, 3, time.Hour)

	c.InvalidatePrefix(Key{"learningPath"})

	assert.Equal(t, Absent, c.State(Key{"learningPath", "a"}))
	assert.Equal(t, Absent, c.State(Key{"learningPath", "b"}))
	assert.Equal(t, Fresh, c.State(Key{"learningPaths"}))
}

func TestInvalidatePrefixDropsInFlightResults(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"course", "c-1", "completion"}
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Fetch(context.Background(), c, key, time.Hour, func(ctx context.Context) (float64, error) {
			close(started)
			<-release
			return 0.5, nil
		})
	}()
	<-started
	c.InvalidatePrefix(Key{"course", "c-1"})
	close(release)
	<-done

	assert.Equal(t, Absent, c.State(key))
}

func TestInvalidatePrefixMatchesWholeSegments(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	Set(c, Key{"course", "c-1"}, 1, time.Hour)
	Set(c, Key{"course", "c-1", "enrollment"}, 2, time.Hour)
	Set(c, Key{"course", "c-10"}, 3, time.Hour)
	Set(c, Key{"course", "org/c-1", "enrollment"}, 4, time.Hour)

	c.InvalidatePrefix(Key{"course", "c-1"})

	assert.Equal(t, Absent, c.State(Key{"course", "c-1"}))
	assert.Equal(t, Absent, c.State(Key{"course", "c-1", "enrollment"}))
	assert.Equal(t, Fresh, c.State(Key{"course", "c-10"}))
	assert.Equal(t, Fresh, c.State(Key{"course", "org/c-1", "enrollment"}))

	c.InvalidatePrefix(Key{"course", "org"})
	assert.Equal(t, Fresh, c.State(Key{"course", "org/c-1", "enrollment"}), "slashes inside a segment are not separators")
}

func TestGenerationsStayBounded(t *testing.T) {
	c, err := New(Options{MaxEntries: 4, Clock: newFakeClock()})
	require.NoError(t, err)

	for i := range 100 {
		id := strconv.Itoa(i)
		Set(c, Key{"course", id}, i, time.Hour)
		c.Invalidate(Key{"course", id})
		c.InvalidatePrefix(Key{"learningPath", id})
	}

	c.mu.Lock()
	tracked := len(c.gen) + len(c.prefixGen)
	c.mu.Unlock()
	assert.LessOrEqual(t, tracked, c.maxGens)
	assert.LessOrEqual(t, c.Len(), 4)
}

func TestGenerationResetStillDropsStaleWriteBack(t *testing.T) {
	c, err := New(Options{MaxEntries: 1, Clock: newFakeClock()})
	require.NoError(t, err)
	key := Key{"learningPath", "lp-1"}
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Fetch(context.Background(), c, key, time.Hour, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "before-invalidate", nil
		})
	}()
	<-started
	c.Invalidate(key)
	// Enough bumps to force the generation maps to reset.
	for i := range 10 {
		c.Invalidate(Key{"other", strconv.Itoa(i)})
	}
	close(release)
	<-done

	assert.Equal(t, Absent, c.State(key))
}

func TestMaxEntriesBound(t *testing.T) {
	c, err := New(Options{MaxEntries: 2, Clock: newFakeClock()})
	require.NoError(t, err)

	Set(c, Key{"k", "1"}, 1, time.Hour)
	Set(c, Key{"k", "2"}, 2, time.Hour)
	Set(c, Key{"k", "3"}, 3, time.Hour)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, Absent, c.State(Key{"k", "1"}))
}

func TestPurgeDropsEntriesAndInFlightResults(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	Set(c, Key{"organizations"}, "orgs", time.Hour)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Fetch(context.Background(), c, Key{"courses"}, time.Minute, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
	}()
	<-started
	c.Purge()
	close(release)
	<-done

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, Absent, c.State(Key{"organizations"}))
	assert.Equal(t, Absent, c.State(Key{"courses"}))
}
