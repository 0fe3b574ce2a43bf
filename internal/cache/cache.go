// Package cache is the keyed query cache behind the dashboard: stale-while-revalidate
// reads, one in-flight fetch per key, explicit invalidation and copy-on-write patches.
//
// Entry lifecycle: Absent -> Fetching -> Fresh -> Stale -> Fetching -> Fresh. A failed
// fetch keeps the previous value if there was one; otherwise the key stays Absent.
package cache

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Key identifies a cached query, e.g. Key{"learningPath", "lp-1"}. Keys that share
// leading segments can be dropped together with InvalidatePrefix.
type Key []string

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, seg := range k {
		parts[i] = url.PathEscape(seg)
	}
	return strings.Join(parts, "/")
}

// kind is the metrics label: the first segment plus any segments after the id,
// e.g. "course" or "course.enrollment".
func (k Key) kind() string {
	switch len(k) {
	case 0:
		return ""
	case 1, 2:
		return k[0]
	default:
		return k[0] + "." + strings.Join(k[2:], ".")
	}
}

// State is the freshness of a key at a point in time.
type State int

const (
	Absent State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "absent"
	}
}

const (
	DefaultMaxEntries     = 4096
	defaultRefreshTimeout = 30 * time.Second
)

type Options struct {
	MaxEntries     int
	Clock          Clock
	Logger         *zap.Logger
	RefreshTimeout time.Duration
}

type entry struct {
	value      any
	fetchedAt  time.Time
	staleAfter time.Duration
}

// Cache owns every cached value. Values handed out must be treated as read-only;
// callers change an entry only through Patch, Set or Invalidate.
type Cache struct {
	mu    sync.Mutex
	store *lru.Cache[string, *entry]
	// gen records, per key, the sequence number of its last Set, Patch or
	// Invalidate, and prefixGen that of InvalidatePrefix. A key's generation is
	// the largest of base and every record covering it. A fetch writes back only
	// if the generation is unchanged when it finishes. seq only grows, so a reset
	// to a new base never revives an older generation.
	gen        map[string]uint64
	prefixGen  map[string]uint64
	base       uint64
	seq        uint64
	maxGens    int
	refreshing map[string]struct{}

	group   singleflight.Group
	bg      sync.WaitGroup
	clock   Clock
	log     *zap.Logger
	metrics *Metrics

	refreshTimeout time.Duration
}

func New(opts Options) (*Cache, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}
	c := &Cache{
		gen:            make(map[string]uint64),
		prefixGen:      make(map[string]uint64),
		maxGens:        2 * opts.MaxEntries,
		refreshing:     make(map[string]struct{}),
		clock:          opts.Clock,
		log:            opts.Logger.Named("cache"),
		metrics:        NewMetrics(),
		refreshTimeout: opts.RefreshTimeout,
	}
	store, err := lru.NewWithEvict[string, *entry](opts.MaxEntries, func(string, *entry) {
		c.metrics.Entries.Dec()
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.store = store
	return c, nil
}

// Fetcher loads the value of one key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Fetch returns the cached value of key, calling fetch when needed.
//
//   - Fresh: returned without a call.
//   - Stale: returned immediately; a background refresh is started.
//   - Absent: the caller waits for the fetch. Concurrent callers for the same key
//     share one in-flight call and all receive its result.
//
// The shared fetch runs detached from any single caller's cancellation; a caller
// whose ctx ends stops waiting and gets ctx.Err().
func Fetch[T any](ctx context.Context, c *Cache, key Key, staleAfter time.Duration, fetch Fetcher[T]) (T, error) {
	var zero T
	k := key.String()

	c.mu.Lock()
	e, ok := c.store.Get(k)
	gen := c.genOf(k)
	c.mu.Unlock()

	if ok {
		if v, typed := e.value.(T); typed {
			if c.clock.Now().Sub(e.fetchedAt) < e.staleAfter {
				c.metrics.HitsTotal.WithLabelValues(key.kind()).Inc()
				return v, nil
			}
			c.metrics.StaleHitsTotal.WithLabelValues(key.kind()).Inc()
			refresh(ctx, c, key, gen, staleAfter, fetch)
			return v, nil
		}
	}

	c.metrics.MissesTotal.WithLabelValues(key.kind()).Inc()
	ch := c.group.DoChan(flightKey(k, gen), func() (any, error) {
		return load(context.WithoutCancel(ctx), c, key, gen, staleAfter, fetch)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// refresh starts a background reload of key unless one is already running.
func refresh[T any](ctx context.Context, c *Cache, key Key, gen uint64, staleAfter time.Duration, fetch Fetcher[T]) {
	k := key.String()
	c.mu.Lock()
	if _, running := c.refreshing[k]; running {
		c.mu.Unlock()
		return
	}
	c.refreshing[k] = struct{}{}
	c.mu.Unlock()

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, k)
			c.mu.Unlock()
		}()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		_, err, _ := c.group.Do(flightKey(k, gen), func() (any, error) {
			return load(rctx, c, key, gen, staleAfter, fetch)
		})
		if err != nil {
			c.log.Warn("background refresh failed, serving previous value",
				zap.String("key", k), zap.Error(err))
		}
	}()
}

func load[T any](ctx context.Context, c *Cache, key Key, gen uint64, staleAfter time.Duration, fetch Fetcher[T]) (any, error) {
	v, err := fetch(ctx)
	if err != nil {
		c.metrics.FetchErrorsTotal.WithLabelValues(key.kind()).Inc()
		return nil, err
	}
	c.storeIfCurrent(key.String(), gen, v, staleAfter)
	return v, nil
}

// storeIfCurrent writes v unless key was invalidated or patched after the fetch started.
func (c *Cache) storeIfCurrent(k string, gen uint64, v any, staleAfter time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.genOf(k) != gen {
		return
	}
	c.put(k, v, c.clock.Now(), staleAfter)
}

func (c *Cache) put(k string, v any, at time.Time, staleAfter time.Duration) {
	if !c.store.Contains(k) {
		c.metrics.Entries.Inc()
	}
	c.store.Add(k, &entry{value: v, fetchedAt: at, staleAfter: staleAfter})
}

// genOf must be called with mu held.
func (c *Cache) genOf(k string) uint64 {
	g := c.base
	if v, ok := c.gen[k]; ok {
		g = max(g, v)
	}
	if len(c.prefixGen) == 0 {
		return g
	}
	for i := 0; i <= len(k); i++ {
		if i == len(k) || k[i] == '/' {
			if v, ok := c.prefixGen[k[:i]]; ok {
				g = max(g, v)
			}
		}
	}
	return g
}

// bump gives k a new generation. Once the generation maps outgrow the store
// they are reset to a fresh base; fetches still in flight then skip their
// write-back and the next read fetches again. Must be called with mu held.
func (c *Cache) bump(k string) {
	if c.gensFull() {
		c.resetGens()
		return
	}
	c.seq++
	c.gen[k] = c.seq
}

func (c *Cache) bumpPrefix(p string) {
	if c.gensFull() {
		c.resetGens()
		return
	}
	c.seq++
	c.prefixGen[p] = c.seq
}

func (c *Cache) gensFull() bool {
	return len(c.gen)+len(c.prefixGen) >= c.maxGens
}

func (c *Cache) resetGens() {
	c.seq++
	c.base = c.seq
	clear(c.gen)
	clear(c.prefixGen)
}

func flightKey(k string, gen uint64) string {
	return fmt.Sprintf("%s#%d", k, gen)
}

// Set stores v as a fresh value of key.
func Set[T any](c *Cache, key Key, v T, staleAfter time.Duration) {
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bump(k)
	c.put(k, v, c.clock.Now(), staleAfter)
}

// Patch replaces the value of key with fn(current), keeping its fetch time.
// fn must return a new value and leave current untouched. Patch reports false
// and does nothing when key is absent.
func Patch[T any](c *Cache, key Key, fn func(T) T) bool {
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.store.Peek(k)
	if !ok {
		return false
	}
	cur, ok := e.value.(T)
	if !ok {
		return false
	}
	c.bump(k)
	c.store.Add(k, &entry{value: fn(cur), fetchedAt: e.fetchedAt, staleAfter: e.staleAfter})
	return true
}

// Invalidate drops key so the next read fetches again.
func (c *Cache) Invalidate(key Key) {
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bump(k)
	c.store.Remove(k)
	c.metrics.InvalidationsTotal.WithLabelValues(key.kind()).Inc()
}

// InvalidatePrefix drops key prefix and every key extending it by more segments,
// including results of fetches for those keys that are still in flight.
func (c *Cache) InvalidatePrefix(prefix Key) {
	p := prefix.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bumpPrefix(p)
	for _, k := range c.store.Keys() {
		if k == p || strings.HasPrefix(k, p+"/") {
			c.store.Remove(k)
		}
	}
	c.metrics.InvalidationsTotal.WithLabelValues(prefix.kind()).Inc()
}

// Purge drops every entry, including the results of fetches still in flight.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetGens()
	c.store.Purge()
	c.metrics.InvalidationsTotal.WithLabelValues("all").Inc()
}

// State reports the freshness of key.
func (c *Cache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.store.Peek(key.String())
	if !ok {
		return Absent
	}
	if c.clock.Now().Sub(e.fetchedAt) < e.staleAfter {
		return Fresh
	}
	return Stale
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return c.store.Len()
}

// Wait blocks until background refreshes started so far have finished.
func (c *Cache) Wait() {
	c.bg.Wait()
}
