// Package cache provides the single point of access for remote price data:
// a TTL'd key/value store with in-flight request coalescing and optional
// durable snapshotting. All facade queries route through Cached so that a
// given key triggers at most one concurrent fetch.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"fruver-market/internal/metrics"
)

const (
	// Well-known storage keys for the snapshot and the last-touch timestamp.
	SnapshotKey  = "fruver_cache"
	TimestampKey = "fruver_cache_timestamp"

	// DefaultMaxIdle bounds how long a persisted snapshot survives without
	// any read or write before it is discarded wholesale on restart.
	DefaultMaxIdle = time.Hour
)

// Storage is the durable key-addressed backing store for cache snapshots.
// Implementations must tolerate absent keys; I/O failures are absorbed by
// the cache and never reach its callers.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// call is one in-flight loader shared by all coalesced callers.
type call struct {
	done chan struct{}
	val  json.RawMessage
	err  error
}

// entry holds either a resolved value or a pending call, never both.
type entry struct {
	val       json.RawMessage
	resolved  bool
	pending   *call
	expiresAt time.Time
}

type storedEntry struct {
	ExpiresAt int64           `json:"expires_at"` // unix millis
	Data      json.RawMessage `json:"data"`
}

// Cache is an injectable TTL cache with request coalescing and durable
// persistence. The zero value is not usable; construct with New.
type Cache struct {
	mu    sync.Mutex
	store map[string]*entry

	storage Storage
	log     *slog.Logger
	met     *metrics.Metrics
	maxIdle time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxIdle overrides the snapshot idle window.
func WithMaxIdle(d time.Duration) Option {
	return func(c *Cache) { c.maxIdle = d }
}

// WithClock injects a clock, used by expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.met = m }
}

// New creates a Cache and restores the durable snapshot if its last-touch
// timestamp is within the idle window. Storage may be nil for a pure
// memory cache.
func New(storage Storage, log *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:   make(map[string]*entry),
		storage: storage,
		log:     log,
		maxIdle: DefaultMaxIdle,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loadFromStorage()
	return c
}

// loadFromStorage restores valid entries from the snapshot. A snapshot
// whose last-touch is older than maxIdle is discarded entirely: it may be
// technically unexpired but belongs to a long-idle session.
func (c *Cache) loadFromStorage() {
	if c.storage == nil {
		return
	}
	ctx := context.Background()

	tsStr, ok, err := c.storage.Get(ctx, TimestampKey)
	if err != nil {
		c.snapshotError("read last-touch", err)
		return
	}
	if !ok {
		return
	}
	tsMillis, err := strconv.ParseInt(strings.TrimSpace(tsStr), 10, 64)
	if err != nil {
		c.snapshotError("parse last-touch", err)
		return
	}

	now := c.now()
	if now.Sub(time.UnixMilli(tsMillis)) > c.maxIdle {
		c.log.Info("cache snapshot staled out, discarding",
			slog.Duration("max_idle", c.maxIdle))
		c.removeQuiet(ctx, SnapshotKey)
		c.removeQuiet(ctx, TimestampKey)
		return
	}

	raw, ok, err := c.storage.Get(ctx, SnapshotKey)
	if err != nil {
		c.snapshotError("read snapshot", err)
		return
	}
	if !ok {
		return
	}

	var parsed map[string]storedEntry
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		c.snapshotError("decode snapshot", err)
		return
	}

	restored := 0
	c.mu.Lock()
	for key, se := range parsed {
		expiresAt := time.UnixMilli(se.ExpiresAt)
		if expiresAt.After(now) {
			c.store[key] = &entry{val: se.Data, resolved: true, expiresAt: expiresAt}
			restored++
		}
	}
	c.mu.Unlock()

	if restored > 0 {
		c.log.Info("cache restored from snapshot", slog.Int("entries", restored))
		if c.met != nil {
			c.met.SnapshotRestored.Set(float64(restored))
		}
		// Restoring counts as a visit.
		c.touch(ctx)
	}
}

// touch refreshes the last-touch timestamp. Failures are absorbed.
func (c *Cache) touch(ctx context.Context) {
	if c.storage == nil {
		return
	}
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	if err := c.storage.Set(ctx, TimestampKey, ts); err != nil {
		c.snapshotError("touch", err)
	}
}

// saveToStorage snapshots all currently-valid resolved entries. Failures
// are absorbed: the cache keeps working as a pure memory cache.
func (c *Cache) saveToStorage(ctx context.Context) {
	if c.storage == nil {
		return
	}
	now := c.now()

	c.mu.Lock()
	toStore := make(map[string]storedEntry, len(c.store))
	for key, e := range c.store {
		if e.resolved && e.expiresAt.After(now) {
			toStore[key] = storedEntry{ExpiresAt: e.expiresAt.UnixMilli(), Data: e.val}
		}
	}
	c.mu.Unlock()

	data, err := json.Marshal(toStore)
	if err != nil {
		c.snapshotError("encode snapshot", err)
		return
	}

	start := time.Now()
	if err := c.storage.Set(ctx, SnapshotKey, string(data)); err != nil {
		c.snapshotError("write snapshot", err)
		return
	}
	if err := c.storage.Set(ctx, TimestampKey, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		c.snapshotError("write last-touch", err)
		return
	}
	if c.met != nil {
		c.met.SnapshotPersistDur.Observe(time.Since(start).Seconds())
	}
}

func (c *Cache) snapshotError(op string, err error) {
	c.log.Warn("cache snapshot storage error", slog.String("op", op), slog.Any("error", err))
	if c.met != nil {
		c.met.SnapshotErrors.Inc()
	}
}

func (c *Cache) removeQuiet(ctx context.Context, key string) {
	if err := c.storage.Remove(ctx, key); err != nil {
		c.snapshotError("remove "+key, err)
	}
}

// Get returns the resolved value for key, or ok=false if absent, pending,
// or expired. Expired entries are evicted lazily here.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	e, found := c.store[key]
	if !found || !e.resolved {
		c.mu.Unlock()
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.store, key)
		c.mu.Unlock()
		if c.met != nil {
			c.met.CacheEvictions.Inc()
		}
		return nil, false
	}
	val := e.val
	c.mu.Unlock()

	// A read counts as a visit.
	c.touch(context.Background())
	return val, true
}

// Set stores value with expiry now+ttl, overwriting any prior entry, and
// persists the snapshot synchronously.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.store[key] = &entry{val: data, resolved: true, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()

	c.saveToStorage(ctx)
	return nil
}

// Cached implements fetch-if-stale semantics with request coalescing:
//   - a valid resolved value is returned without invoking the loader;
//   - a pending, unexpired loader for the same key is joined, so a second
//     concurrent caller never triggers a second load;
//   - otherwise the loader runs, its success is cached with a fresh TTL
//     and persisted, and its failure evicts the key so the next call
//     retries from scratch. Loader errors propagate unwrapped to every
//     coalesced caller.
func (c *Cache) Cached(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) (json.RawMessage, error) {
	now := c.now()

	c.mu.Lock()
	if e, found := c.store[key]; found {
		if e.resolved && !now.After(e.expiresAt) {
			val := e.val
			c.mu.Unlock()
			if c.met != nil {
				c.met.CacheHits.Inc()
			}
			c.touch(ctx)
			return val, nil
		}
		if e.pending != nil && !now.After(e.expiresAt) {
			cl := e.pending
			c.mu.Unlock()
			if c.met != nil {
				c.met.CacheCoalesced.Inc()
			}
			c.touch(ctx)
			return c.wait(ctx, cl)
		}
	}

	// Miss: register a pending computation under the provisional TTL.
	cl := &call{done: make(chan struct{})}
	c.store[key] = &entry{pending: cl, expiresAt: now.Add(ttl)}
	c.mu.Unlock()

	if c.met != nil {
		c.met.CacheMisses.Inc()
	}
	c.log.Debug("cache miss, loading", slog.String("key", key))

	go c.runLoader(key, ttl, cl, loader)
	return c.wait(ctx, cl)
}

// runLoader executes the loader to completion regardless of caller
// interest; there is no cancellation once a load is registered.
func (c *Cache) runLoader(key string, ttl time.Duration, cl *call, loader func(ctx context.Context) (any, error)) {
	start := time.Now()
	value, err := loader(context.Background())
	if c.met != nil {
		c.met.LoaderDur.Observe(time.Since(start).Seconds())
	}

	var data json.RawMessage
	if err == nil {
		data, err = json.Marshal(value)
	}

	c.mu.Lock()
	cur, found := c.store[key]
	if err != nil {
		// Evict so the next call retries; never cache a failure.
		if found && cur.pending == cl {
			delete(c.store, key)
		}
		c.mu.Unlock()
		if c.met != nil {
			c.met.CacheEvictions.Inc()
		}
		cl.err = err
		close(cl.done)
		return
	}

	if found && cur.pending == cl {
		// Fresh TTL from completion time.
		c.store[key] = &entry{val: data, resolved: true, expiresAt: c.now().Add(ttl)}
	}
	c.mu.Unlock()

	cl.val = data
	close(cl.done)

	c.saveToStorage(context.Background())
}

// wait blocks until the shared call completes or ctx is done. Abandoning
// the wait does not cancel the underlying load.
func (c *Cache) wait(ctx context.Context, cl *call) (json.RawMessage, error) {
	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate evicts every entry whose key starts with prefix and persists
// the reduced snapshot.
func (c *Cache) Invalidate(ctx context.Context, prefix string) {
	c.mu.Lock()
	evicted := 0
	for key := range c.store {
		if strings.HasPrefix(key, prefix) {
			delete(c.store, key)
			evicted++
		}
	}
	c.mu.Unlock()

	if c.met != nil {
		c.met.CacheEvictions.Add(float64(evicted))
	}
	c.saveToStorage(ctx)
}

// Clear evicts everything and wipes durable storage.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.store = make(map[string]*entry)
	c.mu.Unlock()

	if c.storage != nil {
		c.removeQuiet(ctx, SnapshotKey)
		c.removeQuiet(ctx, TimestampKey)
	}
	c.log.Info("cache cleared")
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// CachedAs wraps Cache.Cached with typed decoding. Every caller decodes
// its own copy of the shared bytes, so returned values are private even
// across coalesced callers.
func CachedAs[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, loader func(ctx context.Context) (T, error)) (T, error) {
	raw, err := c.Cached(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	var out T
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

// GetAs decodes the cached value for key into T.
func GetAs[T any](c *Cache, key string) (T, bool) {
	var out T
	raw, ok := c.Get(key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}
