// Package pricing implements the tiered feature access resolver.
//
// This file provides the freshness-bounded query cache underneath it: one
// entry per logical query, in-flight request coalescing, generation-stamped
// results so a superseded fetch never overwrites fresher data, and eviction
// after a period of disuse.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FetchFunc loads the current value for a query from its remote source.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Policy describes the freshness behavior of one cached query.
type Policy struct {
	// StaleAfter is the freshness window: a cached value younger than this
	// is served without triggering revalidation.
	StaleAfter time.Duration
	// RetryAfter is the minimum delay before a failed fetch is attempted
	// again. An explicit Invalidate clears it.
	RetryAfter time.Duration
	// EvictAfter drops the cached value once the query has gone unread for
	// this long. The registration itself survives eviction.
	EvictAfter time.Duration
	// RevalidateOnFocus marks the query for revalidation on window refocus.
	RevalidateOnFocus bool
}

type fetchResult struct {
	value interface{}
	err   error
}

// cacheEntry tracks one registered query.
type cacheEntry struct {
	policy      Policy
	fetch       FetchFunc
	onStore     func(value interface{})
	value       interface{}
	hasValue    bool
	fetchedAt   time.Time
	lastAccess  time.Time
	gen         uint64
	inflight    bool
	nextAttempt time.Time
	waiters     []chan fetchResult
}

// QueryCache is a keyed cache with stale-while-revalidate semantics. Stale
// values are served immediately while a background fetch refreshes them;
// callers block only when no value has ever been resolved.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	visible bool
}

// NewQueryCache creates an empty cache. The application is assumed visible
// until SetVisible says otherwise.
func NewQueryCache() *QueryCache {
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		visible: true,
	}
}

// Register installs a query under the given key. Registering an existing key
// replaces its policy and fetcher but keeps any cached value.
func (c *QueryCache) Register(key string, policy Policy, fetch FetchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.policy = policy
		e.fetch = fetch
		slog.Debug("QueryCache.Register: replaced query", "key", key)
		return
	}
	c.entries[key] = &cacheEntry{policy: policy, fetch: fetch}
	slog.Debug("QueryCache.Register: registered query", "key", key, "staleAfter", policy.StaleAfter)
}

// OnStore attaches a callback invoked whenever a fetched value is actually
// stored for key. A result discarded for carrying a superseded generation
// never reaches the callback, so side effects published through it follow
// last-resolved-wins.
func (c *QueryCache) OnStore(key string, fn func(value interface{})) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.onStore = fn
	}
}

// Resolve returns the cached value for key, fetching it when none exists.
// A stale cached value is returned immediately and refreshed in the
// background; only the very first resolution (or a read after eviction)
// blocks on the network.
func (c *QueryCache) Resolve(ctx context.Context, key string) (interface{}, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("query %q not registered", key)
	}

	now := time.Now()
	e.lastAccess = now

	if e.hasValue {
		value := e.value
		if c.staleLocked(e, now) && !e.inflight && !now.Before(e.nextAttempt) {
			c.startFetchLocked(key, e)
		}
		c.mu.Unlock()
		return value, nil
	}

	// No cached value: join the in-flight fetch or start one, then wait.
	ch := make(chan fetchResult, 1)
	e.waiters = append(e.waiters, ch)
	if !e.inflight {
		c.startFetchLocked(key, e)
	}
	c.mu.Unlock()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the cached value without triggering any fetch. Feature-gating
// reads go through here so a failing remote never flips resolved state.
func (c *QueryCache) Peek(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.value, true
}

// Invalidate marks the query stale and bumps its generation, so the next read
// revalidates and any in-flight result is discarded on arrival. When the
// application is visible, a background refetch starts immediately.
func (c *QueryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.invalidateLocked(key, e)
}

// InvalidateAll invalidates every registered query.
func (c *QueryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		c.invalidateLocked(key, e)
	}
}

func (c *QueryCache) invalidateLocked(key string, e *cacheEntry) {
	e.gen++
	e.fetchedAt = time.Time{}
	e.nextAttempt = time.Time{}
	slog.Debug("QueryCache.Invalidate", "key", key, "gen", e.gen)
	if e.hasValue && !e.inflight && c.visible {
		c.startFetchLocked(key, e)
	}
}

// Revalidate starts a background refetch of a previously resolved query.
// The scheduler drives this on a fixed interval; it is suspended while the
// application is not visible and skips queries that never resolved.
func (c *QueryCache) Revalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.hasValue || e.inflight {
		return
	}
	if !c.visible {
		slog.Debug("QueryCache.Revalidate skipped, application not visible", "key", key)
		return
	}
	c.startFetchLocked(key, e)
}

// NotifyFocus revalidates stale focus-sensitive queries, mirroring a window
// refocus in the client.
func (c *QueryCache) NotifyFocus() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if !e.policy.RevalidateOnFocus || !e.hasValue || e.inflight {
			continue
		}
		if c.staleLocked(e, now) && !now.Before(e.nextAttempt) {
			c.startFetchLocked(key, e)
		}
	}
}

// SetVisible records application visibility. Background revalidation is
// suspended while hidden; regaining visibility behaves like a refocus.
func (c *QueryCache) SetVisible(visible bool) {
	c.mu.Lock()
	wasVisible := c.visible
	c.visible = visible
	c.mu.Unlock()

	slog.Debug("QueryCache.SetVisible", "visible", visible)
	if visible && !wasVisible {
		c.NotifyFocus()
	}
}

// GC evicts cached values that have gone unread past their disuse window.
func (c *QueryCache) GC() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if !e.hasValue || e.inflight || e.policy.EvictAfter <= 0 {
			continue
		}
		if now.Sub(e.lastAccess) > e.policy.EvictAfter {
			e.value = nil
			e.hasValue = false
			e.fetchedAt = time.Time{}
			slog.Debug("QueryCache.GC evicted", "key", key)
		}
	}
}

func (c *QueryCache) staleLocked(e *cacheEntry, now time.Time) bool {
	return e.fetchedAt.IsZero() || now.Sub(e.fetchedAt) >= e.policy.StaleAfter
}

// startFetchLocked launches the fetch goroutine for an entry. Callers must
// hold c.mu and have checked that no fetch is in flight.
func (c *QueryCache) startFetchLocked(key string, e *cacheEntry) {
	e.inflight = true
	gen := e.gen
	fetch := e.fetch
	slog.Debug("QueryCache fetch started", "key", key, "gen", gen)

	go func() {
		value, err := fetch(context.Background())
		c.complete(key, gen, value, err)
	}()
}

// complete records a finished fetch. Results stamped with an outdated
// generation are delivered to whoever was waiting but never stored.
func (c *QueryCache) complete(key string, gen uint64, value interface{}, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	e.inflight = false
	waiters := e.waiters
	e.waiters = nil

	var onStore func(value interface{})
	now := time.Now()
	switch {
	case err != nil:
		e.nextAttempt = now.Add(e.policy.RetryAfter)
		slog.Debug("QueryCache fetch failed, cached value retained", "key", key, "error", err, "nextAttempt", e.nextAttempt)
	case e.gen != gen:
		slog.Debug("QueryCache fetch superseded, result discarded", "key", key, "gen", gen, "current", e.gen)
	default:
		e.value = value
		e.hasValue = true
		e.fetchedAt = now
		e.nextAttempt = time.Time{}
		onStore = e.onStore
		slog.Debug("QueryCache fetch succeeded", "key", key, "gen", gen)
	}
	c.mu.Unlock()

	if onStore != nil {
		onStore(value)
	}
	for _, ch := range waiters {
		ch <- fetchResult{value: value, err: err}
	}
}
