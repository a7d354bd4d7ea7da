package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/fetchops/clock"
)

// FetchFunc produces a fresh value for a key.
type FetchFunc func(ctx context.Context) (any, error)

// SWRConfig configures the stale-while-revalidate cache.
type SWRConfig struct {
	// Clock supplies expiry decisions. Default: clock.System()
	Clock clock.Clock

	// Capacity bounds the number of entries. When set, the least recently
	// used entry is evicted before a new key is inserted, so the cache
	// never exceeds Capacity. Zero means unbounded.
	Capacity int

	// OnRefreshFailure is called when a background refresh fails. The
	// failure is never surfaced to callers, who already hold stale data.
	OnRefreshFailure func(key string, err error)
}

// swrEntry is one cached value. Mutations happen under the cache lock, so
// readers see either the old or the new value, never a torn one.
type swrEntry struct {
	value      any
	storedAt   time.Time
	ttl        time.Duration
	refreshing bool
	elem       *list.Element
}

// SWR is a TTL cache that serves stale data while refreshing in the
// background.
//
// A hit inside the TTL returns immediately. A hit past the TTL returns the
// stale value and kicks off at most one background refresh per key; if the
// refresh fails the stale value is kept. A miss blocks the caller on a
// synchronous fetch, with concurrent misses for the same key collapsed into
// one fetch.
type SWR struct {
	config SWRConfig

	mu      sync.Mutex
	entries map[string]*swrEntry
	order   *list.List // LRU order, front = most recently used

	miss singleflight.Group // collapses synchronous miss fetches per key
}

// NewSWR creates a stale-while-revalidate cache.
func NewSWR(config SWRConfig) *SWR {
	if config.Clock == nil {
		config.Clock = clock.System()
	}

	return &SWR{
		config:  config,
		entries: make(map[string]*swrEntry),
		order:   list.New(),
	}
}

// GetOrFetch returns the cached value for key, fetching it when absent.
//
// Errors from a synchronous miss fetch propagate to the caller and nothing
// is stored. Errors from a background refresh are reported through
// OnRefreshFailure only.
func (c *SWR) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok {
		c.order.MoveToFront(entry.elem)
		value := entry.value
		fresh := c.config.Clock.Since(entry.storedAt) < entry.ttl

		if fresh {
			c.mu.Unlock()
			return value, nil
		}

		// Stale: serve the old value and revalidate in the background,
		// at most one refresh per key.
		if !entry.refreshing {
			entry.refreshing = true
			go c.refresh(ctx, key, ttl, fetch)
		}
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	// Miss: the caller blocks on the fetch. Concurrent misses for the same
	// key join the first fetch instead of issuing their own.
	val, err, _ := c.miss.Do(key, func() (any, error) {
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, val, ttl)
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Get returns the cached value without fetching. The second return reports
// presence, the third freshness.
func (c *SWR) Get(key string) (any, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	c.order.MoveToFront(entry.elem)
	fresh := c.config.Clock.Since(entry.storedAt) < entry.ttl
	return entry.value, true, fresh
}

// Delete removes a key. Idempotent.
func (c *SWR) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		c.order.Remove(entry.elem)
		delete(c.entries, key)
	}
}

// Len returns the number of cached entries.
func (c *SWR) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// refresh revalidates one key in the background. The refresh outlives the
// triggering caller, so it runs on a detached context.
func (c *SWR) refresh(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) {
	val, err := fetch(context.WithoutCancel(ctx))

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok {
		entry.refreshing = false
		if err == nil {
			entry.value = val
			entry.storedAt = c.config.Clock.Now()
			entry.ttl = ttl
		}
	}
	c.mu.Unlock()

	if err != nil && c.config.OnRefreshFailure != nil {
		c.config.OnRefreshFailure(key, err)
	}
}

// store inserts or replaces an entry, evicting the least recently used key
// first when the cache is at capacity.
func (c *SWR) store(key string, val any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.value = val
		entry.storedAt = c.config.Clock.Now()
		entry.ttl = ttl
		entry.refreshing = false
		c.order.MoveToFront(entry.elem)
		return
	}

	if c.config.Capacity > 0 && len(c.entries) >= c.config.Capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(string))
		}
	}

	entry := &swrEntry{
		value:    val,
		storedAt: c.config.Clock.Now(),
		ttl:      ttl,
	}
	entry.elem = c.order.PushFront(key)
	c.entries[key] = entry
}
