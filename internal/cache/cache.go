// Package cache is the TTL cache shared by every provider-facing component.
//
// Entries expire a fixed TTL after insertion and are evicted when read
// after expiry. There is no background sweep. Writes are last-writer-wins.
package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/i474232898/venue-context-aggregation/internal/clock"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
)

// DefaultMaxEntries bounds the cache when no explicit size is configured.
const DefaultMaxEntries = 10_000

// Entry is a cached value and the instant it was stored.
type Entry struct {
	Value      any
	InsertedAt time.Time
}

// Cache is a bounded key/value store backed by otter.
type Cache struct {
	store *otter.Cache[string, Entry]
	clock clock.Clock
}

// New builds a cache holding at most maxEntries values.
func New(maxEntries int, clk clock.Clock) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Cache{
		store: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:     maxEntries,
			InitialCapacity: min(maxEntries, 1024),
		}),
		clock: clk,
	}
}

// Namespace returns a view of the cache with its own key prefix and TTL.
func (c *Cache) Namespace(name string, ttl time.Duration) *Namespace {
	return &Namespace{name: name, ttl: ttl, cache: c}
}

// Len returns the approximate number of stored entries, expired ones included.
func (c *Cache) Len() int {
	return c.store.EstimatedSize()
}

func (c *Cache) get(key string, ttl time.Duration) (any, bool) {
	entry, ok := c.store.GetIfPresent(key)
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(entry.InsertedAt) > ttl {
		c.store.Invalidate(key)
		return nil, false
	}
	return entry.Value, true
}

func (c *Cache) set(key string, value any) {
	c.store.Set(key, Entry{Value: value, InsertedAt: c.clock.Now()})
}

// Namespace is a TTL-scoped slice of a Cache. A nil Namespace never hits
// and drops writes, so components work uncached in tests.
type Namespace struct {
	name  string
	ttl   time.Duration
	cache *Cache
}

// Name returns the namespace label used in keys and metrics.
func (n *Namespace) Name() string {
	if n == nil {
		return ""
	}
	return n.name
}

// TTL returns the namespace expiry window.
func (n *Namespace) TTL() time.Duration {
	if n == nil {
		return 0
	}
	return n.ttl
}

// Get returns the live value for key.
func (n *Namespace) Get(key string) (any, bool) {
	if n == nil || n.cache == nil {
		return nil, false
	}
	v, ok := n.cache.get(n.name+"|"+key, n.ttl)
	metrics.RecordCacheLookup(n.name, ok)
	return v, ok
}

// Set stores value under key, replacing any existing entry.
func (n *Namespace) Set(key string, value any) {
	if n == nil || n.cache == nil {
		return
	}
	n.cache.set(n.name+"|"+key, value)
}

// Fetch is a read-through lookup: a live entry of type T is returned as is,
// otherwise load runs and its result is stored. Errors are never cached.
func Fetch[T any](ctx context.Context, n *Namespace, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := n.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	n.Set(key, v)
	return v, nil
}
