// Package cache memoizes deterministic prediction results for a bounded
// time.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics receives hit and miss counts.
type Metrics interface {
	IncrementCacheHit()
	IncrementCacheMiss()
}

// CacheItem represents a cached item with expiration
type CacheItem struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the cache item has expired at now
func (c *CacheItem) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Cache provides thread-safe caching with TTL
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*CacheItem
	ttl     time.Duration
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time

	stop    chan struct{}
	done    chan struct{}
	started atomic.Bool
	once    sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics reports hits and misses.
func WithMetrics(m Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates a new cache with the specified TTL. Call StartCleanup to
// evict expired items in the background.
func NewCache(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		items:  make(map[string]*CacheItem),
		ttl:    ttl,
		logger: slog.Default(),
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartCleanup removes expired items on every interval until Close.
func (c *Cache) StartCleanup(interval time.Duration) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				c.Purge()
			}
		}
	}()
}

// Close stops the cleanup goroutine, if it was started, and waits for it.
func (c *Cache) Close() {
	c.once.Do(func() {
		close(c.stop)
	})
	if c.started.Load() {
		<-c.done
	}
}

// Purge deletes expired items and returns how many were removed.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Key derives a stable key from a namespace and a JSON-encodable value.
// encoding/json sorts map keys, so equal maps produce equal keys.
func Key(namespace string, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	hash := sha256.New()
	hash.Write([]byte(namespace))
	hash.Write([]byte{0})
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Get retrieves an item from the cache
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || item.IsExpired(c.now()) {
		c.count(false)
		return nil, false
	}
	c.count(true)
	return item.Data, true
}

// Set stores an item in the cache
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	}
}

// RememberIf decodes the cached JSON for key, or calls compute and stores
// the JSON of its result when keep accepts it. A nil keep stores every
// value. The boolean reports a cache hit. Errors from compute are returned
// and nothing is stored.
func RememberIf[T any](c *Cache, key string, compute func() (T, error), keep func(T) bool) (T, bool, error) {
	if data, ok := c.Get(key); ok {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			c.logger.Debug("Cache hit", "key_hash", shortKey(key))
			return cached, true, nil
		}
		c.Delete(key)
	}

	value, err := compute()
	if err != nil {
		return value, false, err
	}
	if keep != nil && !keep(value) {
		return value, false, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Result not cacheable", "error", err)
		return value, false, nil
	}
	c.Set(key, data)
	return value, false, nil
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8] + "..."
	}
	return key
}

func (c *Cache) count(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.IncrementCacheHit()
	} else {
		c.metrics.IncrementCacheMiss()
	}
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear removes all items from the cache and returns how many there were.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = make(map[string]*CacheItem)
	return n
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	totalItems := len(c.items)
	expiredItems := 0
	for _, item := range c.items {
		if item.IsExpired(now) {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"total_items":   totalItems,
		"expired_items": expiredItems,
		"active_items":  totalItems - expiredItems,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}
