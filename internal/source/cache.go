package source

import (
	"context"
	"sync"
	"time"

	"github.com/franz/genre-tagger/internal/util"
)

// CacheBackend persists cache entries. The SQLite store and the Redis
// backend both implement it.
type CacheBackend interface {
	GetEntry(ctx context.Context, key string, now time.Time) ([]byte, bool, error)
	PutEntry(ctx context.Context, key, source string, value []byte, expiresAt time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// CacheOptions configures a ResponseCache
type CacheOptions struct {
	TTL         time.Duration // lifetime of positive entries
	NegativeTTL time.Duration // lifetime of "no result" entries, capped at TTL
	PurgeEvery  int           // purge expired entries every N writes, 0 disables
}

// DefaultCacheOptions returns a 24h TTL, 6h negative TTL and purge every 200 writes
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		TTL:         24 * time.Hour,
		NegativeTTL: 6 * time.Hour,
		PurgeEvery:  200,
	}
}

// ResponseCache is a key/value cache with per-entry expiry. Keys come from
// util.CacheKey; Get only returns entries whose expiry is still in the future.
type ResponseCache struct {
	backend CacheBackend
	opts    CacheOptions

	mu     sync.Mutex
	writes int

	// Now is replaceable for tests
	Now func() time.Time
}

// NewResponseCache wraps backend
func NewResponseCache(backend CacheBackend, opts CacheOptions) *ResponseCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheOptions().TTL
	}
	if opts.NegativeTTL <= 0 || opts.NegativeTTL > opts.TTL {
		opts.NegativeTTL = opts.TTL
	}
	return &ResponseCache{
		backend: backend,
		opts:    opts,
		Now:     time.Now,
	}
}

// TTL returns the lifetime for an entry. Negative entries use the shorter lifetime.
func (c *ResponseCache) TTL(found bool) time.Duration {
	if found {
		return c.opts.TTL
	}
	return c.opts.NegativeTTL
}

// Get returns the stored value for key if it has not expired
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	value, ok, err := c.backend.GetEntry(ctx, key, c.Now())
	if err != nil {
		util.WarnLog("Cache read failed for %s: %v", key, err)
		return nil, false
	}
	return value, ok
}

// Set stores value under key, overwriting any previous entry
func (c *ResponseCache) Set(ctx context.Context, key, source string, value []byte, ttl time.Duration) {
	if c == nil {
		return
	}
	now := c.Now()
	if err := c.backend.PutEntry(ctx, key, source, value, now.Add(ttl)); err != nil {
		util.WarnLog("Cache write failed for %s: %v", key, err)
		return
	}

	if c.opts.PurgeEvery <= 0 {
		return
	}
	c.mu.Lock()
	c.writes++
	due := c.writes%c.opts.PurgeEvery == 0
	c.mu.Unlock()

	if due {
		if n, err := c.backend.PurgeExpired(ctx, now); err != nil {
			util.WarnLog("Cache purge failed: %v", err)
		} else if n > 0 {
			util.DebugLog("Cache: purged %d expired entries", n)
		}
	}
}
