// Package redisstore backs the response cache and the request log with
// Redis, so several mgt processes can share one rate budget per source.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/franz/genre-tagger/internal/source"
)

const (
	cachePrefix    = "mgt:cache:"
	requestsPrefix = "mgt:ratelimit:"
	dailyPrefix    = "mgt:requests:"

	// Request log entries older than this are trimmed on write
	logRetention = 24 * time.Hour
)

var (
	_ source.CacheBackend = (*Store)(nil)
	_ source.RequestLog   = (*Store)(nil)
)

// Store implements source.CacheBackend and source.RequestLog on Redis
type Store struct {
	rdb *redis.Client
	seq atomic.Uint64
}

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Open connects to Redis and verifies the connection
func Open(ctx context.Context, opts Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return New(rdb), nil
}

// New wraps an existing client
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Close closes the client
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// GetEntry implements source.CacheBackend. Redis expires keys itself, so now is unused.
func (s *Store) GetEntry(ctx context.Context, key string, _ time.Time) ([]byte, bool, error) {
	data, err := s.rdb.Get(ctx, cachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

// PutEntry implements source.CacheBackend
func (s *Store) PutEntry(ctx context.Context, key, _ string, value []byte, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, cachePrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// PurgeExpired implements source.CacheBackend; key expiry makes it a no-op
func (s *Store) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Clear deletes every cache and request-log key
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var removed int64
	for _, pattern := range []string{cachePrefix + "*", requestsPrefix + "*"} {
		iter := s.rdb.Scan(ctx, 0, pattern, 500).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == 500 {
				n, err := s.rdb.Del(ctx, batch...).Result()
				if err != nil {
					return removed, fmt.Errorf("redis del: %w", err)
				}
				removed += n
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return removed, fmt.Errorf("redis scan: %w", err)
		}
		if len(batch) > 0 {
			n, err := s.rdb.Del(ctx, batch...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += n
		}
	}
	return removed, nil
}

// LogRequest implements source.RequestLog. Each source has a sorted set of
// request timestamps; the daily counter feeds `mgt cache stats`.
func (s *Store) LogRequest(ctx context.Context, src string, at time.Time) error {
	key := requestsPrefix + src
	member := strconv.FormatInt(at.UnixNano(), 10) + "-" + strconv.FormatUint(s.seq.Add(1), 10)
	daily := dailyPrefix + src + ":" + at.UTC().Format("20060102")

	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixNano()), Member: member})
		p.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(at.Add(-logRetention).UnixNano(), 10))
		p.Expire(ctx, key, logRetention)
		p.Incr(ctx, daily)
		p.Expire(ctx, daily, 48*time.Hour)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis log request: %w", err)
	}
	return nil
}

// CountRequests implements source.RequestLog
func (s *Store) CountRequests(ctx context.Context, src string, since time.Time) (int, error) {
	n, err := s.rdb.ZCount(ctx, requestsPrefix+src, "("+strconv.FormatInt(since.UnixNano(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("redis count requests: %w", err)
	}
	return int(n), nil
}

// RequestsOn returns the number of requests made to src on day (UTC)
func (s *Store) RequestsOn(ctx context.Context, src string, day time.Time) (int64, error) {
	n, err := s.rdb.Get(ctx, dailyPrefix+src+":"+day.UTC().Format("20060102")).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
