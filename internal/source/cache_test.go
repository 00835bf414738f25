package source

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	purges  int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{entries: make(map[string]memoryEntry)}
}

func (m *memoryBackend) GetEntry(_ context.Context, key string, now time.Time) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !e.expiresAt.After(now) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *memoryBackend) PutEntry(_ context.Context, key, _ string, value []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (m *memoryBackend) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purges++
	var n int64
	for k, e := range m.entries {
		if !e.expiresAt.After(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

type failingBackend struct{}

func (failingBackend) GetEntry(context.Context, string, time.Time) ([]byte, bool, error) {
	return nil, false, errors.New("disk on fire")
}
func (failingBackend) PutEntry(context.Context, string, string, []byte, time.Time) error {
	return errors.New("disk on fire")
}
func (failingBackend) PurgeExpired(context.Context, time.Time) (int64, error) { return 0, nil }

func newTestCache(backend CacheBackend, opts CacheOptions) (*ResponseCache, *time.Time) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	c := NewResponseCache(backend, opts)
	c.Now = func() time.Time { return now }
	return c, &now
}

func TestResponseCacheRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	c, now := newTestCache(newMemoryBackend(), CacheOptions{TTL: time.Hour})

	c.Set(ctx, "k", "spotify", []byte(`{"found":true}`), time.Hour)
	got, ok := c.Get(ctx, "k")
	if !ok || !bytes.Equal(got, []byte(`{"found":true}`)) {
		t.Fatalf("expected round trip, got %q ok=%v", got, ok)
	}

	*now = now.Add(time.Hour + time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected entry to be expired after TTL")
	}
}

func TestResponseCacheOverwrites(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(newMemoryBackend(), CacheOptions{TTL: time.Hour})

	c.Set(ctx, "k", "deezer", []byte("one"), time.Hour)
	c.Set(ctx, "k", "deezer", []byte("two"), time.Hour)
	got, _ := c.Get(ctx, "k")
	if string(got) != "two" {
		t.Errorf("expected overwrite, got %q", got)
	}
}

func TestResponseCacheNegativeTTL(t *testing.T) {
	c, _ := newTestCache(newMemoryBackend(), CacheOptions{TTL: 24 * time.Hour, NegativeTTL: 48 * time.Hour})
	if c.TTL(false) != 24*time.Hour {
		t.Errorf("negative TTL must be capped at TTL, got %v", c.TTL(false))
	}

	c, _ = newTestCache(newMemoryBackend(), CacheOptions{TTL: 24 * time.Hour, NegativeTTL: time.Hour})
	if c.TTL(false) != time.Hour || c.TTL(true) != 24*time.Hour {
		t.Errorf("unexpected TTLs: positive %v negative %v", c.TTL(true), c.TTL(false))
	}
}

func TestResponseCachePurgesOpportunistically(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	c, now := newTestCache(backend, CacheOptions{TTL: time.Hour, PurgeEvery: 3})

	c.Set(ctx, "old", "lastfm", []byte("x"), time.Minute)
	*now = now.Add(2 * time.Minute)
	c.Set(ctx, "a", "lastfm", []byte("x"), time.Hour)
	if backend.purges != 0 {
		t.Fatalf("purge ran too early")
	}
	c.Set(ctx, "b", "lastfm", []byte("x"), time.Hour)
	if backend.purges != 1 {
		t.Fatalf("expected one purge after 3 writes, got %d", backend.purges)
	}
	if _, ok := backend.entries["old"]; ok {
		t.Error("expected expired entry to be evicted")
	}
}

func TestResponseCacheBackendErrorsAreMisses(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(failingBackend{}, CacheOptions{TTL: time.Hour})
	c.Set(ctx, "k", "discogs", []byte("x"), time.Hour)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected backend failure to read as a miss")
	}
}
