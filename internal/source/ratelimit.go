package source

import (
	"context"
	"sync"
	"time"

	"github.com/franz/genre-tagger/internal/util"
	"golang.org/x/time/rate"
)

// Limit is the request budget for one source
type Limit struct {
	MaxRequests int           // requests allowed per Window
	Window      time.Duration // sliding window length
	Delay       time.Duration // fixed spacing between consecutive requests
}

// DefaultLimits returns the per-source budgets the public APIs document
func DefaultLimits() map[Name]Limit {
	return map[Name]Limit{
		MusicBrainz: {MaxRequests: 50, Window: 60 * time.Second, Delay: time.Second},
		LastFM:      {MaxRequests: 300, Window: 60 * time.Second, Delay: 100 * time.Millisecond},
		Discogs:     {MaxRequests: 60, Window: 60 * time.Second, Delay: time.Second},
		Spotify:     {MaxRequests: 100, Window: 30 * time.Second},
		Deezer:      {MaxRequests: 50, Window: 5 * time.Second},
	}
}

// RequestLog records request events and counts them per source.
// The SQLite store and the Redis window counter both implement it.
type RequestLog interface {
	LogRequest(ctx context.Context, source string, at time.Time) error
	CountRequests(ctx context.Context, source string, since time.Time) (int, error)
}

// RateLimiter enforces a sliding-window budget per source. When the window is
// full it blocks for the whole window length; it is not a token bucket.
type RateLimiter struct {
	log    RequestLog
	limits map[Name]Limit

	mu     sync.Mutex
	pacers map[Name]*rate.Limiter

	// Now and Sleep are replaceable for tests
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	// OnThrottle, if set, is called whenever a full window forces a wait
	OnThrottle func(name Name, count int, wait time.Duration)
}

// NewRateLimiter creates a limiter backed by log. Sources without an entry in
// limits are never throttled.
func NewRateLimiter(log RequestLog, limits map[Name]Limit) *RateLimiter {
	return &RateLimiter{
		log:    log,
		limits: limits,
		pacers: make(map[Name]*rate.Limiter),
		Now:    time.Now,
		Sleep:  util.SleepContext,
	}
}

// Limit returns the configured budget for name
func (r *RateLimiter) Limit(name Name) (Limit, bool) {
	if r == nil {
		return Limit{}, false
	}
	l, ok := r.limits[name]
	return l, ok
}

// Wait blocks until a request to name may proceed
func (r *RateLimiter) Wait(ctx context.Context, name Name) error {
	if r == nil {
		return ctx.Err()
	}
	limit, ok := r.limits[name]
	if !ok {
		return ctx.Err()
	}

	if limit.MaxRequests > 0 && limit.Window > 0 && r.log != nil {
		count, err := r.log.CountRequests(ctx, string(name), r.Now().Add(-limit.Window))
		if err != nil {
			util.WarnLog("Rate limiter: counting %s requests failed: %v", name, err)
		} else if count >= limit.MaxRequests {
			util.InfoLog("Rate limit reached for %s (%d requests in %v), sleeping for %v",
				name.DisplayName(), count, limit.Window, limit.Window)
			if r.OnThrottle != nil {
				r.OnThrottle(name, count, limit.Window)
			}
			if err := r.Sleep(ctx, limit.Window); err != nil {
				return err
			}
		}
	}

	if pacer := r.pacer(name, limit.Delay); pacer != nil {
		return pacer.Wait(ctx)
	}
	return ctx.Err()
}

// Record logs one request event for future window counting
func (r *RateLimiter) Record(ctx context.Context, name Name) {
	if r == nil || r.log == nil {
		return
	}
	if _, ok := r.limits[name]; !ok {
		return
	}
	if err := r.log.LogRequest(ctx, string(name), r.Now()); err != nil {
		util.WarnLog("Rate limiter: logging %s request failed: %v", name, err)
	}
}

func (r *RateLimiter) pacer(name Name, delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pacers[name]
	if !ok {
		p = rate.NewLimiter(rate.Every(delay), 1)
		r.pacers[name] = p
	}
	return p
}

// MemoryRequestLog is an in-process RequestLog, used when no store is wired
type MemoryRequestLog struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryRequestLog creates an empty log
func NewMemoryRequestLog() *MemoryRequestLog {
	return &MemoryRequestLog{events: make(map[string][]time.Time)}
}

// LogRequest implements RequestLog
func (m *MemoryRequestLog) LogRequest(_ context.Context, source string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[source] = append(m.events[source], at)
	return nil
}

// CountRequests implements RequestLog. Events older than since are dropped.
func (m *MemoryRequestLog) CountRequests(_ context.Context, source string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[source][:0]
	for _, at := range m.events[source] {
		if at.After(since) {
			kept = append(kept, at)
		}
	}
	m.events[source] = kept
	return len(kept), nil
}
