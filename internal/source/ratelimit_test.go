package source

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestLimiter(max int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(NewMemoryRequestLog(), map[Name]Limit{
		MusicBrainz: {MaxRequests: max, Window: window},
	})
	rl.Now = clock.Now
	rl.Sleep = clock.Sleep
	return rl, clock
}

func TestRateLimiterWaitsWhenWindowFull(t *testing.T) {
	ctx := context.Background()
	rl, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx, MusicBrainz); err != nil {
			t.Fatalf("Wait #%d: %v", i+1, err)
		}
		rl.Record(ctx, MusicBrainz)
		clock.now = clock.now.Add(time.Second)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("expected no sleeps within budget, got %v", clock.sleeps)
	}

	// Fourth request inside the same window must wait a full window
	if err := rl.Wait(ctx, MusicBrainz); err != nil {
		t.Fatalf("Wait #4: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != time.Minute {
		t.Fatalf("expected one sleep of 1m, got %v", clock.sleeps)
	}
	rl.Record(ctx, MusicBrainz)

	// After the window rolls over the next call proceeds immediately
	clock.now = clock.now.Add(2 * time.Minute)
	if err := rl.Wait(ctx, MusicBrainz); err != nil {
		t.Fatalf("Wait #5: %v", err)
	}
	if len(clock.sleeps) != 1 {
		t.Errorf("expected no additional sleep after rollover, got %v", clock.sleeps)
	}
}

func TestRateLimiterIgnoresUnknownSource(t *testing.T) {
	rl, clock := newTestLimiter(1, time.Minute)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := rl.Wait(ctx, Deezer); err != nil {
			t.Fatal(err)
		}
		rl.Record(ctx, Deezer)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("expected unlimited source to never sleep, got %v", clock.sleeps)
	}
}

func TestRateLimiterThrottleCallback(t *testing.T) {
	rl, _ := newTestLimiter(1, 30*time.Second)
	var throttled []Name
	rl.OnThrottle = func(name Name, count int, wait time.Duration) {
		throttled = append(throttled, name)
	}
	ctx := context.Background()

	_ = rl.Wait(ctx, MusicBrainz)
	rl.Record(ctx, MusicBrainz)
	_ = rl.Wait(ctx, MusicBrainz)

	if len(throttled) != 1 || throttled[0] != MusicBrainz {
		t.Errorf("expected one throttle event for musicbrainz, got %v", throttled)
	}
}

func TestRateLimiterHonorsCancellation(t *testing.T) {
	rl := NewRateLimiter(NewMemoryRequestLog(), map[Name]Limit{
		LastFM: {MaxRequests: 1, Window: time.Hour},
	})
	ctx, cancel := context.WithCancel(context.Background())
	_ = rl.Wait(ctx, LastFM)
	rl.Record(ctx, LastFM)
	cancel()

	if err := rl.Wait(ctx, LastFM); err == nil {
		t.Error("expected cancellation error while waiting on a full window")
	}
}

func TestNilRateLimiterIsNoop(t *testing.T) {
	var rl *RateLimiter
	if err := rl.Wait(context.Background(), Spotify); err != nil {
		t.Errorf("nil limiter Wait: %v", err)
	}
	rl.Record(context.Background(), Spotify)
}
