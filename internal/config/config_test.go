package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/franz/genre-tagger/internal/source"
	"github.com/franz/genre-tagger/internal/util"
)

func loadYAML(t *testing.T, doc string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(doc)); err != nil {
		t.Fatalf("failed to read yaml: %v", err)
	}
	return Load(v)
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	if !cfg.DryRun || cfg.PreserveExisting {
		t.Error("expected dry_run=true and preserve_existing=false by default")
	}
	th := cfg.Thresholds()
	if th.AutoApply != 95 || th.Review != 70 || th.Skip != 40 {
		t.Errorf("thresholds = %+v", th)
	}
	if cfg.MaxGenres != 5 || cfg.MinGenreScore != 0.3 {
		t.Errorf("max_genres=%d min_genre_score=%v", cfg.MaxGenres, cfg.MinGenreScore)
	}

	order := cfg.Order()
	want := []source.Name{source.Spotify, source.MusicBrainz, source.Deezer, source.LastFM, source.Discogs}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}

	if w := cfg.Weights()[source.MusicBrainz]; w != 0.85 {
		t.Errorf("musicbrainz weight = %v", w)
	}
	if l := cfg.Limits()[source.LastFM]; l.MaxRequests != 300 || l.Window != time.Minute || l.Delay != 100*time.Millisecond {
		t.Errorf("lastfm limit = %+v", l)
	}
	if opts := cfg.CacheOptions(); opts.TTL != 24*time.Hour || opts.NegativeTTL != 6*time.Hour {
		t.Errorf("cache options = %+v", opts)
	}
	if cfg.HTTPTimeout() != 15*time.Second {
		t.Errorf("http timeout = %v", cfg.HTTPTimeout())
	}
	if cfg.DB != "mgt-state.db" || cfg.CacheBackend != "sqlite" {
		t.Errorf("db=%q backend=%q", cfg.DB, cfg.CacheBackend)
	}
}

func TestFileOverrides(t *testing.T) {
	cfg, err := loadYAML(t, `
dry_run: false
confidence_threshold: 90
source_order: [musicbrainz, deezer]
source_weights:
  deezer: 0.9
rate_limits:
  musicbrainz:
    requests: 10
    window_seconds: 10
    delay_ms: 500
`)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DryRun {
		t.Error("dry_run not overridden")
	}
	if cfg.Thresholds().AutoApply != 90 {
		t.Errorf("auto-apply = %v", cfg.Thresholds().AutoApply)
	}
	if got := cfg.Order(); len(got) != 2 || got[0] != source.MusicBrainz {
		t.Errorf("order = %v", got)
	}

	w := cfg.Weights()
	if w[source.Deezer] != 0.9 || w[source.Spotify] != 1.0 {
		t.Errorf("weights = %v", w)
	}

	l := cfg.Limits()
	if l[source.MusicBrainz] != (source.Limit{MaxRequests: 10, Window: 10 * time.Second, Delay: 500 * time.Millisecond}) {
		t.Errorf("musicbrainz limit = %+v", l[source.MusicBrainz])
	}
	if l[source.Discogs].MaxRequests != 60 {
		t.Errorf("untouched discogs limit changed: %+v", l[source.Discogs])
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("MGT_DRY_RUN", "false")
	t.Setenv("MGT_MAX_GENRES", "3")
	t.Setenv("MGT_SPOTIFY_CLIENT_ID", "id")
	t.Setenv("MGT_SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("MGT_LASTFM_API_KEY", "key")
	t.Setenv("MGT_DISCOGS_TOKEN", "token")

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DryRun || cfg.MaxGenres != 3 {
		t.Errorf("env overrides not applied: dry_run=%v max_genres=%d", cfg.DryRun, cfg.MaxGenres)
	}
	want := Credentials{SpotifyClientID: "id", SpotifyClientSecret: "secret", LastFMAPIKey: "key", DiscogsToken: "token"}
	if cfg.Credentials != want {
		t.Errorf("credentials = %+v", cfg.Credentials)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"threshold out of range", "confidence_threshold: 120", "ConfidenceThreshold"},
		{"thresholds out of order", "review_threshold: 30", "ReviewThreshold"},
		{"unknown source in order", "source_order: [spotify, napster]", "unknown source"},
		{"unknown weight key", "source_weights:\n  napster: 0.5", "unknown source"},
		{"weight above one", "source_weights:\n  spotify: 1.5", "SourceWeights"},
		{"bad backend", "cache_backend: memcached", "one of"},
		{"zero ttl", "cache_ttl_hours: 0", "CacheTTLHours"},
		{"zero rate", "rate_limits:\n  deezer:\n    requests: 0", "Requests"},
		{"duplicate source", "source_order: [spotify, spotify]", "SourceOrder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.doc)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, util.ErrInvalidConfig) {
				t.Errorf("error should wrap ErrInvalidConfig: %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestRedisRequiresAddress(t *testing.T) {
	_, err := loadYAML(t, "cache_backend: redis\nredis:\n  addr: \"\"")
	if err == nil || !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected invalid config, got %v", err)
	}
}
