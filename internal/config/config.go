// Package config loads and validates the tagger configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/franz/genre-tagger/internal/policy"
	"github.com/franz/genre-tagger/internal/source"
	"github.com/franz/genre-tagger/internal/util"
)

// EnvPrefix is the prefix of every environment override (MGT_DRY_RUN, ...)
const EnvPrefix = "MGT"

// Config is the full runtime configuration
type Config struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" validate:"gte=0,lte=100,gtefield=ReviewThreshold"`
	ReviewThreshold     float64 `mapstructure:"review_threshold" validate:"gte=0,lte=100,gtefield=SkipThreshold"`
	SkipThreshold       float64 `mapstructure:"skip_threshold" validate:"gte=0,lte=100"`

	DryRun           bool    `mapstructure:"dry_run"`
	PreserveExisting bool    `mapstructure:"preserve_existing"`
	MaxGenres        int     `mapstructure:"max_genres" validate:"gte=1,lte=20"`
	MinGenreScore    float64 `mapstructure:"min_genre_score" validate:"gte=0"`
	GenreConfig      string  `mapstructure:"genre_config"`

	SourceOrder   []string                   `mapstructure:"source_order" validate:"min=1,unique,dive,source"`
	SourceWeights map[string]float64         `mapstructure:"source_weights" validate:"dive,keys,source,endkeys,gte=0,lte=1"`
	RateLimits    map[string]RateLimitConfig `mapstructure:"rate_limits" validate:"dive,keys,source,endkeys"`

	CacheTTLHours         float64     `mapstructure:"cache_ttl_hours" validate:"gt=0"`
	CacheNegativeTTLHours float64     `mapstructure:"cache_negative_ttl_hours" validate:"gt=0"`
	CacheBackend          string      `mapstructure:"cache_backend" validate:"oneof=sqlite redis"`
	Redis                 RedisConfig `mapstructure:"redis"`

	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds" validate:"gt=0"`
	DB                 string `mapstructure:"db" validate:"required"`
	DBFastWrites       bool   `mapstructure:"db_fast_writes"`
	EventsDir          string `mapstructure:"events_dir"`
	EventLevel         string `mapstructure:"event_level" validate:"oneof=debug info warning error"`
	ScanWorkers        int    `mapstructure:"scan_workers" validate:"gte=1,lte=64"`

	Credentials Credentials `mapstructure:"credentials"`
}

// RateLimitConfig is one source's request budget
type RateLimitConfig struct {
	Requests      int `mapstructure:"requests" validate:"gt=0"`
	WindowSeconds int `mapstructure:"window_seconds" validate:"gt=0"`
	DelayMS       int `mapstructure:"delay_ms" validate:"gte=0"`
}

// RedisConfig is used when cache_backend is redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// Credentials come from the environment (or .env), never the config file
type Credentials struct {
	SpotifyClientID     string `mapstructure:"spotify_client_id"`
	SpotifyClientSecret string `mapstructure:"spotify_client_secret"`
	LastFMAPIKey        string `mapstructure:"lastfm_api_key"`
	DiscogsToken        string `mapstructure:"discogs_token"`
}

var credentialEnv = map[string]string{
	"credentials.spotify_client_id":     "MGT_SPOTIFY_CLIENT_ID",
	"credentials.spotify_client_secret": "MGT_SPOTIFY_CLIENT_SECRET",
	"credentials.lastfm_api_key":        "MGT_LASTFM_API_KEY",
	"credentials.discogs_token":         "MGT_DISCOGS_TOKEN",
}

// SetDefaults registers every option with its default value. Keys must be
// known to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	t := policy.DefaultThresholds()
	v.SetDefault("confidence_threshold", t.AutoApply)
	v.SetDefault("review_threshold", t.Review)
	v.SetDefault("skip_threshold", t.Skip)

	v.SetDefault("dry_run", true)
	v.SetDefault("preserve_existing", false)
	v.SetDefault("max_genres", 5)
	v.SetDefault("min_genre_score", 0.3)
	v.SetDefault("genre_config", "")

	order := make([]string, 0, len(source.AllNames))
	for _, n := range source.AllNames {
		order = append(order, string(n))
	}
	v.SetDefault("source_order", order)
	for name, w := range source.DefaultWeights() {
		v.SetDefault("source_weights."+string(name), w)
	}
	for name, l := range source.DefaultLimits() {
		prefix := "rate_limits." + string(name) + "."
		v.SetDefault(prefix+"requests", l.MaxRequests)
		v.SetDefault(prefix+"window_seconds", int(l.Window/time.Second))
		v.SetDefault(prefix+"delay_ms", int(l.Delay/time.Millisecond))
	}

	opts := source.DefaultCacheOptions()
	v.SetDefault("cache_ttl_hours", opts.TTL.Hours())
	v.SetDefault("cache_negative_ttl_hours", opts.NegativeTTL.Hours())
	v.SetDefault("cache_backend", "sqlite")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("http_timeout_seconds", 15)
	v.SetDefault("db", "mgt-state.db")
	v.SetDefault("db_fast_writes", false)
	v.SetDefault("events_dir", "artifacts")
	v.SetDefault("event_level", "info")
	v.SetDefault("scan_workers", 8)

	for key := range credentialEnv {
		v.SetDefault(key, "")
	}
}

// BindEnv wires MGT_* environment variables to their keys
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range credentialEnv {
		_ = v.BindEnv(key, env)
	}
}

// Load unmarshals and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	BindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges, ordering and source names
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("source", func(fl validator.FieldLevel) bool {
		_, err := source.ParseName(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", util.ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	if c.CacheBackend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required when cache_backend is redis", util.ErrInvalidConfig)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gtefield":
		return fmt.Sprintf("%s must be >= %s", fe.Namespace(), fe.Param())
	case "source":
		return fmt.Sprintf("%s: unknown source %q", fe.Namespace(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param())
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
}

// Thresholds returns the confidence banding
func (c *Config) Thresholds() policy.Thresholds {
	return policy.Thresholds{
		AutoApply: c.ConfidenceThreshold,
		Review:    c.ReviewThreshold,
		Skip:      c.SkipThreshold,
	}
}

// Order returns the configured source order. Names were validated by Load.
func (c *Config) Order() []source.Name {
	out := make([]source.Name, 0, len(c.SourceOrder))
	for _, s := range c.SourceOrder {
		if n, err := source.ParseName(s); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// Weights returns the per-source aggregation weights
func (c *Config) Weights() map[source.Name]float64 {
	out := source.DefaultWeights()
	for s, w := range c.SourceWeights {
		if n, err := source.ParseName(s); err == nil {
			out[n] = w
		}
	}
	return out
}

// Limits returns the per-source rate limits
func (c *Config) Limits() map[source.Name]source.Limit {
	out := source.DefaultLimits()
	for s, l := range c.RateLimits {
		n, err := source.ParseName(s)
		if err != nil {
			continue
		}
		out[n] = source.Limit{
			MaxRequests: l.Requests,
			Window:      time.Duration(l.WindowSeconds) * time.Second,
			Delay:       time.Duration(l.DelayMS) * time.Millisecond,
		}
	}
	return out
}

// CacheOptions returns the response cache lifetimes
func (c *Config) CacheOptions() source.CacheOptions {
	opts := source.DefaultCacheOptions()
	opts.TTL = time.Duration(c.CacheTTLHours * float64(time.Hour))
	opts.NegativeTTL = time.Duration(c.CacheNegativeTTLHours * float64(time.Hour))
	return opts
}

// HTTPTimeout is the per-request timeout for source APIs
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
