package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/viper"

	"github.com/franz/genre-tagger/internal/aggregate"
	"github.com/franz/genre-tagger/internal/config"
	"github.com/franz/genre-tagger/internal/genre"
	"github.com/franz/genre-tagger/internal/match"
	"github.com/franz/genre-tagger/internal/redisstore"
	"github.com/franz/genre-tagger/internal/report"
	"github.com/franz/genre-tagger/internal/source"
	"github.com/franz/genre-tagger/internal/source/deezer"
	"github.com/franz/genre-tagger/internal/source/discogs"
	"github.com/franz/genre-tagger/internal/source/lastfm"
	"github.com/franz/genre-tagger/internal/source/musicbrainz"
	"github.com/franz/genre-tagger/internal/source/spotify"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

// engine holds everything a command needs to look albums up. It is built
// once per command invocation and closed when the command returns.
type engine struct {
	cfg    *config.Config
	db     *store.Store
	redis  *redisstore.Store
	logger *report.EventLogger

	limiter      *source.RateLimiter
	cache        *source.ResponseCache
	adapters     []source.Adapter
	disabled     map[source.Name]string
	standardizer *genre.Standardizer
	aggregator   *aggregate.Aggregator
}

// loadConfig reads and validates the configuration from viper
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if level := viper.GetString("log_level"); level != "" {
		util.SetLogLevel(util.ParseLogLevel(level))
	}
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	return cfg, nil
}

// openStore opens the state database named by cfg
func openStore(cfg *config.Config) (*store.Store, error) {
	util.DebugLog("Opening database: %s", cfg.DB)
	db, err := store.OpenWithOptions(cfg.DB, &store.OpenOptions{FastWrites: cfg.DBFastWrites})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newEventLogger creates the JSONL event log, falling back to a null logger
func newEventLogger(cfg *config.Config) *report.EventLogger {
	if cfg.EventsDir == "" {
		return report.NullLogger()
	}

	level := report.ParseLevel(cfg.EventLevel)
	if viper.GetBool("quiet") {
		level = report.LevelWarning
	} else if viper.GetBool("verbose") {
		level = report.LevelDebug
	}

	logger, err := report.NewEventLogger(cfg.EventsDir, level)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	util.DebugLog("Event log: %s", logger.Path())
	return logger
}

// openEngine wires store, cache, rate limiter and adapters from cfg
func openEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	e := &engine{
		cfg:    cfg,
		db:     db,
		logger: newEventLogger(cfg),
	}

	var (
		backend source.CacheBackend = db
		reqLog  source.RequestLog   = db
	)
	if cfg.CacheBackend == "redis" {
		rs, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			e.Close()
			return nil, err
		}
		e.redis = rs
		backend, reqLog = rs, rs
		util.DebugLog("Using Redis cache at %s", cfg.Redis.Addr)
	}

	e.limiter = source.NewRateLimiter(reqLog, cfg.Limits())
	e.limiter.OnThrottle = func(name source.Name, count int, wait time.Duration) {
		util.InfoLog("%s rate limit reached (%d requests), waiting %s", name.DisplayName(), count, util.FormatDuration(wait))
		e.logger.LogRateLimit(string(name), wait)
	}
	e.cache = source.NewResponseCache(backend, cfg.CacheOptions())

	var raw []source.Adapter
	raw, e.disabled = buildAdapters(cfg, e.limiter)
	for name, reason := range e.disabled {
		util.WarnLog("%s disabled: %s", name.DisplayName(), reason)
	}
	if len(raw) == 0 {
		e.Close()
		return nil, fmt.Errorf("no metadata sources are enabled")
	}
	observer := func(op string, o source.Outcome) {
		e.logger.LogCache(string(o.Source), op, o.CacheHit, string(o.Kind), o.Err)
	}
	for _, ad := range raw {
		e.adapters = append(e.adapters, source.Guard(ad, e.cache, observer))
	}

	if cfg.GenreConfig != "" {
		e.standardizer, err = genre.LoadFile(cfg.GenreConfig)
		if err != nil {
			e.Close()
			return nil, err
		}
	} else {
		e.standardizer = genre.New()
	}

	e.aggregator = aggregate.New(match.New(e.adapters...), aggregate.Options{
		Weights:  cfg.Weights(),
		MinScore: cfg.MinGenreScore,
	})
	return e, nil
}

// buildAdapters creates the configured adapters in source order. A source
// without credentials is left out and reported in disabled.
func buildAdapters(cfg *config.Config, limiter *source.RateLimiter) ([]source.Adapter, map[source.Name]string) {
	timeout := cfg.HTTPTimeout()
	creds := cfg.Credentials
	disabled := make(map[source.Name]string)

	var adapters []source.Adapter
	for _, name := range cfg.Order() {
		switch name {
		case source.Spotify:
			ad, err := spotify.New(creds.SpotifyClientID, creds.SpotifyClientSecret, limiter, timeout)
			if err != nil {
				disabled[name] = "set MGT_SPOTIFY_CLIENT_ID and MGT_SPOTIFY_CLIENT_SECRET"
				continue
			}
			adapters = append(adapters, ad)
		case source.MusicBrainz:
			adapters = append(adapters, musicbrainz.New(limiter, timeout))
		case source.Deezer:
			adapters = append(adapters, deezer.New(limiter, timeout))
		case source.LastFM:
			if creds.LastFMAPIKey == "" {
				disabled[name] = "set MGT_LASTFM_API_KEY"
				continue
			}
			adapters = append(adapters, lastfm.New(creds.LastFMAPIKey, limiter, timeout))
		case source.Discogs:
			if creds.DiscogsToken == "" {
				disabled[name] = "set MGT_DISCOGS_TOKEN"
				continue
			}
			adapters = append(adapters, discogs.New(creds.DiscogsToken, limiter, timeout))
		}
	}
	return adapters, disabled
}

// Close releases the engine's resources
func (e *engine) Close() {
	if e.logger != nil {
		e.logger.Close()
	}
	if e.redis != nil {
		e.redis.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
}

// acquireLock takes the single-writer lock next to the state database
func acquireLock(dbPath string) (*flock.Flock, error) {
	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", util.ErrLocked, lock.Path())
	}
	return lock, nil
}
