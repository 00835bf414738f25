package source

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/franz/genre-tagger/internal/similarity"
	"github.com/franz/genre-tagger/internal/util"
)

// Outcome describes how a guarded lookup was answered
type Outcome struct {
	Source   Name
	CacheHit bool
	Kind     ErrorKind // set when the adapter returned an error
	Err      error
}

// Observer receives one Outcome per guarded lookup
type Observer func(op string, o Outcome)

// cacheEnvelope stores both positive and "no result" answers
type cacheEnvelope struct {
	Found  bool         `json:"found"`
	Match  *AlbumMatch  `json:"match,omitempty"`
	Genres *GenreResult `json:"genres,omitempty"`
}

// Guarded wraps an Adapter with the response cache and converts every
// adapter failure into "no result". Only cancellation is returned as an error.
type Guarded struct {
	adapter  Adapter
	cache    *ResponseCache
	observer Observer
}

// Guard wraps adapter. cache may be nil to disable caching.
func Guard(adapter Adapter, cache *ResponseCache, observer Observer) *Guarded {
	return &Guarded{adapter: adapter, cache: cache, observer: observer}
}

// Name returns the wrapped adapter's name
func (g *Guarded) Name() Name { return g.adapter.Name() }

// Unwrap returns the wrapped adapter
func (g *Guarded) Unwrap() Adapter { return g.adapter }

// SearchAlbum implements Adapter
func (g *Guarded) SearchAlbum(ctx context.Context, artist, album string) (*AlbumMatch, error) {
	name := g.adapter.Name()
	key := util.CacheKey(artist, album, string(name)+":search")

	if env, ok := g.lookup(ctx, key); ok {
		g.observe("search", Outcome{Source: name, CacheHit: true})
		return env.Match, nil
	}

	match, err := g.adapter.SearchAlbum(ctx, artist, album)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g.report("search", name, artist, album, err)
		g.store(ctx, key, name, cacheEnvelope{})
		return nil, nil
	}

	if match != nil && match.Score < similarity.MatchThreshold {
		util.DebugLog("%s: discarding candidate below threshold (%.2f)", name.DisplayName(), match.Score)
		match = nil
	}

	if match == nil {
		util.DebugLog("%s: no album match for %s - %s", name.DisplayName(), artist, album)
	}
	g.observe("search", Outcome{Source: name})
	g.store(ctx, key, name, cacheEnvelope{Found: match != nil, Match: match})
	return match, nil
}

// FetchGenres implements Adapter
func (g *Guarded) FetchGenres(ctx context.Context, match AlbumMatch) (*GenreResult, error) {
	name := g.adapter.Name()
	key := util.CacheKey(match.Artist, match.Album, string(name))

	if env, ok := g.lookup(ctx, key); ok {
		g.observe("genres", Outcome{Source: name, CacheHit: true})
		return env.Genres, nil
	}

	result, err := g.adapter.FetchGenres(ctx, match)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g.report("genres", name, match.Artist, match.Album, err)
		g.store(ctx, key, name, cacheEnvelope{})
		return nil, nil
	}

	if result != nil && len(result.Genres) == 0 {
		result = nil
	}
	if result == nil {
		util.DebugLog("%s: no genres for %s - %s", name.DisplayName(), match.Artist, match.Album)
	}
	g.observe("genres", Outcome{Source: name})
	g.store(ctx, key, name, cacheEnvelope{Found: result != nil, Genres: result})
	return result, nil
}

func (g *Guarded) lookup(ctx context.Context, key string) (cacheEnvelope, bool) {
	var env cacheEnvelope
	raw, ok := g.cache.Get(ctx, key)
	if !ok {
		return env, false
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		util.DebugLog("Cache entry %s unreadable, ignoring: %v", key, err)
		return env, false
	}
	return env, true
}

func (g *Guarded) store(ctx context.Context, key string, name Name, env cacheEnvelope) {
	if g.cache == nil {
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		util.WarnLog("Cache encode failed for %s: %v", name, err)
		return
	}
	g.cache.Set(ctx, key, string(name), raw, g.cache.TTL(env.Found))
}

func (g *Guarded) report(op string, name Name, artist, album string, err error) {
	kind := Kind(err)
	var authErr *ErrAuthRequired
	if errors.As(err, &authErr) {
		util.WarnLog("%s: credentials rejected, treating as no result", name.DisplayName())
	} else {
		util.WarnLog("%s: %s failed for %s - %s (%s): %v", name.DisplayName(), op, artist, album, kind, err)
	}
	g.observe(op, Outcome{Source: name, Kind: kind, Err: err})
}

func (g *Guarded) observe(op string, o Outcome) {
	if g.observer != nil {
		g.observer(op, o)
	}
}
