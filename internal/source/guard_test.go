package source

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubAdapter struct {
	name        Name
	match       *AlbumMatch
	genres      *GenreResult
	searchErr   error
	genresErr   error
	searchCalls int
	genreCalls  int
}

func (s *stubAdapter) Name() Name { return s.name }

func (s *stubAdapter) SearchAlbum(context.Context, string, string) (*AlbumMatch, error) {
	s.searchCalls++
	return s.match, s.searchErr
}

func (s *stubAdapter) FetchGenres(context.Context, AlbumMatch) (*GenreResult, error) {
	s.genreCalls++
	return s.genres, s.genresErr
}

func TestGuardCachesPositiveSearch(t *testing.T) {
	ctx := context.Background()
	stub := &stubAdapter{name: Spotify, match: &AlbumMatch{Source: Spotify, Artist: "Pink Floyd", Album: "Animals", Score: 0.95}}
	cache, _ := newTestCache(newMemoryBackend(), DefaultCacheOptions())
	var hits int
	g := Guard(stub, cache, func(op string, o Outcome) {
		if o.CacheHit {
			hits++
		}
	})

	for i := 0; i < 3; i++ {
		m, err := g.SearchAlbum(ctx, "Pink Floyd", "Animals")
		if err != nil || m == nil || m.Score != 0.95 {
			t.Fatalf("call %d: got %+v, %v", i, m, err)
		}
	}
	if stub.searchCalls != 1 {
		t.Errorf("expected adapter to be called once, got %d", stub.searchCalls)
	}
	if hits != 2 {
		t.Errorf("expected 2 cache hits, got %d", hits)
	}
}

func TestGuardCachesNoResultSentinel(t *testing.T) {
	ctx := context.Background()
	stub := &stubAdapter{name: Deezer}
	cache, _ := newTestCache(newMemoryBackend(), DefaultCacheOptions())
	g := Guard(stub, cache, nil)

	for i := 0; i < 2; i++ {
		m, err := g.SearchAlbum(ctx, "Nobody", "Nothing")
		if m != nil || err != nil {
			t.Fatalf("expected no result, got %+v, %v", m, err)
		}
	}
	if stub.searchCalls != 1 {
		t.Errorf("expected negative result to be cached, adapter called %d times", stub.searchCalls)
	}
}

func TestGuardConvertsErrorsToNoResult(t *testing.T) {
	ctx := context.Background()
	stub := &stubAdapter{
		name:      LastFM,
		searchErr: &ErrSourceUnavailable{Source: LastFM, Status: 502, Cause: errors.New("bad gateway")},
		genresErr: &ErrMalformed{Source: LastFM, Cause: errors.New("eof")},
	}
	var kinds []ErrorKind
	g := Guard(stub, nil, func(op string, o Outcome) {
		if o.Err != nil {
			kinds = append(kinds, o.Kind)
		}
	})

	m, err := g.SearchAlbum(ctx, "a", "b")
	if m != nil || err != nil {
		t.Errorf("search: expected (nil, nil), got %+v, %v", m, err)
	}
	r, err := g.FetchGenres(ctx, AlbumMatch{Source: LastFM, Artist: "a", Album: "b", Score: 0.9})
	if r != nil || err != nil {
		t.Errorf("genres: expected (nil, nil), got %+v, %v", r, err)
	}
	if len(kinds) != 2 || kinds[0] != KindTransient || kinds[1] != KindMalformed {
		t.Errorf("unexpected error kinds: %v", kinds)
	}
}

func TestGuardReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub := &stubAdapter{name: MusicBrainz, searchErr: context.Canceled}
	g := Guard(stub, nil, nil)

	if _, err := g.SearchAlbum(ctx, "a", "b"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGuardDropsBelowThresholdMatch(t *testing.T) {
	stub := &stubAdapter{name: Discogs, match: &AlbumMatch{Source: Discogs, Score: 0.65}}
	g := Guard(stub, nil, nil)
	m, err := g.SearchAlbum(context.Background(), "a", "b")
	if m != nil || err != nil {
		t.Errorf("expected below-threshold match to be dropped, got %+v, %v", m, err)
	}
}

func TestGuardGenresExpireWithClock(t *testing.T) {
	ctx := context.Background()
	stub := &stubAdapter{name: Spotify, genres: &GenreResult{Source: Spotify, Genres: []string{"Rock"}}}
	cache, now := newTestCache(newMemoryBackend(), CacheOptions{TTL: time.Hour})
	g := Guard(stub, cache, nil)
	match := AlbumMatch{Source: Spotify, Artist: "A", Album: "B", Score: 1}

	_, _ = g.FetchGenres(ctx, match)
	_, _ = g.FetchGenres(ctx, match)
	if stub.genreCalls != 1 {
		t.Fatalf("expected cached genres, adapter called %d times", stub.genreCalls)
	}

	*now = now.Add(2 * time.Hour)
	_, _ = g.FetchGenres(ctx, match)
	if stub.genreCalls != 2 {
		t.Errorf("expected refetch after expiry, adapter called %d times", stub.genreCalls)
	}
}
