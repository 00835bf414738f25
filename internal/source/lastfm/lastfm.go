// Package lastfm implements the Last.fm album search and tag lookup.
// An API key is required.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/franz/genre-tagger/internal/source"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0"

// Albums with this many listeners get full API confidence
const fullListeners = 1_000_000

// Adapter implements source.Adapter for the Last.fm API
type Adapter struct {
	http    *source.HTTPClient
	apiKey  string
	baseURL string
}

// New creates a Last.fm adapter with the default base URL
func New(apiKey string, limiter *source.RateLimiter, timeout time.Duration) *Adapter {
	return NewWithBaseURL(apiKey, limiter, timeout, defaultBaseURL)
}

// NewWithBaseURL creates a Last.fm adapter with a custom base URL (for testing)
func NewWithBaseURL(apiKey string, limiter *source.RateLimiter, timeout time.Duration, baseURL string) *Adapter {
	return &Adapter{
		http:    source.NewHTTPClient(source.LastFM, limiter, timeout),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name implements source.Adapter
func (a *Adapter) Name() source.Name { return source.LastFM }

// SearchAlbum implements source.Adapter. album.search only matches on the
// album title, so the strict query is the bare title and the broadened one
// adds the artist.
func (a *Adapter) SearchAlbum(ctx context.Context, artist, album string) (*source.AlbumMatch, error) {
	if a.apiKey == "" {
		return nil, &source.ErrAuthRequired{Source: source.LastFM}
	}
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(album) == "" {
		return nil, nil
	}

	queries := []string{
		strings.TrimSpace(album),
		strings.TrimSpace(artist) + " " + strings.TrimSpace(album),
	}

	// A title-only search can return plenty of albums by other artists;
	// only stop broadening once one of them actually matches.
	var match *source.AlbumMatch
	_, err := source.SearchBroadening(ctx, queries, func(ctx context.Context, q string) ([]source.Candidate, error) {
		candidates, err := a.search(ctx, q)
		if err != nil {
			return nil, err
		}
		if m := source.BestCandidate(source.LastFM, artist, album, candidates); m != nil {
			match = m
			return candidates, nil
		}
		return nil, nil
	})
	if match != nil {
		return match, nil
	}
	return nil, err
}

func (a *Adapter) search(ctx context.Context, query string) ([]source.Candidate, error) {
	params := a.params("album.search")
	params.Set("album", query)
	params.Set("limit", "10")

	var resp searchResponse
	if err := a.call(ctx, params, &resp); err != nil {
		return nil, err
	}

	albums := resp.Results.AlbumMatches.Album
	candidates := make([]source.Candidate, 0, len(albums))
	for _, al := range albums {
		candidates = append(candidates, source.Candidate{
			Artist:    al.Artist,
			Album:     al.Name,
			ReleaseID: al.MBID,
			Raw:       map[string]string{"url": al.URL},
		})
	}
	return candidates, nil
}

// FetchGenres reads the album's top tags via album.getinfo. The listener
// count, on a log scale, is the API confidence.
func (a *Adapter) FetchGenres(ctx context.Context, match source.AlbumMatch) (*source.GenreResult, error) {
	if a.apiKey == "" {
		return nil, &source.ErrAuthRequired{Source: source.LastFM}
	}

	params := a.params("album.getinfo")
	params.Set("artist", match.Artist)
	params.Set("album", match.Album)
	params.Set("autocorrect", "1")

	var resp infoResponse
	if err := a.call(ctx, params, &resp); err != nil {
		return nil, err
	}

	genres := make([]string, 0, len(resp.Album.Tags))
	for _, t := range resp.Album.Tags {
		if name := strings.TrimSpace(t.Name); name != "" {
			genres = append(genres, name)
		}
	}
	if len(genres) == 0 {
		return nil, nil
	}

	raw := map[string]string{"url": resp.Album.URL}
	listeners, err := strconv.Atoi(resp.Album.Listeners)
	if err == nil {
		raw["listeners"] = strconv.Itoa(listeners)
	}
	if resp.Album.MBID != "" {
		raw["mbid"] = resp.Album.MBID
	}

	return &source.GenreResult{
		Source:        source.LastFM,
		Genres:        genres,
		MatchQuality:  match.Score,
		APIConfidence: source.CountConfidence(listeners, fullListeners),
		Raw:           raw,
	}, nil
}

func (a *Adapter) params(method string) url.Values {
	return url.Values{
		"method":  {method},
		"api_key": {a.apiKey},
		"format":  {"json"},
	}
}

// call performs the request and maps an in-body error to a typed error
func (a *Adapter) call(ctx context.Context, params url.Values, dst any) error {
	var raw json.RawMessage
	if err := a.http.GetJSON(ctx, a.baseURL+"/?"+params.Encode(), &raw); err != nil {
		return err
	}

	var apiErr errorResponse
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != 0 {
		return mapError(apiErr, params.Get("method"))
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return &source.ErrMalformed{Source: source.LastFM, Cause: err}
	}
	return nil
}

func mapError(e errorResponse, method string) error {
	cause := fmt.Errorf("%s: error %d: %s", method, e.Error, e.Message)
	switch e.Error {
	case errInvalidParams:
		return &source.ErrNotFound{Source: source.LastFM, ID: method}
	case errInvalidAPIKey, errSuspendedKey:
		return &source.ErrAuthRequired{Source: source.LastFM}
	case errRateLimited:
		return &source.ErrSourceUnavailable{Source: source.LastFM, Status: 429, Cause: cause}
	case errServiceOffline, errTemporary:
		return &source.ErrSourceUnavailable{Source: source.LastFM, Status: 503, Cause: cause}
	default:
		return &source.ErrSourceUnavailable{Source: source.LastFM, Cause: cause}
	}
}
