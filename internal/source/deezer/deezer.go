// Package deezer implements the Deezer album search. Deezer assigns one
// primary genre per album, looked up by id.
package deezer

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/franz/genre-tagger/internal/source"
	"github.com/franz/genre-tagger/internal/util"
)

const defaultBaseURL = "https://api.deezer.com"

const (
	// Albums with this many fans get full API confidence
	fullFans = 100_000
	// Used when the album's fan count cannot be read
	unknownFansConfidence = 50.0
)

// Adapter implements source.Adapter for Deezer's public API.
// No authentication is required.
type Adapter struct {
	http    *source.HTTPClient
	baseURL string
}

// New creates a Deezer adapter with the default base URL
func New(limiter *source.RateLimiter, timeout time.Duration) *Adapter {
	return NewWithBaseURL(limiter, timeout, defaultBaseURL)
}

// NewWithBaseURL creates a Deezer adapter with a custom base URL (for testing)
func NewWithBaseURL(limiter *source.RateLimiter, timeout time.Duration, baseURL string) *Adapter {
	return &Adapter{
		http:    source.NewHTTPClient(source.Deezer, limiter, timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source identifier
func (a *Adapter) Name() source.Name { return source.Deezer }

// SearchAlbum implements source.Adapter
func (a *Adapter) SearchAlbum(ctx context.Context, artist, album string) (*source.AlbumMatch, error) {
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(album) == "" {
		return nil, nil
	}

	queries := []string{
		fmt.Sprintf(`artist:"%s" album:"%s"`, source.QuoteQuery(artist), source.QuoteQuery(album)),
		strings.TrimSpace(artist) + " " + strings.TrimSpace(album),
	}
	candidates, err := source.SearchBroadening(ctx, queries, a.search)
	if err != nil {
		return nil, err
	}
	return source.BestCandidate(source.Deezer, artist, album, candidates), nil
}

func (a *Adapter) search(ctx context.Context, query string) ([]source.Candidate, error) {
	params := url.Values{"q": {query}, "limit": {"10"}}

	var resp searchResponse
	if err := a.http.GetJSON(ctx, a.baseURL+"/search/album?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if err := checkError(resp.Error, query); err != nil {
		return nil, err
	}

	candidates := make([]source.Candidate, 0, len(resp.Data))
	for _, r := range resp.Data {
		raw := map[string]string{}
		if r.GenreID != nil {
			raw["genre_id"] = strconv.Itoa(*r.GenreID)
		}
		candidates = append(candidates, source.Candidate{
			Artist:    r.Artist.Name,
			Album:     r.Title,
			ReleaseID: strconv.Itoa(r.ID),
			ArtistID:  strconv.Itoa(r.Artist.ID),
			Raw:       raw,
		})
	}
	return candidates, nil
}

// FetchGenres resolves the album's genre_id to a genre name. Albums without
// a genre (Deezer uses -1) have no result. The album's fan count is the API
// confidence.
func (a *Adapter) FetchGenres(ctx context.Context, match source.AlbumMatch) (*source.GenreResult, error) {
	genreID, ok := match.Raw["genre_id"]
	if !ok || genreID == "" || genreID == "-1" || genreID == "0" {
		util.DebugLog("Deezer: album %s has no genre id", match.ReleaseID)
		return nil, nil
	}

	var resp genreResponse
	if err := a.http.GetJSON(ctx, a.baseURL+"/genre/"+url.PathEscape(genreID), &resp); err != nil {
		return nil, err
	}
	if err := checkError(resp.Error, genreID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Name) == "" {
		return nil, nil
	}

	raw := map[string]string{
		"album_id":  match.ReleaseID,
		"artist_id": match.ArtistID,
		"genre_id":  genreID,
	}
	fans, ok, err := a.albumFans(ctx, match.ReleaseID)
	if err != nil {
		return nil, err
	}
	conf := unknownFansConfidence
	if ok {
		conf = source.CountConfidence(fans, fullFans)
		raw["fans"] = strconv.Itoa(fans)
	}

	return &source.GenreResult{
		Source:        source.Deezer,
		Genres:        []string{resp.Name},
		MatchQuality:  match.Score,
		APIConfidence: conf,
		Raw:           raw,
	}, nil
}

// albumFans looks up the album's fan count. A failed lookup is not an error;
// ok is false then. Only context cancellation is returned.
func (a *Adapter) albumFans(ctx context.Context, albumID string) (fans int, ok bool, err error) {
	if albumID == "" {
		return 0, false, nil
	}
	var resp albumResponse
	if err := a.http.GetJSON(ctx, a.baseURL+"/album/"+url.PathEscape(albumID), &resp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, false, ctxErr
		}
		util.DebugLog("Deezer: fan count for album %s unavailable: %v", albumID, err)
		return 0, false, nil
	}
	if resp.Error != nil {
		util.DebugLog("Deezer: fan count for album %s unavailable: %s", albumID, resp.Error.Message)
		return 0, false, nil
	}
	return resp.Fans, true, nil
}

func checkError(e *apiError, id string) error {
	if e == nil {
		return nil
	}
	switch e.Code {
	case errCodeNotFound:
		return &source.ErrNotFound{Source: source.Deezer, ID: id}
	case errCodeQuota:
		return &source.ErrSourceUnavailable{Source: source.Deezer, Status: 429, Cause: fmt.Errorf("%s: %s", e.Type, e.Message)}
	default:
		return &source.ErrSourceUnavailable{Source: source.Deezer, Cause: fmt.Errorf("%s (%d): %s", e.Type, e.Code, e.Message)}
	}
}
