// Package discogs implements the Discogs database search. Genres come from
// a release's broad genres followed by its finer styles.
package discogs

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/franz/genre-tagger/internal/source"
	"github.com/franz/genre-tagger/internal/util"
)

const defaultBaseURL = "https://api.discogs.com"

// Releases with this many collectors (have plus want) get full API confidence
const fullCommunity = 10_000

// Discogs appends " (2)" style suffixes to disambiguate artist names
var disambiguation = regexp.MustCompile(`\s+\(\d+\)$`)

// Adapter implements source.Adapter for the Discogs API.
// Requires a personal access token.
type Adapter struct {
	http    *source.HTTPClient
	token   string
	baseURL string
}

// New creates a Discogs adapter with the default base URL
func New(token string, limiter *source.RateLimiter, timeout time.Duration) *Adapter {
	return NewWithBaseURL(token, limiter, timeout, defaultBaseURL)
}

// NewWithBaseURL creates a Discogs adapter with a custom base URL (for testing)
func NewWithBaseURL(token string, limiter *source.RateLimiter, timeout time.Duration, baseURL string) *Adapter {
	a := &Adapter{
		http:    source.NewHTTPClient(source.Discogs, limiter, timeout),
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	if token != "" {
		a.http.SetHeader("Authorization", "Discogs token="+token)
	}
	return a
}

// Name returns the source identifier
func (a *Adapter) Name() source.Name { return source.Discogs }

// SearchAlbum implements source.Adapter
func (a *Adapter) SearchAlbum(ctx context.Context, artist, album string) (*source.AlbumMatch, error) {
	if a.token == "" {
		return nil, &source.ErrAuthRequired{Source: source.Discogs}
	}
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(album) == "" {
		return nil, nil
	}

	strict := url.Values{
		"type":          {"release"},
		"artist":        {strings.TrimSpace(artist)},
		"release_title": {strings.TrimSpace(album)},
		"per_page":      {"10"},
	}
	loose := url.Values{
		"type":     {"release"},
		"q":        {strings.TrimSpace(artist) + " " + strings.TrimSpace(album)},
		"per_page": {"10"},
	}

	candidates, err := source.SearchBroadening(ctx, []string{strict.Encode(), loose.Encode()}, a.search)
	if err != nil {
		return nil, err
	}
	return source.BestCandidate(source.Discogs, artist, album, candidates), nil
}

func (a *Adapter) search(ctx context.Context, rawQuery string) ([]source.Candidate, error) {
	var resp searchResponse
	if err := a.http.GetJSON(ctx, a.baseURL+"/database/search?"+rawQuery, &resp); err != nil {
		return nil, err
	}

	candidates := make([]source.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		artist, title := splitTitle(r.Title)
		candidates = append(candidates, source.Candidate{
			Artist:    artist,
			Album:     title,
			ReleaseID: strconv.Itoa(r.ID),
			Raw:       map[string]string{"year": r.Year},
		})
	}
	return candidates, nil
}

// FetchGenres implements source.Adapter
func (a *Adapter) FetchGenres(ctx context.Context, match source.AlbumMatch) (*source.GenreResult, error) {
	if a.token == "" {
		return nil, &source.ErrAuthRequired{Source: source.Discogs}
	}
	if match.ReleaseID == "" {
		return nil, &source.ErrNotFound{Source: source.Discogs, ID: "release"}
	}

	var rel releaseResponse
	if err := a.http.GetJSON(ctx, a.baseURL+"/releases/"+url.PathEscape(match.ReleaseID), &rel); err != nil {
		return nil, err
	}

	genres := make([]string, 0, len(rel.Genres)+len(rel.Styles))
	seen := make(map[string]bool)
	for _, g := range append(append([]string{}, rel.Genres...), rel.Styles...) {
		g = strings.TrimSpace(g)
		if g == "" || seen[strings.ToLower(g)] {
			continue
		}
		seen[strings.ToLower(g)] = true
		genres = append(genres, g)
	}
	if len(genres) == 0 {
		util.DebugLog("Discogs: release %s has no genres", match.ReleaseID)
		return nil, nil
	}

	return &source.GenreResult{
		Source:        source.Discogs,
		Genres:        genres,
		MatchQuality:  match.Score,
		APIConfidence: source.CountConfidence(rel.Community.Have+rel.Community.Want, fullCommunity),
		Raw: map[string]string{
			"release_id": match.ReleaseID,
			"have":       strconv.Itoa(rel.Community.Have),
			"want":       strconv.Itoa(rel.Community.Want),
		},
	}, nil
}

// TestConnection verifies the personal access token is valid
func (a *Adapter) TestConnection(ctx context.Context) error {
	if a.token == "" {
		return &source.ErrAuthRequired{Source: source.Discogs}
	}
	var id identityResponse
	if err := a.http.GetJSON(ctx, a.baseURL+"/oauth/identity", &id); err != nil {
		return fmt.Errorf("discogs identity: %w", err)
	}
	return nil
}

// splitTitle splits a search result title "Artist - Title" and strips the
// numeric disambiguation suffix from the artist
func splitTitle(s string) (artist, title string) {
	artist, title, ok := strings.Cut(s, " - ")
	if !ok {
		return "", strings.TrimSpace(s)
	}
	artist = disambiguation.ReplaceAllString(strings.TrimSpace(artist), "")
	return artist, strings.TrimSpace(title)
}
