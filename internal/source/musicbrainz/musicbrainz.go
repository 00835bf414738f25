// Package musicbrainz implements the MusicBrainz release search and the
// tag-based genre lookup.
package musicbrainz

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

const defaultBaseURL = "https://musicbrainz.org/ws/2"

const (
	// Only release tags with at least this many votes count as genres
	minReleaseTagVotes = 2
	// Artist tags are a weaker signal and need more votes
	minArtistTagVotes = 3
	maxGenres         = 10
	// A tag with this many votes is as strong a signal as MusicBrainz gives
	fullTagVotes = 25
)

// Adapter implements source.Adapter for the MusicBrainz web service.
// No key is needed but MusicBrainz enforces roughly one request per second.
type Adapter struct {
	http    *source.HTTPClient
	baseURL string
}

// New creates a MusicBrainz adapter with the default base URL
func New(limiter *source.RateLimiter, timeout time.Duration) *Adapter {
	return NewWithBaseURL(limiter, timeout, defaultBaseURL)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom base URL (for testing)
func NewWithBaseURL(limiter *source.RateLimiter, timeout time.Duration, baseURL string) *Adapter {
	return &Adapter{
		http:    source.NewHTTPClient(source.MusicBrainz, limiter, timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name implements source.Adapter
func (a *Adapter) Name() source.Name { return source.MusicBrainz }

// SearchAlbum searches releases with a fielded Lucene query first and falls
// back to a free-text query when the strict one finds nothing.
func (a *Adapter) SearchAlbum(ctx context.Context, artist, album string) (*source.AlbumMatch, error) {
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(album) == "" {
		return nil, nil
	}

	queries := []string{
		fmt.Sprintf(`artist:"%s" AND release:"%s"`, source.QuoteQuery(artist), source.QuoteQuery(album)),
		strings.TrimSpace(artist) + " " + strings.TrimSpace(album),
	}

	candidates, err := source.SearchBroadening(ctx, queries, a.searchReleases)
	if err != nil {
		return nil, err
	}

	match := source.BestCandidate(source.MusicBrainz, artist, album, candidates)
	if match != nil {
		util.DebugLog("MusicBrainz: matched '%s - %s' (score %.2f, MBID %s)", match.Artist, match.Album, match.Score, match.ReleaseID)
	}
	return match, nil
}

func (a *Adapter) searchReleases(ctx context.Context, query string) ([]source.Candidate, error) {
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {"10"},
	}

	var resp releaseSearchResponse
	if err := a.http.GetJSON(ctx, a.baseURL+"/release/?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	candidates := make([]source.Candidate, 0, len(resp.Releases))
	for _, r := range resp.Releases {
		c := source.Candidate{
			Artist:    creditedName(r.ArtistCredit),
			Album:     r.Title,
			ReleaseID: r.ID,
			Raw:       map[string]string{"mb_score": strconv.Itoa(r.Score)},
		}
		if len(r.ArtistCredit) > 0 {
			c.ArtistID = r.ArtistCredit[0].Artist.ID
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// FetchGenres reads the release's tags and tops them up with the primary
// artist's tags. An artist lookup failure is ignored. The vote count of the
// strongest counted tag is the API confidence.
func (a *Adapter) FetchGenres(ctx context.Context, match source.AlbumMatch) (*source.GenreResult, error) {
	if match.ReleaseID == "" {
		return nil, &source.ErrNotFound{Source: source.MusicBrainz, ID: "release"}
	}

	params := url.Values{"inc": {"tags artist-credits"}, "fmt": {"json"}}
	reqURL := fmt.Sprintf("%s/release/%s?%s", a.baseURL, url.PathEscape(match.ReleaseID), params.Encode())

	var rel release
	if err := a.http.GetJSON(ctx, reqURL, &rel); err != nil {
		return nil, err
	}

	genres := collectTags(nil, rel.Tags, minReleaseTagVotes)
	votes := topVotes(rel.Tags, minReleaseTagVotes)

	artistID := match.ArtistID
	if artistID == "" && len(rel.ArtistCredit) > 0 {
		artistID = rel.ArtistCredit[0].Artist.ID
	}
	if artistID != "" && len(genres) < maxGenres {
		artistTags, err := a.artistTags(ctx, artistID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			util.DebugLog("MusicBrainz: artist tag lookup for %s failed: %v", artistID, err)
		}
		genres = collectTags(genres, artistTags, minArtistTagVotes)
		votes = max(votes, topVotes(artistTags, minArtistTagVotes))
	}

	if len(genres) == 0 {
		return nil, nil
	}
	if len(genres) > maxGenres {
		genres = genres[:maxGenres]
	}

	return &source.GenreResult{
		Source:        source.MusicBrainz,
		Genres:        genres,
		MatchQuality:  match.Score,
		APIConfidence: source.CountConfidence(votes, fullTagVotes),
		Raw: map[string]string{
			"release_id": match.ReleaseID,
			"tag_votes":  strconv.Itoa(votes),
		},
	}, nil
}

func (a *Adapter) artistTags(ctx context.Context, artistID string) ([]tag, error) {
	params := url.Values{"inc": {"tags"}, "fmt": {"json"}}
	reqURL := fmt.Sprintf("%s/artist/%s?%s", a.baseURL, url.PathEscape(artistID), params.Encode())

	var art artist
	if err := a.http.GetJSON(ctx, reqURL, &art); err != nil {
		return nil, err
	}
	return art.Tags, nil
}

// topVotes is the highest vote count among tags with at least minVotes
func topVotes(tags []tag, minVotes int) int {
	top := 0
	for _, t := range tags {
		if t.Count >= minVotes && t.Count > top {
			top = t.Count
		}
	}
	return top
}

// collectTags appends title-cased tag names with at least minVotes that are
// not already present in genres.
func collectTags(genres []string, tags []tag, minVotes int) []string {
	seen := make(map[string]bool, len(genres))
	for _, g := range genres {
		seen[strings.ToLower(g)] = true
	}
	for _, t := range tags {
		name := strings.TrimSpace(t.Name)
		if name == "" || t.Count < minVotes || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		genres = append(genres, util.TitleCase(name))
	}
	return genres
}
