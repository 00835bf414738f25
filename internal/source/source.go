// Package source defines the contract shared by the metadata source adapters
// (Spotify, MusicBrainz, Deezer, Last.fm, Discogs) together with the request
// budget and response cache that sit in front of them.
package source

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/franz/genre-tagger/internal/similarity"
)

// Name identifies one external metadata source
type Name string

const (
	Spotify     Name = "spotify"
	MusicBrainz Name = "musicbrainz"
	Deezer      Name = "deezer"
	LastFM      Name = "lastfm"
	Discogs     Name = "discogs"
)

// AllNames lists every known source in the default query order.
// The order also decides which source wins an exact match-score tie.
var AllNames = []Name{Spotify, MusicBrainz, Deezer, LastFM, Discogs}

// DisplayName returns a human-readable name
func (n Name) DisplayName() string {
	switch n {
	case Spotify:
		return "Spotify"
	case MusicBrainz:
		return "MusicBrainz"
	case Deezer:
		return "Deezer"
	case LastFM:
		return "Last.fm"
	case Discogs:
		return "Discogs"
	default:
		return string(n)
	}
}

// ParseName converts a configuration string into a Name
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllNames {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// DefaultWeights returns the static per-source reliability constants
func DefaultWeights() map[Name]float64 {
	return map[Name]float64{
		Spotify:     1.0,
		MusicBrainz: 0.85,
		Discogs:     0.8,
		Deezer:      0.75,
		LastFM:      0.7,
	}
}

// AlbumMatch is one source's candidate for "this is the right release"
type AlbumMatch struct {
	Source Name    `json:"source"`
	Artist string  `json:"matched_artist"`
	Album  string  `json:"matched_album"`
	Score  float64 `json:"match_score"`

	// Source-specific identifiers used by FetchGenres
	ReleaseID string `json:"release_id,omitempty"`
	ArtistID  string `json:"artist_id,omitempty"`

	Raw map[string]string `json:"raw,omitempty"`
}

// GenreResult is one source's genre answer for a confirmed release
type GenreResult struct {
	Source Name `json:"source"`

	// Genres are raw names in the order the source ranks them
	Genres []string `json:"genres"`

	// MatchQuality is the match score of the release the genres belong to, 0..1
	MatchQuality float64 `json:"match_quality"`

	// APIConfidence is the source's own strength signal on a 0..100 scale
	APIConfidence float64 `json:"api_confidence"`

	// Weight is the configured reliability constant, stamped by the aggregator
	Weight float64 `json:"weight"`

	Raw map[string]string `json:"raw,omitempty"`
}

// Adapter is implemented by every metadata source.
//
// Both methods return (nil, nil) when the source has no answer. A non-nil
// error means the lookup failed; callers treat that as "no result" too but
// log it differently.
type Adapter interface {
	Name() Name

	// SearchAlbum looks for the release matching artist and album and
	// returns the best candidate scoring at least similarity.MatchThreshold.
	SearchAlbum(ctx context.Context, artist, album string) (*AlbumMatch, error)

	// FetchGenres returns genres for a release this adapter already matched.
	FetchGenres(ctx context.Context, match AlbumMatch) (*GenreResult, error)
}

// Candidate is one release returned by a remote catalog search
type Candidate struct {
	Artist    string
	Album     string
	ReleaseID string
	ArtistID  string
	Raw       map[string]string
}

// ScoredCandidate is a Candidate with its match score
type ScoredCandidate struct {
	Candidate
	Score float64
}

// BestCandidate scores every candidate against artist/album and returns the
// highest scoring one as an AlbumMatch, or nil when none is good enough.
func BestCandidate(name Name, artist, album string, candidates []Candidate) *AlbumMatch {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, ScoredCandidate{
			Candidate: c,
			Score:     similarity.MatchScore(artist, album, c.Artist, c.Album),
		})
	}
	return SelectBest(name, scored)
}

// CountConfidence maps a popularity count (listeners, owners, tag votes)
// onto 0..100 on a log scale. full and anything above it map to 100.
func CountConfidence(n, full int) float64 {
	if n <= 0 || full <= 0 {
		return 0
	}
	c := math.Log1p(float64(n)) / math.Log1p(float64(full)) * 100
	return math.Min(c, 100)
}

// SelectBest returns the strict maximum by score (first wins exact ties), or
// nil when the maximum is below similarity.MatchThreshold.
func SelectBest(name Name, scored []ScoredCandidate) *AlbumMatch {
	bestIdx := -1
	for i := range scored {
		if bestIdx < 0 || scored[i].Score > scored[bestIdx].Score {
			bestIdx = i
		}
	}
	if bestIdx < 0 || scored[bestIdx].Score < similarity.MatchThreshold {
		return nil
	}

	best := scored[bestIdx]
	return &AlbumMatch{
		Source:    name,
		Artist:    best.Artist,
		Album:     best.Album,
		Score:     best.Score,
		ReleaseID: best.ReleaseID,
		ArtistID:  best.ArtistID,
		Raw:       best.Raw,
	}
}

// SearchBroadening runs queries in order (strict first, loose last) and
// returns the candidates of the first query that produced any. A failing
// query does not stop the broadening; its error is returned only when no
// later query produced candidates.
func SearchBroadening(ctx context.Context, queries []string, run func(ctx context.Context, query string) ([]Candidate, error)) ([]Candidate, error) {
	var lastErr error
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidates, err := run(ctx, q)
		if err != nil {
			lastErr = err
			continue
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}
	return nil, lastErr
}

// QuoteQuery escapes double quotes for use inside a quoted search term
func QuoteQuery(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), `"`, `\"`)
}
