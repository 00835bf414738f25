// Package spotify implements the Spotify album search. Spotify attaches
// genres to artists rather than albums, so the genres come from the album's
// primary artist.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/franz/genre-tagger/internal/source"
	"github.com/franz/genre-tagger/internal/util"
)

// Adapter implements source.Adapter on top of the Spotify Web API client.
// It authenticates with the client-credentials flow.
type Adapter struct {
	client  *spotify.Client
	creds   *clientcredentials.Config
	limiter *source.RateLimiter
	retry   *util.RetryConfig
}

// New creates an adapter that authenticates with clientID/clientSecret
func New(clientID, clientSecret string, limiter *source.RateLimiter, timeout time.Duration) (*Adapter, error) {
	if clientID == "" || clientSecret == "" {
		return nil, &source.ErrAuthRequired{Source: source.Spotify}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	creds := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	// Token requests use the same timeout as API calls
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := creds.Client(ctx)
	httpClient.Timeout = timeout

	a := NewWithClient(httpClient, limiter, "")
	a.creds = creds
	return a, nil
}

// NewWithClient wraps an already authenticated HTTP client. baseURL
// overrides the API endpoint when non-empty (for testing).
func NewWithClient(httpClient *http.Client, limiter *source.RateLimiter, baseURL string) *Adapter {
	var opts []spotify.ClientOption
	if baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &Adapter{
		client:  spotify.New(httpClient, opts...),
		limiter: limiter,
		retry:   util.HTTPRetryConfig(),
	}
}

// Name implements source.Adapter
func (a *Adapter) Name() source.Name { return source.Spotify }

// SearchAlbum implements source.Adapter
func (a *Adapter) SearchAlbum(ctx context.Context, artist, album string) (*source.AlbumMatch, error) {
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(album) == "" {
		return nil, nil
	}

	queries := []string{
		fmt.Sprintf(`album:"%s" artist:"%s"`, source.QuoteQuery(album), source.QuoteQuery(artist)),
		strings.TrimSpace(artist) + " " + strings.TrimSpace(album),
	}
	candidates, err := source.SearchBroadening(ctx, queries, a.search)
	if err != nil {
		return nil, err
	}

	match := source.BestCandidate(source.Spotify, artist, album, candidates)
	if match != nil {
		util.DebugLog("Spotify: matched '%s - %s' (score %.2f)", match.Artist, match.Album, match.Score)
	}
	return match, nil
}

func (a *Adapter) search(ctx context.Context, query string) ([]source.Candidate, error) {
	result, err := call(ctx, a, "search", func() (*spotify.SearchResult, error) {
		return a.client.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(10))
	})
	if err != nil {
		return nil, err
	}
	if result == nil || result.Albums == nil {
		return nil, nil
	}

	candidates := make([]source.Candidate, 0, len(result.Albums.Albums))
	for _, al := range result.Albums.Albums {
		if len(al.Artists) == 0 {
			continue
		}
		candidates = append(candidates, source.Candidate{
			Artist:    al.Artists[0].Name,
			Album:     al.Name,
			ReleaseID: al.ID.String(),
			ArtistID:  al.Artists[0].ID.String(),
			Raw:       map[string]string{"release_date": al.ReleaseDate},
		})
	}
	return candidates, nil
}

// FetchGenres returns the genres of the album's primary artist. The artist's
// popularity (0-100) is the API confidence.
func (a *Adapter) FetchGenres(ctx context.Context, match source.AlbumMatch) (*source.GenreResult, error) {
	if match.ArtistID == "" {
		return nil, &source.ErrNotFound{Source: source.Spotify, ID: "artist"}
	}

	artist, err := call(ctx, a, "artist", func() (*spotify.FullArtist, error) {
		return a.client.GetArtist(ctx, spotify.ID(match.ArtistID))
	})
	if err != nil {
		return nil, err
	}
	if artist == nil || len(artist.Genres) == 0 {
		return nil, nil
	}

	return &source.GenreResult{
		Source:        source.Spotify,
		Genres:        append([]string(nil), artist.Genres...),
		MatchQuality:  match.Score,
		APIConfidence: math.Min(float64(artist.Popularity), 100),
		Raw: map[string]string{
			"album_id":   match.ReleaseID,
			"artist_id":  match.ArtistID,
			"popularity": strconv.Itoa(int(artist.Popularity)),
		},
	}, nil
}

// TestConnection fetches an access token to verify the client credentials
func (a *Adapter) TestConnection(ctx context.Context) error {
	if a.creds == nil {
		return nil
	}
	if _, err := a.creds.Token(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// call runs one rate-limited API request with retries and maps the
// client's errors onto the source error types.
func call[T any](ctx context.Context, a *Adapter, op string, fn func() (T, error)) (T, error) {
	return util.RetryWithBackoff(ctx, a.retry, func() (T, error) {
		var zero T
		if err := a.limiter.Wait(ctx, source.Spotify); err != nil {
			return zero, &source.ErrSourceUnavailable{Source: source.Spotify, Cause: fmt.Errorf("rate limiter: %w", err)}
		}
		util.DebugLog("Spotify API: %s", op)
		v, err := fn()
		a.limiter.Record(ctx, source.Spotify)
		if err != nil {
			return zero, mapError(err)
		}
		return v, nil
	}, "spotify "+op)
}

func mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return &source.ErrAuthRequired{Source: source.Spotify}
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			return &source.ErrAuthRequired{Source: source.Spotify}
		case apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusBadRequest:
			return &source.ErrNotFound{Source: source.Spotify, ID: apiErr.Message}
		default:
			return &source.ErrSourceUnavailable{Source: source.Spotify, Status: apiErr.Status, Cause: err}
		}
	}
	return &source.ErrSourceUnavailable{Source: source.Spotify, Cause: err}
}
