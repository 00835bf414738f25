package meta

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"

	"github.com/franz/genre-tagger/internal/util"
)

// TrackTags are the tag fields used to group tracks into albums and to
// merge genres
type TrackTags struct {
	Path        string
	Format      string
	Artist      string
	AlbumArtist string
	Album       string
	Title       string
	Track       int
	Genres      []string
}

// AlbumArtistOrArtist prefers the album artist so compilations and
// featured-artist tracks stay in one album
func (t *TrackTags) AlbumArtistOrArtist() string {
	if a := strings.TrimSpace(t.AlbumArtist); a != "" {
		return a
	}
	return strings.TrimSpace(t.Artist)
}

// ReadTags reads a file's tags with dhowden/tag, falling back to ffprobe
// for containers the library cannot parse
func ReadTags(ctx context.Context, path string) (*TrackTags, error) {
	tags, err := readWithTag(path)
	if err == nil {
		return tags, nil
	}
	if !CheckFFprobeAvailable() {
		return nil, err
	}

	util.DebugLog("tag reader failed for %s (%v), trying ffprobe", path, err)
	probed, probeErr := ProbeTags(ctx, path)
	if probeErr != nil {
		return nil, fmt.Errorf("%w (ffprobe: %v)", err, probeErr)
	}
	return probed, nil
}

// ReadGenres returns only the genres currently stored in a file
func ReadGenres(ctx context.Context, path string) ([]string, error) {
	tags, err := ReadTags(ctx, path)
	if err != nil {
		return nil, err
	}
	return tags.Genres, nil
}

func readWithTag(path string) (*TrackTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	track, _ := m.Track()
	return &TrackTags{
		Path:        path,
		Format:      string(m.Format()),
		Artist:      strings.TrimSpace(m.Artist()),
		AlbumArtist: strings.TrimSpace(m.AlbumArtist()),
		Album:       strings.TrimSpace(m.Album()),
		Title:       strings.TrimSpace(m.Title()),
		Track:       track,
		Genres:      SplitGenres(m.Genre()),
	}, nil
}

// SplitGenres splits a stored genre value. Multiple genres are written
// "; "-separated; ID3v2.4 frames may also separate values with NUL.
func SplitGenres(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ';' || r == 0
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// FormatGenres joins genres the way they are written to files
func FormatGenres(genres []string) string {
	return strings.Join(genres, "; ")
}
