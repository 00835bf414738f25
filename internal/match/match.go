// Package match picks the single best release across all sources for a
// local (artist, album) pair.
package match

import (
	"context"

	"github.com/franz/genre-tagger/internal/similarity"
	"github.com/franz/genre-tagger/internal/source"
	"github.com/franz/genre-tagger/internal/util"
)

// Result holds the winning match and every viable candidate, in adapter order
type Result struct {
	Best       *source.AlbumMatch
	Candidates []source.AlbumMatch
}

// Matcher queries adapters one after another
type Matcher struct {
	adapters []source.Adapter
}

// New creates a Matcher. Adapter order decides exact-score ties.
func New(adapters ...source.Adapter) *Matcher {
	return &Matcher{adapters: adapters}
}

// Adapters returns the adapters in query order
func (m *Matcher) Adapters() []source.Adapter {
	return m.adapters
}

// FindBestMatch runs SearchAlbum on every adapter and returns the candidate
// with the strictly highest score; the first adapter wins exact ties.
// Best is nil when no adapter produced a match of at least
// similarity.MatchThreshold. Adapter failures count as "no match"; only
// context cancellation is returned.
func (m *Matcher) FindBestMatch(ctx context.Context, artist, album string) (*Result, error) {
	res := &Result{}

	for _, a := range m.adapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		match, err := a.SearchAlbum(ctx, artist, album)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			util.WarnLog("%s: search failed for %s - %s: %v", a.Name().DisplayName(), artist, album, err)
			continue
		}
		if match == nil || match.Score < similarity.MatchThreshold {
			continue
		}
		res.Candidates = append(res.Candidates, *match)
	}

	for i := range res.Candidates {
		if res.Best == nil || res.Candidates[i].Score > res.Best.Score {
			res.Best = &res.Candidates[i]
		}
	}

	if res.Best != nil {
		util.DebugLog("Best match for %s - %s: %s '%s - %s' (%.2f) from %d candidate(s)",
			artist, album, res.Best.Source.DisplayName(), res.Best.Artist, res.Best.Album, res.Best.Score, len(res.Candidates))
	} else {
		util.DebugLog("No source matched %s - %s", artist, album)
	}
	return res, nil
}
