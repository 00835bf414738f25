// Package aggregate merges the genre answers of several sources into one
// ranked list with a confidence score.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/franz/genre-tagger/internal/match"
	"github.com/franz/genre-tagger/internal/source"
	"github.com/franz/genre-tagger/internal/util"
)

const (
	DefaultMinScore  = 0.3
	DefaultMaxGenres = 10

	// Agreement bonus: +10 per extra source, at most +15
	bonusPerSource = 10.0
	maxBonus       = 15.0
)

// Result is the aggregated answer for one album
type Result struct {
	FinalGenres []string
	Confidence  float64 // 0..100
	SourcesUsed []source.Name
	// Contributors maps each kept genre to the sources that named it
	Contributors map[string][]source.Name
	Scores       map[string]float64
	Reasoning    string

	// Match is the cross-source winner the genres were fetched for;
	// Candidates are all viable matches. Only set by FetchAndAggregate.
	Match      *source.AlbumMatch
	Candidates []source.AlbumMatch
	Sources    []source.GenreResult
}

// Empty reports whether no source contributed
func (r *Result) Empty() bool {
	return len(r.SourcesUsed) == 0
}

// Options tune the aggregation
type Options struct {
	Weights   map[source.Name]float64
	MinScore  float64
	MaxGenres int
}

// Aggregator runs the two-phase lookup and the aggregation
type Aggregator struct {
	matcher *match.Matcher
	opts    Options
}

// New creates an Aggregator over matcher's adapters
func New(matcher *match.Matcher, opts Options) *Aggregator {
	if opts.Weights == nil {
		opts.Weights = source.DefaultWeights()
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}
	if opts.MaxGenres <= 0 {
		opts.MaxGenres = DefaultMaxGenres
	}
	return &Aggregator{matcher: matcher, opts: opts}
}

// FetchAndAggregate matches the album across all sources, then fetches
// genres only for the matched (corrected) identity. Each adapter fetches
// against its own match for that identity, so a source that cannot find
// the confirmed release contributes nothing.
//
// MatchQuality always measures the release against the local tags: a
// source's phase-one score, or best.Score for a source that only found the
// corrected identity. A confirm search never raises it.
func (a *Aggregator) FetchAndAggregate(ctx context.Context, artist, album string) (*Result, error) {
	found, err := a.matcher.FindBestMatch(ctx, artist, album)
	if err != nil {
		return nil, err
	}
	if found.Best == nil {
		res := a.Aggregate(nil)
		res.Candidates = found.Candidates
		return res, nil
	}

	best := *found.Best
	local := make(map[source.Name]float64, len(found.Candidates))
	for _, c := range found.Candidates {
		local[c.Source] = c.Score
	}

	var results []source.GenreResult
	for _, ad := range a.matcher.Adapters() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		own, err := ad.SearchAlbum(ctx, best.Artist, best.Album)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			util.WarnLog("%s: confirm search failed for %s - %s: %v", ad.Name().DisplayName(), best.Artist, best.Album, err)
			continue
		}
		if own == nil {
			continue
		}

		genres, err := ad.FetchGenres(ctx, *own)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			util.WarnLog("%s: genre fetch failed for %s - %s: %v", ad.Name().DisplayName(), own.Artist, own.Album, err)
			continue
		}
		if genres == nil || len(genres.Genres) == 0 {
			continue
		}
		genres.MatchQuality = localMatchQuality(local, ad.Name(), best.Score, own.Score)
		results = append(results, *genres)
	}

	res := a.Aggregate(results)
	res.Match = &best
	res.Candidates = found.Candidates
	return res, nil
}

func localMatchQuality(local map[source.Name]float64, name source.Name, best, own float64) float64 {
	q, ok := local[name]
	if !ok {
		q = best
	}
	return math.Min(q, own)
}

// Aggregate combines per-source results. It is pure and deterministic.
func (a *Aggregator) Aggregate(results []source.GenreResult) *Result {
	res := &Result{
		Contributors: map[string][]source.Name{},
		Scores:       map[string]float64{},
	}
	if len(results) == 0 {
		res.Reasoning = "no sources returned genres"
		return res
	}

	var order []string // first-seen order breaks score ties
	var confidenceSum float64
	for _, r := range results {
		weight := a.weight(r.Source)
		r.Weight = weight

		seen := map[string]bool{}
		for _, g := range r.Genres {
			name := Normalize(g)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true

			if _, ok := res.Scores[name]; !ok {
				order = append(order, name)
			}
			res.Scores[name] += weight * (r.APIConfidence / 100)
			res.Contributors[name] = append(res.Contributors[name], r.Source)
		}

		confidenceSum += r.MatchQuality * weight * 100
		res.SourcesUsed = append(res.SourcesUsed, r.Source)
		res.Sources = append(res.Sources, r)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return res.Scores[order[i]] > res.Scores[order[j]]
	})
	for _, g := range order {
		if res.Scores[g] < a.opts.MinScore || len(res.FinalGenres) >= a.opts.MaxGenres {
			continue
		}
		res.FinalGenres = append(res.FinalGenres, g)
	}

	// Genres that did not make the cut are not reported as contributions
	kept := map[string]bool{}
	for _, g := range res.FinalGenres {
		kept[g] = true
	}
	for g := range res.Contributors {
		if !kept[g] {
			delete(res.Contributors, g)
		}
	}

	if len(res.FinalGenres) == 0 {
		// Sources answered but nothing cleared the inclusion threshold
		res.SourcesUsed = nil
		res.Reasoning = fmt.Sprintf("%d source(s) returned genres but none scored at least %.2f", len(results), a.opts.MinScore)
		return res
	}

	n := float64(len(results))
	bonus := math.Min(maxBonus, (n-1)*bonusPerSource)
	res.Confidence = clamp(confidenceSum/n+bonus, 0, 100)
	res.Reasoning = reasoning(res)
	return res
}

func (a *Aggregator) weight(name source.Name) float64 {
	if w, ok := a.opts.Weights[name]; ok {
		return w
	}
	return 0.5
}

// reasoning names the top three genres and who named them
func reasoning(res *Result) string {
	top := res.FinalGenres
	if len(top) > 3 {
		top = top[:3]
	}
	parts := make([]string, 0, len(top))
	for _, g := range top {
		names := make([]string, 0, len(res.Contributors[g]))
		for _, s := range res.Contributors[g] {
			names = append(names, s.DisplayName())
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", g, strings.Join(names, ", ")))
	}
	return fmt.Sprintf("Top genres: %s; %d source(s), confidence %.1f%%",
		strings.Join(parts, "; "), len(res.SourcesUsed), res.Confidence)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
