// Package similarity scores how alike two names are, for release matching.
package similarity

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// MatchThreshold is the minimum match score for a candidate release to be usable.
const MatchThreshold = 0.7

var levenshtein = metrics.NewLevenshtein()

// Score returns a normalized edit-distance similarity in [0,1].
// It is symmetric and Score(x, x) == 1. Callers lower-case their inputs;
// Score does not fold case itself.
func Score(a, b string) float64 {
	if a == b {
		return 1.0
	}
	s := strutil.Similarity(a, b, levenshtein)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// MatchScore averages artist and album similarity between local metadata and
// a remote candidate. Inputs are trimmed and lower-cased here.
func MatchScore(artist, album, candidateArtist, candidateAlbum string) float64 {
	artistSim := Score(fold(artist), fold(candidateArtist))
	albumSim := Score(fold(album), fold(candidateAlbum))
	return (artistSim + albumSim) / 2
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
