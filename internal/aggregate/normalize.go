package aggregate

import (
	"strings"

	"github.com/franz/genre-tagger/internal/util"
)

// synonyms collapse spellings that sources disagree on, after title-casing
var synonyms = map[string]string{
	"Hip-Hop":          "Hip Hop",
	"Hiphop":           "Hip Hop",
	"Electronic/Dance": "Electronic",
	"Electronica":      "Electronic",
	"Rock/Pop":         "Rock",
	"Rnb":              "R&B",
	"Rhythm And Blues": "R&B",
	"Prog Rock":        "Progressive Rock",
	"Drum 'N' Bass":    "Drum And Bass",
	"Drum N Bass":      "Drum And Bass",
}

// Normalize is the scoring key of a genre: trimmed, whitespace collapsed,
// title-cased and mapped through the synonym table.
func Normalize(genre string) string {
	g := strings.Join(strings.Fields(genre), " ")
	if g == "" {
		return ""
	}
	g = util.TitleCase(g)
	if s, ok := synonyms[g]; ok {
		return s
	}
	return g
}
