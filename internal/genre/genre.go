// Package genre maps free-form genre names from tags and metadata sources
// onto a canonical vocabulary with parent genres.
package genre

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/franz/genre-tagger/internal/util"
)

var (
	articlePrefix = regexp.MustCompile(`(?i)^(the|a|an)\s+`)
	genericSuffix = regexp.MustCompile(`(?i)\s+(music|genre)$`)
)

// Standardizer holds the alias table and the genre hierarchy
type Standardizer struct {
	// lookup key -> canonical name, for aliases and canonical names alike
	canonical map[string]string
	parents   map[string][]string
	known     map[string]bool
}

// FileConfig is the JSON layout accepted by LoadFile
type FileConfig struct {
	Mappings  map[string]string   `json:"mappings"`
	Hierarchy map[string][]string `json:"hierarchy"`
}

// New returns a Standardizer loaded with the built-in vocabulary
func New() *Standardizer {
	s := &Standardizer{
		canonical: make(map[string]string),
		parents:   make(map[string][]string),
		known:     make(map[string]bool),
	}
	for _, g := range defaultStandalone {
		s.addCanonical(g)
	}
	for child, parents := range defaultHierarchy {
		s.AddHierarchy(child, parents...)
	}
	for from, to := range defaultAliases {
		s.AddMapping(from, to)
	}
	return s
}

// LoadFile returns the built-in vocabulary extended by a JSON file of
// extra mappings and hierarchy entries. A missing file is not an error.
func LoadFile(path string) (*Standardizer, error) {
	s := New()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		util.DebugLog("Genre config %s not found, using built-in table", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read genre config: %w", err)
	}

	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse genre config %s: %w", path, err)
	}
	for child, parents := range fc.Hierarchy {
		s.AddHierarchy(child, parents...)
	}
	for from, to := range fc.Mappings {
		s.AddMapping(from, to)
	}
	util.DebugLog("Loaded %d mapping(s) and %d hierarchy entries from %s", len(fc.Mappings), len(fc.Hierarchy), path)
	return s, nil
}

// AddMapping makes from an alias of the canonical genre to
func (s *Standardizer) AddMapping(from, to string) {
	to = s.addCanonical(to)
	s.canonical[key(from)] = to
}

// AddHierarchy sets the parents of child, replacing earlier ones
func (s *Standardizer) AddHierarchy(child string, parents ...string) {
	child = s.addCanonical(child)
	ps := make([]string, 0, len(parents))
	for _, p := range parents {
		ps = append(ps, s.addCanonical(p))
	}
	s.parents[child] = ps
}

// addCanonical registers a canonical name and returns its stored spelling
func (s *Standardizer) addCanonical(name string) string {
	name = clean(name)
	k := key(name)
	if existing, ok := s.canonical[k]; ok && s.known[existing] {
		return existing
	}
	s.canonical[k] = name
	s.known[name] = true
	return name
}

// Normalize returns the canonical spelling of genre. Unknown genres come
// back cleaned and title-cased. Empty input gives "".
func (s *Standardizer) Normalize(genre string) string {
	cleaned := clean(genre)
	if cleaned == "" {
		return ""
	}
	if c, ok := s.canonical[key(cleaned)]; ok {
		return c
	}
	return util.TitleCase(cleaned)
}

// Hierarchy returns the parents of a genre (after normalization)
func (s *Standardizer) Hierarchy(genre string) []string {
	ps := s.parents[s.Normalize(genre)]
	out := make([]string, len(ps))
	copy(out, ps)
	return out
}

// NormalizeList normalizes every entry (splitting "a; b" values),
// deduplicates case-insensitively keeping first occurrences, then
// appends missing parent genres.
func (s *Standardizer) NormalizeList(genres []string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(g string) {
		k := key(g)
		if g == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, g)
	}

	for _, raw := range genres {
		for _, part := range strings.Split(raw, ";") {
			add(s.Normalize(part))
		}
	}
	for _, g := range out {
		for _, p := range s.parents[g] {
			add(p)
		}
	}
	return out
}

// Expand adds the parents of each genre without renaming anything
func (s *Standardizer) Expand(genres []string) []string {
	out := append([]string(nil), genres...)
	seen := map[string]bool{}
	for _, g := range genres {
		seen[key(g)] = true
	}
	for _, g := range genres {
		for _, p := range s.Hierarchy(g) {
			if !seen[key(p)] {
				seen[key(p)] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Merge combines the genres already on the files with the suggested ones:
// original first, normalized, deduplicated, expanded with parents and cut
// to max entries (max <= 0 means no limit).
func (s *Standardizer) Merge(original, suggested []string, max int) []string {
	all := make([]string, 0, len(original)+len(suggested))
	all = append(all, original...)
	all = append(all, suggested...)

	merged := s.NormalizeList(all)
	if max > 0 && len(merged) > max {
		merged = merged[:max]
	}
	return merged
}

// Validate splits genres into known canonical names and unknown inputs
func (s *Standardizer) Validate(genres []string) (valid, invalid []string) {
	for _, g := range genres {
		n := s.Normalize(g)
		if s.known[n] {
			valid = append(valid, n)
		} else {
			invalid = append(invalid, g)
		}
	}
	return valid, invalid
}

// Suggest lists known genres containing partial, alphabetically
func (s *Standardizer) Suggest(partial string, limit int) []string {
	p := key(partial)
	var out []string
	for _, g := range s.Known() {
		if strings.Contains(key(g), p) {
			out = append(out, g)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Known returns every canonical genre, sorted
func (s *Standardizer) Known() []string {
	out := make([]string, 0, len(s.known))
	for g := range s.known {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// clean trims, collapses whitespace and drops "The ..." / "... Music" noise
func clean(genre string) string {
	g := strings.Join(strings.Fields(genre), " ")
	g = articlePrefix.ReplaceAllString(g, "")
	g = genericSuffix.ReplaceAllString(g, "")
	return g
}

// key folds case and accents and reduces punctuation to single spaces, so
// "Hip-Hop", "hip hop" and "HIP HOP" share a key and "&" reads as "and".
func key(genre string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, genre)
	if err != nil {
		folded = genre
	}
	folded = cases.Fold().String(folded)
	folded = strings.ReplaceAll(folded, "&", " and ")

	var b strings.Builder
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		if r != '\'' {
			space = true
		}
	}
	return b.String()
}
