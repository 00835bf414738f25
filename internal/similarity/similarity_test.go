package similarity

import (
	"math"
	"testing"
)

func TestScoreIdentity(t *testing.T) {
	for _, s := range []string{"", "a", "pink floyd", "the dark side of the moon", "sigur rós"} {
		if got := Score(s, s); got != 1.0 {
			t.Errorf("Score(%q, %q) = %v, want 1.0", s, s, got)
		}
	}
}

func TestScoreSymmetricAndBounded(t *testing.T) {
	pairs := [][2]string{
		{"pink floyd", "pink floid"},
		{"radiohead", "ok computer"},
		{"abc", ""},
		{"the beatles", "beatles"},
		{"aaaa", "zzzz"},
	}
	for _, p := range pairs {
		ab := Score(p[0], p[1])
		ba := Score(p[1], p[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("Score not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("Score(%q, %q) = %v out of [0,1]", p[0], p[1], ab)
		}
	}
}

func TestScoreDisjointIsLow(t *testing.T) {
	if got := Score("aaaa", "zzzz"); got > 0.1 {
		t.Errorf("expected disjoint strings to score near 0, got %v", got)
	}
}

func TestScoreDeterministic(t *testing.T) {
	first := Score("the dark side of the moon", "dark side of the moon")
	for i := 0; i < 10; i++ {
		if got := Score("the dark side of the moon", "dark side of the moon"); got != first {
			t.Fatalf("Score changed between calls: %v vs %v", first, got)
		}
	}
}

func TestMatchScore(t *testing.T) {
	tests := []struct {
		name          string
		artist, album string
		cArtist       string
		cAlbum        string
		min, max      float64
	}{
		{"exact, different case", "Pink Floyd", "The Wall", "pink floyd", "THE WALL", 1, 1},
		{"near miss", "Pink Floyd", "The Dark Side of the Moon", "Pink Floyd", "Dark Side of the Moon", MatchThreshold, 0.99},
		{"wrong artist", "Pink Floyd", "Animals", "Zebra Katz", "Animals", 0.5, 0.69},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchScore(tt.artist, tt.album, tt.cArtist, tt.cAlbum)
			if got < tt.min || got > tt.max {
				t.Errorf("MatchScore = %v, want in [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}
