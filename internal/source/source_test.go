package source

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestSelectBestRejectsBelowThreshold(t *testing.T) {
	scored := []ScoredCandidate{
		{Candidate: Candidate{Artist: "a", Album: "x"}, Score: 0.5},
		{Candidate: Candidate{Artist: "b", Album: "y"}, Score: 0.6},
		{Candidate: Candidate{Artist: "c", Album: "z"}, Score: 0.65},
	}
	if m := SelectBest(Deezer, scored); m != nil {
		t.Errorf("expected nil for candidates below 0.7, got %+v", m)
	}
}

func TestSelectBestStrictMaxFirstWinsTies(t *testing.T) {
	scored := []ScoredCandidate{
		{Candidate: Candidate{ReleaseID: "1"}, Score: 0.8},
		{Candidate: Candidate{ReleaseID: "2"}, Score: 0.9},
		{Candidate: Candidate{ReleaseID: "3"}, Score: 0.9},
	}
	m := SelectBest(Spotify, scored)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.ReleaseID != "2" || m.Score != 0.9 || m.Source != Spotify {
		t.Errorf("unexpected best: %+v", m)
	}
}

func TestBestCandidate(t *testing.T) {
	candidates := []Candidate{
		{Artist: "Pink Floyd Tribute Band", Album: "Dark Side", ReleaseID: "tribute"},
		{Artist: "Pink Floyd", Album: "The Dark Side of the Moon", ReleaseID: "original"},
	}
	m := BestCandidate(MusicBrainz, "pink floyd", "the dark side of the moon", candidates)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.ReleaseID != "original" || m.Score != 1.0 {
		t.Errorf("expected exact original release, got %+v", m)
	}

	if m := BestCandidate(MusicBrainz, "pink floyd", "animals", nil); m != nil {
		t.Errorf("expected nil for empty candidate list, got %+v", m)
	}
}

func TestCountConfidence(t *testing.T) {
	tests := []struct {
		n, full int
		want    float64
	}{
		{0, 1000, 0},
		{-5, 1000, 0},
		{1000, 1000, 100},
		{5000, 1000, 100},
		{9, 99, 50},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := CountConfidence(tt.n, tt.full); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("CountConfidence(%d, %d) = %.4f, want %.4f", tt.n, tt.full, got, tt.want)
		}
	}
	if CountConfidence(10, 1000) >= CountConfidence(100, 1000) {
		t.Error("more listeners must not lower confidence")
	}
}

func TestSearchBroadening(t *testing.T) {
	ctx := context.Background()
	var queried []string
	run := func(_ context.Context, q string) ([]Candidate, error) {
		queried = append(queried, q)
		switch q {
		case "strict":
			return nil, nil
		case "failing":
			return nil, errors.New("boom")
		case "loose":
			return []Candidate{{ReleaseID: "x"}}, nil
		}
		return nil, nil
	}

	got, err := SearchBroadening(ctx, []string{"strict", "failing", "loose", "never"}, run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ReleaseID != "x" {
		t.Errorf("unexpected candidates: %+v", got)
	}
	if len(queried) != 3 {
		t.Errorf("expected broadening to stop after first non-empty query, queried %v", queried)
	}

	_, err = SearchBroadening(ctx, []string{"strict", "failing"}, run)
	if err == nil {
		t.Error("expected the last error when no query produced candidates")
	}
}

func TestParseName(t *testing.T) {
	if n, err := ParseName(" LastFM "); err != nil || n != LastFM {
		t.Errorf("ParseName: got %q, %v", n, err)
	}
	if _, err := ParseName("napster"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{&ErrSourceUnavailable{Source: Deezer, Status: 503}, KindTransient},
		{&ErrNotFound{Source: Deezer, ID: "1"}, KindNotFound},
		{&ErrAuthRequired{Source: Discogs}, KindAuth},
		{&ErrMalformed{Source: LastFM, Cause: errors.New("bad json")}, KindMalformed},
		{&ErrSourceUnavailable{Source: Spotify, Cause: context.Canceled}, KindCancelled},
		{context.DeadlineExceeded, KindTransient},
		{errors.New("other"), KindOther},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestUnavailableRetryable(t *testing.T) {
	if !(&ErrSourceUnavailable{Status: 503}).Retryable() {
		t.Error("503 should be retryable")
	}
	if !(&ErrSourceUnavailable{Status: 429}).Retryable() {
		t.Error("429 should be retryable")
	}
	if (&ErrSourceUnavailable{Status: 400}).Retryable() {
		t.Error("400 should not be retryable")
	}
}
