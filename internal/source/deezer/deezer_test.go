package deezer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/franz/genre-tagger/internal/source"
	"github.com/franz/genre-tagger/internal/util"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/search/album":
			q := r.URL.Query().Get("q")
			switch {
			case strings.Contains(q, "quota"):
				w.Write([]byte(`{"error":{"type":"Exception","message":"Quota limit exceeded","code":4}}`))
			case strings.Contains(q, "Nobody"):
				w.Write([]byte(`{"data":[],"total":0}`))
			default:
				w.Write(loadFixture(t, "search_animals.json"))
			}

		case r.URL.Path == "/album/1262014":
			w.Write([]byte(`{"id":1262014,"title":"Animals","fans":250000}`))
		case r.URL.Path == "/album/777":
			w.Write([]byte(`{"id":777,"title":"Demo","fans":9}`))

		case strings.HasPrefix(r.URL.Path, "/genre/"):
			id := strings.TrimPrefix(r.URL.Path, "/genre/")
			if id == "404" {
				w.Write([]byte(`{"error":{"type":"DataException","message":"no data","code":800}}`))
				return
			}
			w.Write(loadFixture(t, "genre_rock.json"))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(baseURL string) *Adapter {
	a := NewWithBaseURL(nil, 0, baseURL)
	a.http.SetRetry(&util.RetryConfig{MaxAttempts: 1})
	return a
}

func TestSearchAlbum(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(srv.URL)

	m, err := a.SearchAlbum(context.Background(), "Pink Floyd", "Animals")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.ReleaseID != "1262014" || m.ArtistID != "860" {
		t.Errorf("unexpected ids: %+v", m)
	}
	if m.Raw["genre_id"] != "152" {
		t.Errorf("genre id not carried: %v", m.Raw)
	}
}

func TestSearchAlbumNoResults(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(srv.URL)

	m, err := a.SearchAlbum(context.Background(), "Nobody", "Nothing")
	if err != nil || m != nil {
		t.Errorf("expected (nil, nil), got %+v, %v", m, err)
	}
}

func TestSearchAlbumQuotaError(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(srv.URL)

	_, err := a.SearchAlbum(context.Background(), "quota", "quota")
	if source.Kind(err) != source.KindTransient {
		t.Errorf("expected transient error, got %v", err)
	}
}

func TestFetchGenres(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(srv.URL)

	r, err := a.FetchGenres(context.Background(), source.AlbumMatch{
		Source: source.Deezer, Score: 0.9, ReleaseID: "1262014",
		Raw: map[string]string{"genre_id": "152"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Genres) != 1 || r.Genres[0] != "Rock" {
		t.Errorf("genres = %v", r.Genres)
	}
	if r.APIConfidence != 100 || r.Raw["fans"] != "250000" {
		t.Errorf("api confidence = %.1f (raw %v), want 100", r.APIConfidence, r.Raw)
	}
}

func TestAPIConfidenceFollowsFans(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(srv.URL)

	tests := []struct {
		albumID string
		want    float64
	}{
		{"1262014", 100},
		{"777", source.CountConfidence(9, fullFans)},
		{"404404", unknownFansConfidence},
		{"", unknownFansConfidence},
	}
	for _, tt := range tests {
		r, err := a.FetchGenres(context.Background(), source.AlbumMatch{
			Score: 0.9, ReleaseID: tt.albumID, Raw: map[string]string{"genre_id": "152"},
		})
		if err != nil {
			t.Fatalf("album %q: unexpected error: %v", tt.albumID, err)
		}
		if r.APIConfidence != tt.want || r.MatchQuality != 0.9 {
			t.Errorf("album %q: confidence %.2f / quality %.2f, want %.2f / 0.90", tt.albumID, r.APIConfidence, r.MatchQuality, tt.want)
		}
	}
}

func TestFetchGenresWithoutGenreID(t *testing.T) {
	a := newTestAdapter("http://127.0.0.1:1")
	for _, raw := range []map[string]string{nil, {"genre_id": "-1"}} {
		r, err := a.FetchGenres(context.Background(), source.AlbumMatch{Score: 0.9, Raw: raw})
		if r != nil || err != nil {
			t.Errorf("raw %v: expected (nil, nil), got %+v, %v", raw, r, err)
		}
	}
}

func TestFetchGenresUnknownGenre(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(srv.URL)

	_, err := a.FetchGenres(context.Background(), source.AlbumMatch{Score: 0.9, Raw: map[string]string{"genre_id": "404"}})
	if source.Kind(err) != source.KindNotFound {
		t.Errorf("expected not-found, got %v", err)
	}
}
