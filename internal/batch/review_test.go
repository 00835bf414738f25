package batch

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/franz/genre-tagger/internal/policy"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

// queueReview runs one album that lands in the review queue and returns the item
func queueReview(t *testing.T, o *Orchestrator, db *store.Store, album *store.Album) *store.ReviewItem {
	t.Helper()
	if err := db.UpsertAlbum(album); err != nil {
		t.Fatal(err)
	}
	summary, err := o.Run(context.Background(), "review", []*store.Album{album})
	if err != nil {
		t.Fatal(err)
	}
	items, err := db.PendingReviews(summary.Job.ID, 0)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one review item, got %d (%v)", len(items), err)
	}
	return items[0]
}

func TestApplyReviewApproved(t *testing.T) {
	db := openTestStore(t)
	fetcher := newFakeFetcher()
	writer := newFakeWriter()
	fetcher.results["Pink Floyd|Meddle"] = matched(82, "Progressive Rock")
	album := testAlbum("Pink Floyd", "Meddle", nil, "/m/meddle/01.mp3", "/m/meddle/02.mp3")

	o := newTestOrchestrator(t, db, fetcher, writer, nil)
	item := queueReview(t, o, db, album)
	if len(writer.writes) != 0 {
		t.Fatal("review albums must not be written before approval")
	}

	res, err := o.ApplyReview(context.Background(), item.ID, store.DecisionApproved, nil)
	if err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}
	want := []string{"Progressive Rock", "Rock"}
	if !reflect.DeepEqual(res.FinalGenres, want) || res.FilesUpdated != 2 {
		t.Errorf("unexpected result: genres=%v files=%d", res.FinalGenres, res.FilesUpdated)
	}
	if res.MatchedSource != "spotify" {
		t.Errorf("matched source not carried over: %q", res.MatchedSource)
	}

	stored, _ := db.GetResult(item.JobID, album.Key)
	if stored.Status != policy.StatusCompleted {
		t.Errorf("stored status = %s", stored.Status)
	}
	if prev, _ := db.LastCompleted(album.Key); prev == nil {
		t.Error("approved album should satisfy the idempotency guard")
	}

	resolved, _ := db.GetReview(item.ID)
	if resolved.Decision != store.DecisionApproved || resolved.ReviewedAt == nil {
		t.Errorf("review not resolved: %+v", resolved)
	}

	if _, err := o.ApplyReview(context.Background(), item.ID, store.DecisionApproved, nil); !errors.Is(err, util.ErrAlreadyReviewed) {
		t.Errorf("expected ErrAlreadyReviewed, got %v", err)
	}
}

func TestApplyReviewEdited(t *testing.T) {
	db := openTestStore(t)
	fetcher := newFakeFetcher()
	writer := newFakeWriter()
	fetcher.results["Massive Attack|Mezzanine"] = matched(60, "Electronic")
	album := testAlbum("Massive Attack", "Mezzanine", nil, "/m/mezzanine/01.flac")

	o := newTestOrchestrator(t, db, fetcher, writer, nil)
	item := queueReview(t, o, db, album)

	res, err := o.ApplyReview(context.Background(), item.ID, store.DecisionEdited, []string{"trip-hop"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Trip Hop", "Electronic"}
	if !reflect.DeepEqual(writer.writes["/m/mezzanine/01.flac"], want) {
		t.Errorf("written = %v, want %v", writer.writes["/m/mezzanine/01.flac"], want)
	}
	if res.Status != policy.StatusCompleted {
		t.Errorf("status = %s", res.Status)
	}

	resolved, _ := db.GetReview(item.ID)
	if resolved.Decision != store.DecisionEdited || !reflect.DeepEqual(resolved.ReviewerGenres, want) {
		t.Errorf("reviewer genres = %v", resolved.ReviewerGenres)
	}
}

func TestApplyReviewRejected(t *testing.T) {
	db := openTestStore(t)
	fetcher := newFakeFetcher()
	writer := newFakeWriter()
	fetcher.results["A|B"] = matched(75, "Jazz")
	album := testAlbum("A", "B", nil, "/m/b/01.mp3")

	o := newTestOrchestrator(t, db, fetcher, writer, nil)
	item := queueReview(t, o, db, album)

	res, err := o.ApplyReview(context.Background(), item.ID, store.DecisionRejected, nil)
	if err != nil || res != nil {
		t.Fatalf("reject: res=%v err=%v", res, err)
	}
	if len(writer.writes) != 0 {
		t.Error("rejected review wrote files")
	}
	if n, _ := db.CountPendingReviews(item.JobID); n != 0 {
		t.Errorf("pending reviews = %d", n)
	}
}

func TestApplyReviewDryRunLeavesItemPending(t *testing.T) {
	db := openTestStore(t)
	fetcher := newFakeFetcher()
	writer := newFakeWriter()
	fetcher.results["A|B"] = matched(75, "Jazz")
	album := testAlbum("A", "B", nil, "/m/b/01.mp3")

	o := newTestOrchestrator(t, db, fetcher, writer, func(c *Config) { c.DryRun = true })
	item := queueReview(t, o, db, album)

	res, err := o.ApplyReview(context.Background(), item.ID, store.DecisionApproved, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesUpdated != 0 || len(writer.writes) != 0 {
		t.Error("dry-run approval wrote files")
	}
	if n, _ := db.CountPendingReviews(item.JobID); n != 1 {
		t.Errorf("dry-run approval resolved the item")
	}
}

func TestApplyReviewNeedsRegisteredAlbum(t *testing.T) {
	db := openTestStore(t)
	o := newTestOrchestrator(t, db, newFakeFetcher(), newFakeWriter(), nil)

	job := &store.Job{Name: "manual"}
	if err := db.CreateJob(job); err != nil {
		t.Fatal(err)
	}
	item := &store.ReviewItem{JobID: job.ID, AlbumKey: "Ghost|Album", Artist: "Ghost", Album: "Album", SuggestedGenres: []string{"Rock"}, Priority: 1}
	if err := db.EnqueueReview(item); err != nil {
		t.Fatal(err)
	}

	if _, err := o.ApplyReview(context.Background(), item.ID, store.DecisionApproved, nil); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
