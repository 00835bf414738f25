package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/genre-tagger/internal/policy"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

// ApplyReview resolves a review item. Approved items write the suggested
// genres, edited items write genres instead; both record a COMPLETED
// result under the item's job so later runs skip the album. In dry-run
// mode nothing is written and the item stays pending.
func (o *Orchestrator) ApplyReview(ctx context.Context, id int64, decision store.Decision, genres []string) (*store.AlbumResult, error) {
	item, err := o.store.GetReview(id)
	if err != nil {
		return nil, err
	}
	if item.ReviewedAt != nil {
		return nil, fmt.Errorf("review item %d: %w", id, util.ErrAlreadyReviewed)
	}

	switch decision {
	case store.DecisionRejected:
		if o.dryRun {
			util.InfoLog("[dry-run] would reject %s", item.AlbumKey)
			return nil, nil
		}
		if err := o.store.ResolveReview(id, decision, nil); err != nil {
			return nil, err
		}
		o.logger.LogReview(item.JobID, item.AlbumKey, string(decision), nil, "")
		return nil, nil
	case store.DecisionApproved:
		genres = item.SuggestedGenres
	case store.DecisionEdited:
		genres = o.standardizer.NormalizeList(genres)
		if len(genres) == 0 {
			return nil, fmt.Errorf("edited review %d has no genres", id)
		}
	default:
		return nil, fmt.Errorf("unknown review decision %q", decision)
	}

	album, err := o.store.GetAlbum(item.AlbumKey)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, fmt.Errorf("album %s is not in the registry, rescan the library: %w", item.AlbumKey, util.ErrNotFound)
	}

	start := time.Now()
	res := &store.AlbumResult{
		JobID:           item.JobID,
		AlbumKey:        item.AlbumKey,
		Artist:          item.Artist,
		Album:           item.Album,
		OriginalGenres:  album.Genres,
		SuggestedGenres: item.SuggestedGenres,
		Confidence:      item.Confidence,
		Status:          policy.StatusCompleted,
		Reasoning:       fmt.Sprintf("manual review: %s", decision),
	}
	if prev, err := o.store.GetResult(item.JobID, item.AlbumKey); err == nil && prev != nil {
		res.SourcesUsed = prev.SourcesUsed
		res.MatchedSource = prev.MatchedSource
	}
	res.FinalGenres = o.finalGenres(album, genres)

	if err := o.writeAlbum(ctx, item.JobID, album, res); err != nil {
		return nil, err
	}
	res.ProcessingTime = time.Since(start)

	if o.dryRun {
		util.InfoLog("[dry-run] would tag %d files of %s with %v", len(album.Tracks), item.AlbumKey, res.FinalGenres)
		return res, nil
	}

	if err := o.store.SaveResult(res); err != nil {
		return nil, err
	}
	if res.Status == policy.StatusFailed {
		return res, fmt.Errorf("failed to tag %s: %s", item.AlbumKey, res.ErrorMessage)
	}
	var reviewer []string
	if decision == store.DecisionEdited {
		reviewer = genres
	}
	if err := o.store.ResolveReview(id, decision, reviewer); err != nil {
		return nil, err
	}
	o.logger.LogReview(item.JobID, item.AlbumKey, string(decision), res.FinalGenres, "")
	util.SuccessLog("Tagged %d files of %s with %v", res.FilesUpdated, item.AlbumKey, res.FinalGenres)
	return res, nil
}
