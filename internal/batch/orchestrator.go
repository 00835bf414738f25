package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/genre-tagger/internal/aggregate"
	"github.com/franz/genre-tagger/internal/genre"
	"github.com/franz/genre-tagger/internal/meta"
	"github.com/franz/genre-tagger/internal/policy"
	"github.com/franz/genre-tagger/internal/report"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

// GenreFetcher finds an album across the sources and aggregates their genres
type GenreFetcher interface {
	FetchAndAggregate(ctx context.Context, artist, album string) (*aggregate.Result, error)
}

// TagWriter writes a genre list to one audio file
type TagWriter interface {
	WriteGenres(ctx context.Context, path string, genres []string, opts meta.WriteOptions) (*meta.WriteResult, error)
}

// Orchestrator processes albums one after another: idempotency guard,
// match and aggregation, confidence policy, then tag writing or review
type Orchestrator struct {
	store        *store.Store
	fetcher      GenreFetcher
	writer       TagWriter
	standardizer *genre.Standardizer
	thresholds   policy.Thresholds
	maxGenres    int
	dryRun       bool
	preserve     bool
	force        bool
	configJSON   string
	logger       *report.EventLogger
}

// Config holds orchestrator configuration
type Config struct {
	Store        *store.Store
	Fetcher      GenreFetcher
	Writer       TagWriter           // nil = ffmpeg TagWriter
	Standardizer *genre.Standardizer // nil = built-in genre table
	Thresholds   policy.Thresholds
	MaxGenres    int
	DryRun       bool
	// PreserveExisting makes the writer re-read each file's genre tag and keep
	// it ahead of the merged genres
	PreserveExisting bool
	// Force reprocesses albums that a previous job already completed
	Force bool
	// Settings is stored with the job as JSON for later inspection
	Settings any
	Logger   *report.EventLogger
}

// New creates a new Orchestrator
func New(cfg *Config) (*Orchestrator, error) {
	if cfg.Store == nil || cfg.Fetcher == nil {
		return nil, errors.New("batch: store and fetcher are required")
	}
	if cfg.Writer == nil {
		cfg.Writer = meta.NewTagWriter()
	}
	if cfg.Standardizer == nil {
		cfg.Standardizer = genre.New()
	}
	if cfg.Thresholds == (policy.Thresholds{}) {
		cfg.Thresholds = policy.DefaultThresholds()
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxGenres <= 0 {
		cfg.MaxGenres = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = report.NullLogger()
	}

	var configJSON string
	if cfg.Settings != nil {
		data, err := json.Marshal(cfg.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to encode job settings: %w", err)
		}
		configJSON = string(data)
	}

	return &Orchestrator{
		store:        cfg.Store,
		fetcher:      cfg.Fetcher,
		writer:       cfg.Writer,
		standardizer: cfg.Standardizer,
		thresholds:   cfg.Thresholds,
		maxGenres:    cfg.MaxGenres,
		dryRun:       cfg.DryRun,
		preserve:     cfg.PreserveExisting,
		force:        cfg.Force,
		configJSON:   configJSON,
		logger:       cfg.Logger,
	}, nil
}

// Summary is the outcome of one Run
type Summary struct {
	Job          *store.Job
	FilesUpdated int
	// PendingReviews is the job's open review queue at the end of the run
	PendingReviews int
	Cancelled      bool
	Elapsed        time.Duration
}

// Counters returns the job's final tallies
func (s *Summary) Counters() store.Counters {
	return s.Job.Counters()
}

// Run creates a job named name and processes albums in order. A failing
// album is recorded as FAILED and the run continues. Cancelling ctx stops
// the run before the next album; results persisted so far are kept.
func (o *Orchestrator) Run(ctx context.Context, name string, albums []*store.Album) (*Summary, error) {
	job := &store.Job{
		Name:                name,
		TotalAlbums:         len(albums),
		ConfidenceThreshold: o.thresholds.AutoApply,
		DryRun:              o.dryRun,
		ConfigJSON:          o.configJSON,
	}
	if err := o.store.CreateJob(job); err != nil {
		return nil, err
	}
	if err := o.store.StartJob(job.ID); err != nil {
		return nil, err
	}

	util.InfoLog("Job %s: processing %s albums", shortID(job.ID), util.FormatCount(len(albums)))
	if o.dryRun {
		util.InfoLog("DRY-RUN mode: no tags will be written")
	}

	start := time.Now()
	summary := &Summary{Job: job}
	counters := store.Counters{}

	var bar *progressbar.ProgressBar
	if util.ShowProgress() && len(albums) > 0 {
		bar = progressbar.NewOptions(len(albums),
			progressbar.OptionSetDescription("Tagging albums"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("albums"),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, album := range albums {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		res, err := o.processAlbum(ctx, job.ID, album)
		if err != nil {
			// Interrupted mid-album: nothing was written, nothing is recorded
			summary.Cancelled = true
			break
		}
		if err := o.store.SaveResult(res); err != nil {
			return summary, err
		}

		counters.Processed++
		switch res.Status {
		case policy.StatusCompleted:
			counters.Successful++
		case policy.StatusNeedsReview:
			counters.NeedsReview++
		case policy.StatusSkipped:
			counters.Skipped++
		case policy.StatusFailed:
			counters.Failed++
		}
		summary.FilesUpdated += res.FilesUpdated

		if err := o.store.UpdateJobProgress(job.ID, counters); err != nil {
			return summary, err
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	status := store.JobCompleted
	if summary.Cancelled {
		status = store.JobCancelled
		util.WarnLog("Job %s cancelled after %d of %d albums", shortID(job.ID), counters.Processed, len(albums))
	}
	if err := o.store.FinishJob(job.ID, status); err != nil {
		return summary, err
	}

	final, err := o.store.GetJob(job.ID)
	if err != nil {
		return summary, err
	}
	if final != nil {
		summary.Job = final
	}
	if n, err := o.store.CountPendingReviews(job.ID); err == nil {
		summary.PendingReviews = n
	}
	summary.Elapsed = time.Since(start)

	util.SuccessLog("Job %s: %d processed, %d tagged, %d for review, %d skipped, %d failed in %s",
		shortID(job.ID), counters.Processed, counters.Successful, counters.NeedsReview,
		counters.Skipped, counters.Failed, util.FormatDuration(summary.Elapsed))
	return summary, nil
}

// processAlbum runs the pipeline for one album. The returned error is
// non-nil only when ctx was cancelled before anything was written.
func (o *Orchestrator) processAlbum(ctx context.Context, jobID string, album *store.Album) (res *store.AlbumResult, err error) {
	start := time.Now()
	res = &store.AlbumResult{
		JobID:          jobID,
		AlbumKey:       album.Key,
		Artist:         album.Artist,
		Album:          album.Album,
		OriginalGenres: album.Genres,
	}
	defer func() {
		if r := recover(); r != nil {
			util.ErrorLog("Panic while processing %s: %v\n%s", album.Key, r, debug.Stack())
			res.Status = policy.StatusFailed
			res.ErrorMessage = fmt.Sprintf("panic: %v", r)
			err = nil
		}
		if res != nil {
			res.ProcessingTime = time.Since(start)
			if res.Status == policy.StatusFailed {
				o.logger.LogError(report.EventError, jobID, album.Key, errors.New(res.ErrorMessage))
			}
		}
	}()

	if !o.force {
		prev, err := o.store.LastCompleted(album.Key)
		if err != nil {
			return o.fail(res, err), nil
		}
		if prev != nil {
			reason := fmt.Sprintf("already tagged by job %s", shortID(prev.JobID))
			util.DebugLog("Skipping %s: %s", album.Key, reason)
			res.Status = policy.StatusSkipped
			res.FinalGenres = prev.FinalGenres
			res.Confidence = prev.Confidence
			res.Reasoning = reason
			o.logger.LogSkip(jobID, album.Key, reason)
			return res, nil
		}
	}

	agg, err := o.fetcher.FetchAndAggregate(ctx, album.Artist, album.Album)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return o.fail(res, err), nil
	}

	res.SuggestedGenres = agg.FinalGenres
	res.Confidence = agg.Confidence
	res.Reasoning = agg.Reasoning
	for _, s := range agg.SourcesUsed {
		res.SourcesUsed = append(res.SourcesUsed, string(s))
	}
	if agg.Match != nil {
		res.MatchedSource = string(agg.Match.Source)
		o.logger.LogMatch(jobID, album.Key, string(agg.Match.Source), agg.Match.Score, len(agg.Candidates))
	} else {
		o.logger.LogMatch(jobID, album.Key, "", 0, len(agg.Candidates))
	}
	o.logger.LogGenres(jobID, album.Key, agg.FinalGenres, res.SourcesUsed, agg.Confidence)

	decision := policy.Classify(agg.Confidence, o.thresholds)
	res.Status = decision.Status
	if decision.Reason != "" {
		res.Reasoning = joinReason(res.Reasoning, decision.Reason)
	}
	o.logger.LogClassify(jobID, album.Key, string(decision.Status), agg.Confidence, decision.Reason)

	switch decision.Status {
	case policy.StatusCompleted:
		res.FinalGenres = o.finalGenres(album, agg.FinalGenres)
		if err := o.writeAlbum(ctx, jobID, album, res); err != nil {
			return nil, err
		}
	case policy.StatusNeedsReview:
		res.FinalGenres = o.finalGenres(album, agg.FinalGenres)
		item := &store.ReviewItem{
			JobID:           jobID,
			AlbumKey:        album.Key,
			Artist:          album.Artist,
			Album:           album.Album,
			SuggestedGenres: agg.FinalGenres,
			Confidence:      agg.Confidence,
			Reason:          decision.Reason,
			Priority:        decision.Priority,
		}
		if err := o.store.EnqueueReview(item); err != nil {
			return o.fail(res, err), nil
		}
		o.logger.LogReview(jobID, album.Key, "queued", agg.FinalGenres, decision.Reason)
	default:
		o.logger.LogSkip(jobID, album.Key, decision.Reason)
	}

	util.DebugLog("%s: %s (%.1f%%) %v", album.Key, res.Status, res.Confidence, res.FinalGenres)
	return res, nil
}

// finalGenres merges the suggestion behind the album's existing genres.
// PreserveExisting only decides whether the writer also keeps what each file
// carries at write time.
func (o *Orchestrator) finalGenres(album *store.Album, suggested []string) []string {
	return o.standardizer.Merge(album.Genres, suggested, o.maxGenres)
}

// writeAlbum writes res.FinalGenres to every track of album and records
// the outcome on res. Only a cancellation before the first write is
// returned as an error.
func (o *Orchestrator) writeAlbum(ctx context.Context, jobID string, album *store.Album, res *store.AlbumResult) error {
	opts := meta.WriteOptions{PreserveExisting: o.preserve, DryRun: o.dryRun}

	var errs []error
	attempted, succeeded := 0, 0
	for _, track := range album.Tracks {
		if ctx.Err() != nil {
			if succeeded == 0 && len(errs) == 0 {
				return ctx.Err()
			}
			errs = append(errs, fmt.Errorf("interrupted after %d of %d files", attempted, len(album.Tracks)))
			break
		}
		attempted++

		start := time.Now()
		wr, err := o.writer.WriteGenres(ctx, track.Path, res.FinalGenres, opts)
		if err != nil {
			if ctx.Err() != nil && succeeded == 0 && len(errs) == 0 {
				return ctx.Err()
			}
			util.WarnLog("Failed to write genres to %s: %v", track.Path, err)
			o.logger.LogWrite(jobID, track.Path, res.FinalGenres, o.dryRun, time.Since(start), err)
			errs = append(errs, fmt.Errorf("%s: %w", track.Path, err))
			continue
		}
		o.logger.LogWrite(jobID, track.Path, wr.Genres, o.dryRun, time.Since(start), nil)
		succeeded++
		if wr.Written {
			res.FilesUpdated++
		}
	}

	if len(errs) == 0 {
		return nil
	}
	res.ErrorMessage = errors.Join(errs...).Error()
	if succeeded == 0 {
		res.Status = policy.StatusFailed
	}
	return nil
}

// fail records err as the album's failure
func (o *Orchestrator) fail(res *store.AlbumResult, err error) *store.AlbumResult {
	util.ErrorLog("Failed to process %s: %v", res.AlbumKey, err)
	res.Status = policy.StatusFailed
	res.ErrorMessage = err.Error()
	return res
}

func joinReason(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
