package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/genre-tagger/internal/batch"
	"github.com/franz/genre-tagger/internal/meta"
	"github.com/franz/genre-tagger/internal/report"
	"github.com/franz/genre-tagger/internal/scan"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

var tagCmd = &cobra.Command{
	Use:   "tag [library]",
	Short: "Look up genres for every album and tag the files",
	Long: `Scan a library and tag every album with standardized genres.

For each album mgt finds the best matching release across the enabled
sources, aggregates their genres and classifies the result:
- confidence >= confidence_threshold: genres are written (unless dry-run)
- between skip_threshold and confidence_threshold: queued for manual review
- below skip_threshold: skipped

Albums tagged by an earlier run are skipped without querying any source.
Without a library argument the albums registered by the last scan are used.
Runs are dry by default; pass --apply to write tags.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)

	tagCmd.Flags().Bool("dry-run", true, "compute everything but do not write tags")
	tagCmd.Flags().Bool("apply", false, "write tags (same as --dry-run=false)")
	tagCmd.Flags().Bool("preserve-existing", false, "also keep the genre tag each file carries at write time")
	tagCmd.Flags().Bool("force", false, "reprocess albums that an earlier job already tagged")
	tagCmd.Flags().String("name", "", "job name (default: library path and date)")
	tagCmd.Flags().Int("limit", 0, "process at most N albums (0 = all)")
	tagCmd.Flags().Int("workers", 0, "tag reading workers (default from config)")
	tagCmd.Flags().Bool("report", true, "write a markdown report when the job finishes")

	viper.BindPFlag("dry_run", tagCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("preserve_existing", tagCmd.Flags().Lookup("preserve-existing"))
}

func runTag(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if apply, _ := cmd.Flags().GetBool("apply"); apply {
		viper.Set("dry_run", false)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lock, err := acquireLock(cfg.DB)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	e, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	if !cfg.DryRun {
		if err := meta.ValidateFFmpeg(); err != nil {
			return fmt.Errorf("writing tags needs ffmpeg: %w", err)
		}
	}

	name, _ := cmd.Flags().GetString("name")
	var albums []*store.Album
	if len(args) == 1 {
		albums, err = scanLibrary(ctx, cmd, e, args[0])
		if name == "" {
			name = fmt.Sprintf("%s %s", filepath.Base(args[0]), time.Now().Format("2006-01-02 15:04"))
		}
	} else {
		albums, err = e.db.ListAlbums()
		util.InfoLog("Using %s albums from the registry", util.FormatCount(len(albums)))
		if name == "" {
			name = fmt.Sprintf("registry %s", time.Now().Format("2006-01-02 15:04"))
		}
	}
	if err != nil {
		return err
	}
	if len(albums) == 0 {
		util.WarnLog("No albums to process")
		return nil
	}
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && limit < len(albums) {
		albums = albums[:limit]
	}

	force, _ := cmd.Flags().GetBool("force")
	orch, err := batch.New(&batch.Config{
		Store:            e.db,
		Fetcher:          e.aggregator,
		Standardizer:     e.standardizer,
		Thresholds:       cfg.Thresholds(),
		MaxGenres:        cfg.MaxGenres,
		DryRun:           cfg.DryRun,
		PreserveExisting: cfg.PreserveExisting,
		Force:            force,
		Settings:         jobSettings(),
		Logger:           e.logger,
	})
	if err != nil {
		return err
	}

	summary, err := orch.Run(ctx, name, albums)
	if err != nil {
		return fmt.Errorf("job failed: %w", err)
	}
	printSummary(summary)

	if writeReport, _ := cmd.Flags().GetBool("report"); writeReport && cfg.EventsDir != "" {
		rep, err := report.GenerateJobReport(e.db, summary.Job.ID)
		if err != nil {
			util.WarnLog("Failed to build report: %v", err)
		} else {
			rep.DatabasePath = cfg.DB
			rep.EventLogPath = e.logger.Path()
			path := report.DefaultReportPath(cfg.EventsDir, rep)
			if err := report.WriteMarkdownReport(rep, path); err != nil {
				util.WarnLog("Failed to write report: %v", err)
			} else {
				util.InfoLog("Report: %s", path)
			}
		}
	}

	if summary.Cancelled {
		return context.Canceled
	}
	return nil
}

// scanLibrary walks root and registers its albums
func scanLibrary(ctx context.Context, cmd *cobra.Command, e *engine, root string) ([]*store.Album, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("library directory does not exist: %s", root)
	}
	if !meta.CheckFFprobeAvailable() {
		util.DebugLog("ffprobe not found in PATH - using tag library only")
	}

	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = e.cfg.ScanWorkers
	}
	scanner := scan.New(&scan.Config{
		Store:       e.db,
		Concurrency: workers,
		Logger:      e.logger,
	})

	start := time.Now()
	result, err := scanner.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	util.InfoLog("Scanned %s files into %s albums in %s",
		util.FormatCount(result.FilesRead), util.FormatCount(len(result.Albums)), util.FormatDuration(time.Since(start)))
	if len(result.Errors) > 0 {
		util.WarnLog("%d files could not be read", len(result.Errors))
	}
	return result.Albums, nil
}

// jobSettings is the configuration snapshot stored with a job
func jobSettings() map[string]any {
	settings := map[string]any{}
	for _, key := range []string{
		"confidence_threshold", "review_threshold", "skip_threshold", "dry_run",
		"preserve_existing", "max_genres", "min_genre_score", "source_order",
		"source_weights", "cache_backend",
	} {
		settings[key] = viper.Get(key)
	}
	return settings
}

func printSummary(s *batch.Summary) {
	job := s.Job
	rows := [][]string{
		{"Job", fmt.Sprintf("%s (%s)", shortID(job.ID), job.Name)},
		{"Status", string(job.Status)},
		{"Albums", fmt.Sprintf("%d / %d (%s)", job.Processed, job.TotalAlbums, util.FormatPercent(job.ProgressPercent()))},
		{"Tagged", fmt.Sprintf("%d (%s success rate)", job.Successful, util.FormatPercent(job.SuccessRate()))},
		{"Needs review", fmt.Sprintf("%d (%d pending in queue)", job.NeedsReview, s.PendingReviews)},
		{"Skipped", fmt.Sprintf("%d", job.Skipped)},
		{"Failed", fmt.Sprintf("%d", job.Failed)},
		{"Files updated", util.FormatCount(s.FilesUpdated)},
		{"Elapsed", util.FormatDuration(s.Elapsed)},
	}
	if job.DryRun {
		rows = append(rows, []string{"Mode", "dry-run (no files written)"})
	}
	printTable([]string{"Summary", ""}, rows)
}
