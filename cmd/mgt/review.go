package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/genre-tagger/internal/batch"
	"github.com/franz/genre-tagger/internal/meta"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work through the manual review queue",
	Long: `Albums whose confidence falls between skip_threshold and
confidence_threshold are queued for manual review. Medium-confidence items
are listed before low-confidence ones.

Approving or editing an item writes its genres to the album's files (unless
dry-run) and marks the album as tagged so later runs skip it.`,
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review items",
	RunE:  runReviewList,
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <id>...",
	Short: "Approve the suggested genres and tag the files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveReviews(cmd, args, store.DecisionApproved, nil)
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <id>...",
	Short: "Reject the suggestion and leave the files untouched",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveReviews(cmd, args, store.DecisionRejected, nil)
	},
}

var reviewEditCmd = &cobra.Command{
	Use:   "edit <id> <genre>...",
	Short: "Tag the files with your own genres instead of the suggestion",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveReviews(cmd, args[:1], store.DecisionEdited, args[1:])
	},
}

var reviewApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Approve every pending item at or above a confidence",
	RunE:  runReviewApply,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewListCmd, reviewApproveCmd, reviewRejectCmd, reviewEditCmd, reviewApplyCmd)

	reviewCmd.PersistentFlags().String("job", "", "only items of this job (ID or prefix)")
	reviewCmd.PersistentFlags().Bool("dry-run", true, "show what would be written without touching files")
	reviewCmd.PersistentFlags().Bool("apply", false, "write tags (same as --dry-run=false)")
	reviewListCmd.Flags().Int("limit", 50, "number of items to list (0 = all)")
	reviewApplyCmd.Flags().Float64("min-confidence", 80, "approve items with at least this confidence")
}

func runReviewList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	jobID, err := reviewJobID(cmd, db)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	items, err := db.PendingReviews(jobID, limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		util.InfoLog("Review queue is empty")
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.Artist,
			item.Album,
			util.FormatPercent(item.Confidence),
			joinGenres(item.SuggestedGenres),
			shortID(item.JobID),
			util.FormatAgo(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "Artist", "Album", "Confidence", "Suggested", "Job", "Queued"}, rows,
		alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft)

	total, _ := db.CountPendingReviews(jobID)
	if total > len(items) {
		util.InfoLog("%d of %d pending items shown", len(items), total)
	}
	return nil
}

func runReviewApply(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	jobID, err := reviewJobID(cmd, db)
	if err != nil {
		db.Close()
		return err
	}
	items, err := db.PendingReviews(jobID, 0)
	db.Close()
	if err != nil {
		return err
	}

	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	var ids []string
	for _, item := range items {
		if item.Confidence >= minConfidence {
			ids = append(ids, strconv.FormatInt(item.ID, 10))
		}
	}
	if len(ids) == 0 {
		util.InfoLog("No pending items at or above %s", util.FormatPercent(minConfidence))
		return nil
	}
	util.InfoLog("Approving %d of %d pending items", len(ids), len(items))
	return resolveReviews(cmd, ids, store.DecisionApproved, nil)
}

// resolveReviews applies one decision to every listed item. Failures are
// reported per item; the first one is returned after all were tried.
func resolveReviews(cmd *cobra.Command, ids []string, decision store.Decision, genres []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if apply, _ := cmd.Flags().GetBool("apply"); apply {
		viper.Set("dry_run", false)
	} else if cmd.Flags().Changed("dry-run") {
		dry, _ := cmd.Flags().GetBool("dry-run")
		viper.Set("dry_run", dry)
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

	if !cfg.DryRun && decision != store.DecisionRejected {
		if err := meta.ValidateFFmpeg(); err != nil {
			return fmt.Errorf("writing tags needs ffmpeg: %w", err)
		}
	}
	if decision == store.DecisionEdited {
		_, unknown := e.standardizer.Validate(genres)
		for _, g := range unknown {
			if hints := e.standardizer.Suggest(g, 3); len(hints) > 0 {
				util.WarnLog("Unknown genre %q (kept as typed), did you mean: %s", g, strings.Join(hints, ", "))
			} else {
				util.WarnLog("Unknown genre %q (kept as typed)", g)
			}
		}
	}

	orch, err := batch.New(&batch.Config{
		Store:            e.db,
		Fetcher:          e.aggregator,
		Standardizer:     e.standardizer,
		Thresholds:       cfg.Thresholds(),
		MaxGenres:        cfg.MaxGenres,
		DryRun:           cfg.DryRun,
		PreserveExisting: cfg.PreserveExisting,
		Logger:           e.logger,
	})
	if err != nil {
		return err
	}

	var firstErr error
	for _, raw := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid review id %q", raw)
		}

		res, err := orch.ApplyReview(ctx, id, decision, genres)
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) {
				return err
			}
			util.ErrorLog("Review %d: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
		case decision == store.DecisionRejected:
			util.SuccessLog("Review %d rejected", id)
		case cfg.DryRun:
			util.InfoLog("Review %d: would write %v to %s (dry-run)", id, res.FinalGenres, res.AlbumKey)
		default:
			util.SuccessLog("Review %d: %s tagged with %v (%d files)", id, res.AlbumKey, res.FinalGenres, res.FilesUpdated)
		}
	}
	return firstErr
}

// reviewJobID resolves the --job flag to a full job ID
func reviewJobID(cmd *cobra.Command, db *store.Store) (string, error) {
	prefix, _ := cmd.Flags().GetString("job")
	if prefix == "" {
		return "", nil
	}
	job, err := findJob(db, prefix)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}
