package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/genre-tagger/internal/policy"
	"github.com/franz/genre-tagger/internal/report"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List batch jobs",
	RunE:  runJobs,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show the progress and results of one job",
	Long: `Show counters, progress and per-album results of a job.
A unique prefix of the job ID is accepted.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsShow,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsShowCmd)

	jobsCmd.Flags().Int("limit", 20, "number of jobs to list")
	jobsShowCmd.Flags().String("status", "", "only list albums with this status (completed, needs_review, skipped, failed)")
}

func runJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	jobs, err := db.ListJobs(limit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		util.InfoLog("No jobs yet. Run: mgt tag <library>")
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		mode := "apply"
		if j.DryRun {
			mode = "dry-run"
		}
		rows = append(rows, []string{
			shortID(j.ID),
			j.Name,
			string(j.Status),
			mode,
			fmt.Sprintf("%d/%d", j.Processed, j.TotalAlbums),
			fmt.Sprintf("%d", j.Successful),
			fmt.Sprintf("%d", j.NeedsReview),
			fmt.Sprintf("%d", j.Skipped),
			fmt.Sprintf("%d", j.Failed),
			util.FormatAgo(j.CreatedAt),
		})
	}
	printTable(
		[]string{"ID", "Name", "Status", "Mode", "Albums", "Tagged", "Review", "Skipped", "Failed", "Created"},
		rows,
		alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft,
	)
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	job, err := findJob(db, args[0])
	if err != nil {
		return err
	}

	now := time.Now()
	pending, _ := db.CountPendingReviews(job.ID)
	printTable([]string{"Job", shortID(job.ID)}, [][]string{
		{"Name", job.Name},
		{"Status", string(job.Status)},
		{"Progress", fmt.Sprintf("%d / %d (%s)", job.Processed, job.TotalAlbums, util.FormatPercent(job.ProgressPercent()))},
		{"Tagged", fmt.Sprintf("%d (%s success rate)", job.Successful, util.FormatPercent(job.SuccessRate()))},
		{"Needs review", fmt.Sprintf("%d (%d pending)", job.NeedsReview, pending)},
		{"Skipped", fmt.Sprintf("%d", job.Skipped)},
		{"Failed", fmt.Sprintf("%d", job.Failed)},
		{"Auto-apply at", util.FormatPercent(job.ConfidenceThreshold)},
		{"Elapsed", util.FormatDuration(report.JobElapsed(job, now))},
		{"Estimate", report.EstimateCompletion(job, now)},
		{"Created", util.FormatAgo(job.CreatedAt)},
	})

	status, _ := cmd.Flags().GetString("status")
	results, err := db.ListResults(job.ID, policy.Status(status))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		detail := joinGenres(r.FinalGenres)
		if r.Status == policy.StatusFailed {
			detail = r.ErrorMessage
		}
		rows = append(rows, []string{
			r.AlbumKey,
			string(r.Status),
			util.FormatPercent(r.Confidence),
			fmt.Sprintf("%d", r.FilesUpdated),
			detail,
		})
	}
	printTable([]string{"Album", "Status", "Confidence", "Files", "Genres / error"}, rows,
		alignLeft, alignLeft, alignRight, alignRight, alignLeft)
	return nil
}

// findJob resolves a job ID or unique prefix
func findJob(db *store.Store, id string) (*store.Job, error) {
	job, err := db.GetJob(id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", id, util.ErrNotFound)
	}
	return job, nil
}
