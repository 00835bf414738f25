package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/genre-tagger/internal/report"
	"github.com/franz/genre-tagger/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report [job-id]",
	Short: "Write a markdown report for a job",
	Long: `Write a markdown summary of a job: counters, status breakdown, the most
assigned genres, failed albums with their errors and the open review queue.
Without a job ID the most recent job is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringP("out", "o", "", "output file (default: <events_dir>/reports/job-<id>-<time>.md)")
	reportCmd.Flags().Bool("stdout", false, "print the report instead of writing a file")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var jobID string
	if len(args) == 1 {
		job, err := findJob(db, args[0])
		if err != nil {
			return err
		}
		jobID = job.ID
	} else {
		jobs, err := db.ListJobs(1)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return fmt.Errorf("no jobs to report on: %w", util.ErrNotFound)
		}
		jobID = jobs[0].ID
	}

	rep, err := report.GenerateJobReport(db, jobID)
	if err != nil {
		return err
	}
	rep.DatabasePath = cfg.DB

	if toStdout, _ := cmd.Flags().GetBool("stdout"); toStdout {
		fmt.Print(report.RenderMarkdown(rep))
		return nil
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = report.DefaultReportPath(cfg.EventsDir, rep)
	}
	if err := report.WriteMarkdownReport(rep, out); err != nil {
		return err
	}
	util.SuccessLog("Report written: %s", out)
	return nil
}
