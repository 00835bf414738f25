package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franz/genre-tagger/internal/policy"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

// JobReport summarizes one batch job
type JobReport struct {
	GeneratedAt time.Time
	Job         *store.Job

	StatusCounts      map[policy.Status]int
	FilesUpdated      int
	AverageConfidence float64
	Elapsed           time.Duration
	Estimate          string

	TopGenres      []GenreCount
	Failures       []FailureInfo
	Reviews        []*store.ReviewItem
	PendingReviews int

	DatabasePath string
	EventLogPath string
}

// GenreCount is how many albums of a job received a genre
type GenreCount struct {
	Genre string
	Count int
}

// FailureInfo is one album that failed processing
type FailureInfo struct {
	AlbumKey string
	Error    string
}

const (
	topGenreLimit = 15
	failureLimit  = 25
	reviewLimit   = 25
)

// GenerateJobReport collects counters, genres, failures and the open
// review queue of a job from the database
func GenerateJobReport(db *store.Store, jobID string) (*JobReport, error) {
	job, err := db.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, util.ErrNotFound)
	}

	now := time.Now()
	report := &JobReport{
		GeneratedAt: now,
		Job:         job,
		Elapsed:     JobElapsed(job, now),
		Estimate:    EstimateCompletion(job, now),
	}

	if report.StatusCounts, err = db.StatusCounts(job.ID); err != nil {
		return nil, err
	}

	results, err := db.ListResults(job.ID, "")
	if err != nil {
		return nil, err
	}

	genreCounts := make(map[string]int)
	var confidenceSum float64
	var scored int
	for _, r := range results {
		report.FilesUpdated += r.FilesUpdated
		if r.Confidence > 0 {
			confidenceSum += r.Confidence
			scored++
		}
		for _, g := range r.FinalGenres {
			genreCounts[g]++
		}
		if r.Status == policy.StatusFailed && len(report.Failures) < failureLimit {
			report.Failures = append(report.Failures, FailureInfo{AlbumKey: r.AlbumKey, Error: r.ErrorMessage})
		}
	}
	if scored > 0 {
		report.AverageConfidence = confidenceSum / float64(scored)
	}
	report.TopGenres = topGenres(genreCounts, topGenreLimit)

	if report.Reviews, err = db.PendingReviews(job.ID, reviewLimit); err != nil {
		return nil, err
	}
	if report.PendingReviews, err = db.CountPendingReviews(job.ID); err != nil {
		return nil, err
	}

	return report, nil
}

func topGenres(counts map[string]int, limit int) []GenreCount {
	out := make([]GenreCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, GenreCount{Genre: g, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Genre < out[j].Genre
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// JobElapsed is the run time of a job so far (or in total once finished)
func JobElapsed(job *store.Job, now time.Time) time.Duration {
	if job.StartedAt == nil {
		return 0
	}
	end := now
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	return end.Sub(*job.StartedAt)
}

// EstimateCompletion extrapolates the remaining time of a running job from
// its average time per album
func EstimateCompletion(job *store.Job, now time.Time) string {
	switch {
	case job.Status == store.JobCompleted || job.Status == store.JobCancelled || job.Status == store.JobFailed:
		return "finished"
	case job.StartedAt == nil || job.Processed == 0:
		return "unknown"
	case job.Processed >= job.TotalAlbums:
		return "finishing"
	}

	perAlbum := JobElapsed(job, now) / time.Duration(job.Processed)
	remaining := perAlbum * time.Duration(job.TotalAlbums-job.Processed)
	return fmt.Sprintf("about %s remaining", util.FormatDuration(remaining))
}

// DefaultReportPath is <dir>/reports/job-<id prefix>-<timestamp>.md
func DefaultReportPath(dir string, report *JobReport) string {
	id := report.Job.ID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("job-%s-%s.md", id, report.GeneratedAt.Format("20060102-150405"))
	return filepath.Join(dir, "reports", name)
}

// WriteMarkdownReport writes the job report as Markdown
func WriteMarkdownReport(report *JobReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown renders the job report
func RenderMarkdown(report *JobReport) string {
	job := report.Job
	var md strings.Builder

	name := job.Name
	if name == "" {
		name = job.ID
	}
	md.WriteString(fmt.Sprintf("# Genre Tagging Report - %s\n\n", name))
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	md.WriteString(fmt.Sprintf("**Job:** `%s` (%s)\n\n", job.ID, job.Status))
	if job.DryRun {
		md.WriteString("**Mode:** dry run (no files were modified)\n\n")
	}
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Albums | %s / %s (%s) |\n",
		util.FormatCount(job.Processed), util.FormatCount(job.TotalAlbums), util.FormatPercent(job.ProgressPercent())))
	md.WriteString(fmt.Sprintf("| Successful | %d |\n", job.Successful))
	md.WriteString(fmt.Sprintf("| Needs Review | %d |\n", job.NeedsReview))
	md.WriteString(fmt.Sprintf("| Skipped | %d |\n", job.Skipped))
	if job.Failed > 0 {
		md.WriteString(fmt.Sprintf("| Failed | %d |\n", job.Failed))
	}
	md.WriteString(fmt.Sprintf("| Success Rate | %s |\n", util.FormatPercent(job.SuccessRate())))
	md.WriteString(fmt.Sprintf("| Files Updated | %s |\n", util.FormatCount(report.FilesUpdated)))
	if report.AverageConfidence > 0 {
		md.WriteString(fmt.Sprintf("| Average Confidence | %s |\n", util.FormatPercent(report.AverageConfidence)))
	}
	md.WriteString(fmt.Sprintf("| Auto-apply Threshold | %s |\n", util.FormatPercent(job.ConfidenceThreshold)))
	if report.Elapsed > 0 {
		md.WriteString(fmt.Sprintf("| Elapsed | %s |\n", util.FormatDuration(report.Elapsed)))
	}
	md.WriteString(fmt.Sprintf("| Completion | %s |\n", report.Estimate))
	md.WriteString("\n")

	if len(report.StatusCounts) > 0 {
		md.WriteString("## 🏷️ Results by Status\n\n")
		md.WriteString("| Status | Albums |\n")
		md.WriteString("|--------|--------|\n")
		statuses := make([]string, 0, len(report.StatusCounts))
		for s := range report.StatusCounts {
			statuses = append(statuses, string(s))
		}
		sort.Strings(statuses)
		for _, s := range statuses {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", s, report.StatusCounts[policy.Status(s)]))
		}
		md.WriteString("\n")
	}

	if len(report.TopGenres) > 0 {
		md.WriteString("## 🎵 Top Genres\n\n")
		md.WriteString("| Genre | Albums |\n")
		md.WriteString("|-------|--------|\n")
		for _, g := range report.TopGenres {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", g.Genre, g.Count))
		}
		md.WriteString("\n")
	}

	if report.PendingReviews > 0 {
		md.WriteString(fmt.Sprintf("## 🔍 Review Queue (%d pending)\n\n", report.PendingReviews))
		md.WriteString("| ID | Album | Confidence | Suggested Genres | Reason |\n")
		md.WriteString("|----|-------|------------|------------------|--------|\n")
		for _, item := range report.Reviews {
			md.WriteString(fmt.Sprintf("| %d | %s - %s | %s | %s | %s |\n",
				item.ID, item.Artist, item.Album, util.FormatPercent(item.Confidence),
				strings.Join(item.SuggestedGenres, "; "), item.Reason))
		}
		if report.PendingReviews > len(report.Reviews) {
			md.WriteString(fmt.Sprintf("\n*%d more not shown*\n", report.PendingReviews-len(report.Reviews)))
		}
		md.WriteString("\n")
	}

	if len(report.Failures) > 0 {
		md.WriteString("## ⚠️ Failed Albums\n\n")
		md.WriteString("| Album | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, f := range report.Failures {
			md.WriteString(fmt.Sprintf("| %s | %s |\n", f.AlbumKey, truncate(f.Error, 120)))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by mgt - Music Genre Tagger*\n")
	return md.String()
}

// truncate shortens s to maxLen, keeping the start
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
