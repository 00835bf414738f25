package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/franz/genre-tagger/internal/util"
)

// JobStatus is the lifecycle state of a batch job
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
	JobFailed     JobStatus = "failed"
)

// Job is one batch run over a list of albums
type Job struct {
	ID                  string
	Name                string
	Status              JobStatus
	TotalAlbums         int
	Processed           int
	Successful          int
	Failed              int
	NeedsReview         int
	Skipped             int
	ConfidenceThreshold float64
	DryRun              bool
	ConfigJSON          string
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
}

// Counters returns the job's tallies
func (j *Job) Counters() Counters {
	return Counters{
		Processed:   j.Processed,
		Successful:  j.Successful,
		Failed:      j.Failed,
		NeedsReview: j.NeedsReview,
		Skipped:     j.Skipped,
	}
}

// ProgressPercent is processed/total in percent
func (j *Job) ProgressPercent() float64 {
	if j.TotalAlbums == 0 {
		return 0
	}
	return float64(j.Processed) / float64(j.TotalAlbums) * 100
}

// SuccessRate is successful/processed in percent
func (j *Job) SuccessRate() float64 {
	if j.Processed == 0 {
		return 0
	}
	return float64(j.Successful) / float64(j.Processed) * 100
}

// Counters are the per-status album tallies of a job
type Counters struct {
	Processed   int
	Successful  int
	Failed      int
	NeedsReview int
	Skipped     int
}

// CreateJob inserts a new pending job and fills in its ID and CreatedAt
func (s *Store) CreateJob(j *Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = JobPending
	}
	j.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO jobs (id, name, status, total_albums, confidence_threshold, dry_run, config_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Name, j.Status, j.TotalAlbums, j.ConfidenceThreshold, boolInt(j.DryRun), j.ConfigJSON, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// StartJob marks a job in progress
func (s *Store) StartJob(id string) error {
	res, err := s.db.Exec(`
		UPDATE jobs SET status = ?, started_at = COALESCE(started_at, ?)
		WHERE id = ?
	`, JobInProgress, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	return expectRow(res, "job", id)
}

// UpdateJobProgress stores the running counters of a job
func (s *Store) UpdateJobProgress(id string, c Counters) error {
	_, err := s.db.Exec(`
		UPDATE jobs SET processed = ?, successful = ?, failed = ?, needs_review = ?, skipped = ?
		WHERE id = ?
	`, c.Processed, c.Successful, c.Failed, c.NeedsReview, c.Skipped, id)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// FinishJob records the final status of a job
func (s *Store) FinishJob(id string, status JobStatus) error {
	res, err := s.db.Exec(`
		UPDATE jobs SET status = ?, completed_at = ?
		WHERE id = ?
	`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	return expectRow(res, "job", id)
}

// GetJob retrieves a job by ID, or nil if it does not exist.
// A unique ID prefix is accepted as well.
func (s *Store) GetJob(id string) (*Job, error) {
	rows, err := s.db.Query(jobSelect+` WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`, id, id+"%", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	switch {
	case len(jobs) == 0:
		return nil, nil
	case jobs[0].ID == id || len(jobs) == 1:
		return jobs[0], nil
	default:
		return nil, fmt.Errorf("job id prefix %q is ambiguous", id)
	}
}

// ListJobs returns the most recent jobs first
func (s *Store) ListJobs(limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(jobSelect+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

const jobSelect = `
	SELECT id, name, status, total_albums, processed, successful, failed, needs_review, skipped,
	       confidence_threshold, dry_run, COALESCE(config_json, ''), created_at, started_at, completed_at
	FROM jobs`

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j := &Job{}
		var dryRun int
		var started, completed sql.NullTime
		err := rows.Scan(
			&j.ID, &j.Name, &j.Status, &j.TotalAlbums, &j.Processed, &j.Successful, &j.Failed,
			&j.NeedsReview, &j.Skipped, &j.ConfidenceThreshold, &dryRun, &j.ConfigJSON,
			&j.CreatedAt, &started, &completed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		j.DryRun = dryRun == 1
		if started.Valid {
			j.StartedAt = &started.Time
		}
		if completed.Valid {
			j.CompletedAt = &completed.Time
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func expectRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, util.ErrNotFound)
	}
	return nil
}
