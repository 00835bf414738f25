package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/genre-tagger/internal/policy"
)

// AlbumResult is the persisted outcome of processing one album in one job
type AlbumResult struct {
	ID              int64
	JobID           string
	AlbumKey        string
	Artist          string
	Album           string
	OriginalGenres  []string
	SuggestedGenres []string
	FinalGenres     []string
	Confidence      float64
	SourcesUsed     []string
	MatchedSource   string
	Reasoning       string
	FilesUpdated    int
	Status          policy.Status
	ErrorMessage    string
	ProcessingTime  time.Duration
	CreatedAt       time.Time
}

// SaveResult inserts or replaces the result for (JobID, AlbumKey)
func (s *Store) SaveResult(r *AlbumResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.Exec(`
		INSERT INTO album_results (
			job_id, album_key, artist, album, original_genres, suggested_genres, final_genres,
			confidence, sources_used, matched_source, reasoning, files_updated, status,
			error_message, processing_seconds, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, album_key) DO UPDATE SET
			original_genres = excluded.original_genres,
			suggested_genres = excluded.suggested_genres,
			final_genres = excluded.final_genres,
			confidence = excluded.confidence,
			sources_used = excluded.sources_used,
			matched_source = excluded.matched_source,
			reasoning = excluded.reasoning,
			files_updated = excluded.files_updated,
			status = excluded.status,
			error_message = excluded.error_message,
			processing_seconds = excluded.processing_seconds,
			created_at = excluded.created_at
	`, r.JobID, r.AlbumKey, r.Artist, r.Album,
		encodeList(r.OriginalGenres), encodeList(r.SuggestedGenres), encodeList(r.FinalGenres),
		r.Confidence, encodeList(r.SourcesUsed), r.MatchedSource, r.Reasoning, r.FilesUpdated,
		string(r.Status), r.ErrorMessage, r.ProcessingTime.Seconds(), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save result for %s: %w", r.AlbumKey, err)
	}

	if r.ID == 0 {
		if id, err := res.LastInsertId(); err == nil {
			r.ID = id
		}
	}
	return nil
}

// LastCompleted returns the most recent COMPLETED result with at least one
// updated file for albumKey across all jobs, or nil. This is the
// "already processed" guard that keeps reruns from re-querying the APIs.
func (s *Store) LastCompleted(albumKey string) (*AlbumResult, error) {
	row := s.db.QueryRow(resultSelect+`
		WHERE album_key = ? AND status = ? AND files_updated > 0
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, albumKey, string(policy.StatusCompleted))

	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query completed result: %w", err)
	}
	return r, nil
}

// GetResult returns the result of albumKey in jobID, or nil
func (s *Store) GetResult(jobID, albumKey string) (*AlbumResult, error) {
	row := s.db.QueryRow(resultSelect+` WHERE job_id = ? AND album_key = ?`, jobID, albumKey)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return r, nil
}

// ListResults returns the results of a job in processing order. An empty
// status returns every result.
func (s *Store) ListResults(jobID string, status policy.Status) ([]*AlbumResult, error) {
	query := resultSelect + ` WHERE job_id = ?`
	args := []any{jobID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*AlbumResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// StatusCounts tallies the results of a job by status
func (s *Store) StatusCounts(jobID string) (map[policy.Status]int, error) {
	rows, err := s.db.Query(`
		SELECT status, COUNT(*) FROM album_results WHERE job_id = ? GROUP BY status
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}
	defer rows.Close()

	counts := make(map[policy.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[policy.Status(status)] = n
	}
	return counts, rows.Err()
}

const resultSelect = `
	SELECT id, job_id, album_key, artist, album,
	       COALESCE(original_genres, ''), COALESCE(suggested_genres, ''), COALESCE(final_genres, ''),
	       confidence, COALESCE(sources_used, ''), COALESCE(matched_source, ''), COALESCE(reasoning, ''),
	       files_updated, status, COALESCE(error_message, ''), processing_seconds, created_at
	FROM album_results`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*AlbumResult, error) {
	r := &AlbumResult{}
	var original, suggested, final, sources, status string
	var seconds float64
	err := row.Scan(
		&r.ID, &r.JobID, &r.AlbumKey, &r.Artist, &r.Album,
		&original, &suggested, &final,
		&r.Confidence, &sources, &r.MatchedSource, &r.Reasoning,
		&r.FilesUpdated, &status, &r.ErrorMessage, &seconds, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.OriginalGenres = decodeList(original)
	r.SuggestedGenres = decodeList(suggested)
	r.FinalGenres = decodeList(final)
	r.SourcesUsed = decodeList(sources)
	r.Status = policy.Status(status)
	r.ProcessingTime = time.Duration(seconds * float64(time.Second))
	return r, nil
}
