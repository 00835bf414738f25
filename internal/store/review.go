package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/genre-tagger/internal/util"
)

// Decision is the operator's verdict on a review item
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionEdited   Decision = "edited"
)

// ReviewItem is an album whose genres need a human decision
type ReviewItem struct {
	ID              int64
	JobID           string
	AlbumKey        string
	Artist          string
	Album           string
	SuggestedGenres []string
	Confidence      float64
	Reason          string
	Priority        int
	CreatedAt       time.Time
	ReviewedAt      *time.Time
	Decision        Decision
	ReviewerGenres  []string
}

// EnqueueReview adds an item to the review queue. Re-enqueueing the same
// album for the same job refreshes the suggestion and reopens the item.
func (s *Store) EnqueueReview(item *ReviewItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO review_queue (job_id, album_key, artist, album, suggested_genres, confidence, reason, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, album_key) DO UPDATE SET
			suggested_genres = excluded.suggested_genres,
			confidence = excluded.confidence,
			reason = excluded.reason,
			priority = excluded.priority,
			reviewed_at = NULL,
			decision = NULL,
			reviewer_genres = NULL
	`, item.JobID, item.AlbumKey, item.Artist, item.Album, encodeList(item.SuggestedGenres),
		item.Confidence, item.Reason, item.Priority, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue review for %s: %w", item.AlbumKey, err)
	}

	return s.db.QueryRow(`SELECT id FROM review_queue WHERE job_id = ? AND album_key = ?`,
		item.JobID, item.AlbumKey).Scan(&item.ID)
}

// PendingReviews returns unreviewed items, highest priority first and
// oldest first within a priority. An empty jobID lists every job.
func (s *Store) PendingReviews(jobID string, limit int) ([]*ReviewItem, error) {
	query := reviewSelect + ` WHERE reviewed_at IS NULL`
	args := []any{}
	if jobID != "" {
		query += ` AND job_id = ?`
		args = append(args, jobID)
	}
	query += ` ORDER BY priority DESC, created_at ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var items []*ReviewItem
	for rows.Next() {
		item, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountPendingReviews returns the number of unreviewed items for jobID (or all jobs)
func (s *Store) CountPendingReviews(jobID string) (int, error) {
	var n int
	var err error
	if jobID == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM review_queue WHERE reviewed_at IS NULL`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM review_queue WHERE reviewed_at IS NULL AND job_id = ?`, jobID).Scan(&n)
	}
	return n, err
}

// GetReview returns a review item by ID
func (s *Store) GetReview(id int64) (*ReviewItem, error) {
	item, err := scanReview(s.db.QueryRow(reviewSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review item %d: %w", id, util.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return item, nil
}

// ResolveReview records the operator's decision. Resolving an item twice
// is rejected with util.ErrAlreadyReviewed.
func (s *Store) ResolveReview(id int64, decision Decision, genres []string) error {
	res, err := s.db.Exec(`
		UPDATE review_queue SET reviewed_at = ?, decision = ?, reviewer_genres = ?
		WHERE id = ? AND reviewed_at IS NULL
	`, time.Now().UTC(), string(decision), encodeList(genres), id)
	if err != nil {
		return fmt.Errorf("failed to resolve review: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetReview(id); err != nil {
			return err
		}
		return fmt.Errorf("review item %d: %w", id, util.ErrAlreadyReviewed)
	}
	return nil
}

const reviewSelect = `
	SELECT id, job_id, album_key, artist, album, COALESCE(suggested_genres, ''), confidence,
	       COALESCE(reason, ''), priority, created_at, reviewed_at, COALESCE(decision, ''),
	       COALESCE(reviewer_genres, '')
	FROM review_queue`

func scanReview(row rowScanner) (*ReviewItem, error) {
	item := &ReviewItem{}
	var suggested, decision, reviewer string
	var reviewedAt sql.NullTime
	err := row.Scan(
		&item.ID, &item.JobID, &item.AlbumKey, &item.Artist, &item.Album, &suggested, &item.Confidence,
		&item.Reason, &item.Priority, &item.CreatedAt, &reviewedAt, &decision, &reviewer,
	)
	if err != nil {
		return nil, err
	}
	item.SuggestedGenres = decodeList(suggested)
	item.ReviewerGenres = decodeList(reviewer)
	item.Decision = Decision(decision)
	if reviewedAt.Valid {
		item.ReviewedAt = &reviewedAt.Time
	}
	return item, nil
}
