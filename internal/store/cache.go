package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/genre-tagger/internal/source"
)

var (
	_ source.CacheBackend = (*Store)(nil)
	_ source.RequestLog   = (*Store)(nil)
)

// requestLogRetention bounds the request log; no rate window is longer
const requestLogRetention = 24 * time.Hour

// GetEntry implements source.CacheBackend
func (s *Store) GetEntry(ctx context.Context, key string, now time.Time) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM api_cache WHERE cache_key = ? AND expires_at > ?
	`, key, now.UnixNano()).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}
	return payload, true, nil
}

// PutEntry implements source.CacheBackend
func (s *Store) PutEntry(ctx context.Context, key, src string, value []byte, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO api_cache (cache_key, source, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, key, src, value, time.Now().UnixNano(), expiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// PurgeExpired implements source.CacheBackend
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_cache WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

// ClearCache removes every cache entry and the whole request log
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	var removed int64
	err := s.Transaction(func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM api_cache`)
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		_, err = tx.ExecContext(ctx, `DELETE FROM rate_limit_log`)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return removed, nil
}

// CacheSourceStats counts cache entries of one source
type CacheSourceStats struct {
	Source  string
	Entries int
	Expired int
	Bytes   int64
}

// CacheStats returns per-source cache counts as of now
func (s *Store) CacheStats(ctx context.Context, now time.Time) ([]CacheSourceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, COUNT(*), SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), COALESCE(SUM(LENGTH(payload)), 0)
		FROM api_cache GROUP BY source ORDER BY source
	`, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	defer rows.Close()

	var stats []CacheSourceStats
	for rows.Next() {
		var st CacheSourceStats
		if err := rows.Scan(&st.Source, &st.Entries, &st.Expired, &st.Bytes); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// LogRequest implements source.RequestLog
func (s *Store) LogRequest(ctx context.Context, src string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO rate_limit_log (source, at) VALUES (?, ?)`, src, at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to log request: %w", err)
	}
	return nil
}

// CountRequests implements source.RequestLog
func (s *Store) CountRequests(ctx context.Context, src string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rate_limit_log WHERE source = ? AND at > ?
	`, src, since.UnixNano()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return n, nil
}

// PurgeRequestLog drops request log rows older than a day
func (s *Store) PurgeRequestLog(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_log WHERE at < ?`, now.Add(-requestLogRetention).UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge request log: %w", err)
	}
	return res.RowsAffected()
}
