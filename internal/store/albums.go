package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franz/genre-tagger/internal/util"
)

// Track is one audio file of an album
type Track struct {
	Path   string   `json:"path"`
	Title  string   `json:"title,omitempty"`
	Number int      `json:"number,omitempty"`
	Genres []string `json:"genres,omitempty"`
}

// Album is an entry of the album registry built by the scanner
type Album struct {
	Key       string
	Artist    string
	Album     string
	Genres    []string
	Tracks    []Track
	ScannedAt time.Time
}

// UpsertAlbum inserts or refreshes a registry entry
func (s *Store) UpsertAlbum(a *Album) error {
	if a.Key == "" {
		a.Key = util.AlbumKey(a.Artist, a.Album)
	}
	if a.ScannedAt.IsZero() {
		a.ScannedAt = time.Now().UTC()
	}
	tracks, err := json.Marshal(a.Tracks)
	if err != nil {
		return fmt.Errorf("failed to encode tracks: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO albums (album_key, artist, album, genres, tracks, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(album_key) DO UPDATE SET
			artist = excluded.artist,
			album = excluded.album,
			genres = excluded.genres,
			tracks = excluded.tracks,
			scanned_at = excluded.scanned_at
	`, a.Key, a.Artist, a.Album, encodeList(a.Genres), string(tracks), a.ScannedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert album %s: %w", a.Key, err)
	}
	return nil
}

// GetAlbum returns the registry entry for key, or nil
func (s *Store) GetAlbum(key string) (*Album, error) {
	a, err := scanAlbum(s.db.QueryRow(albumSelect+` WHERE album_key = ?`, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return a, nil
}

// ListAlbums returns every registered album ordered by key
func (s *Store) ListAlbums() ([]*Album, error) {
	rows, err := s.db.Query(albumSelect + ` ORDER BY album_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()

	var albums []*Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// CountAlbums returns the size of the registry
func (s *Store) CountAlbums() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM albums`).Scan(&n)
	return n, err
}

const albumSelect = `SELECT album_key, artist, album, COALESCE(genres, ''), COALESCE(tracks, ''), scanned_at FROM albums`

func scanAlbum(row rowScanner) (*Album, error) {
	a := &Album{}
	var genres, tracks string
	if err := row.Scan(&a.Key, &a.Artist, &a.Album, &genres, &tracks, &a.ScannedAt); err != nil {
		return nil, err
	}
	a.Genres = decodeList(genres)
	if tracks != "" {
		if err := json.Unmarshal([]byte(tracks), &a.Tracks); err != nil {
			return nil, fmt.Errorf("album %s: bad track list: %w", a.Key, err)
		}
	}
	return a, nil
}
