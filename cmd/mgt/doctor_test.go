package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/franz/genre-tagger/internal/config"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(dbPath)

	// Should not error - database will be created on first run
	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}

	if !strings.Contains(result.message, "will be created") {
		t.Errorf("expected message about database creation, got %q", result.message)
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	album := &store.Album{
		Key:    util.AlbumKey("Pink Floyd", "Animals"),
		Artist: "Pink Floyd",
		Album:  "Animals",
		Tracks: []store.Track{{Path: "/music/Pink Floyd/Animals/01 Pigs on the Wing.flac", Number: 1}},
	}
	if err := db.UpsertAlbum(album); err != nil {
		t.Fatalf("failed to insert test album: %v", err)
	}
	db.Close()

	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}

	if !strings.Contains(result.message, "1 albums") {
		t.Errorf("expected album count in message, got %q", result.message)
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	result := checkDatabase("")

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckDatabase_Directory(t *testing.T) {
	result := checkDatabase(t.TempDir())

	if !result.error {
		t.Error("expected error when database path is a directory")
	}
}

func TestCheckLibraryDirectory_Valid(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "Pink Floyd"), 0755); err != nil {
		t.Fatal(err)
	}

	result := checkLibraryDirectory(dir)

	if result.error {
		t.Errorf("library directory check failed: %s", result.message)
	}
	if !strings.Contains(result.message, "1 entries") {
		t.Errorf("expected entry count, got %q", result.message)
	}
}

func TestCheckLibraryDirectory_NonExistent(t *testing.T) {
	result := checkLibraryDirectory("/nonexistent/path/that/does/not/exist")

	if !result.error {
		t.Error("expected error for non-existent directory")
	}
}

func TestCheckLibraryDirectory_File(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkLibraryDirectory(filePath)

	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func loadTestConfig(t *testing.T, settings map[string]any) *config.Config {
	t.Helper()
	for _, env := range []string{"MGT_SPOTIFY_CLIENT_ID", "MGT_SPOTIFY_CLIENT_SECRET", "MGT_LASTFM_API_KEY", "MGT_DISCOGS_TOKEN"} {
		t.Setenv(env, "")
	}

	v := viper.New()
	for k, val := range settings {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestCheckSources_WithoutCredentials(t *testing.T) {
	cfg := loadTestConfig(t, nil)

	results := checkSources(cfg)

	got := make(map[string]checkResult)
	for _, r := range results {
		got[r.name] = r
	}

	for _, name := range []string{"Source MusicBrainz", "Source Deezer"} {
		r, ok := got[name]
		if !ok {
			t.Fatalf("missing result for %s", name)
		}
		if r.warning || r.error {
			t.Errorf("%s should be enabled, got %q", name, r.message)
		}
	}
	for _, name := range []string{"Source Spotify", "Source Last.fm", "Source Discogs"} {
		r, ok := got[name]
		if !ok {
			t.Fatalf("missing result for %s", name)
		}
		if !r.warning || !strings.HasPrefix(r.message, "disabled: set MGT_") {
			t.Errorf("%s should be disabled with a hint, got %+v", name, r)
		}
	}
	if r, ok := got["Sources"]; ok {
		t.Errorf("unexpected overall error: %s", r.message)
	}
}

func TestCheckSources_NoneEnabled(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{"source_order": []string{"spotify", "discogs"}})

	results := checkSources(cfg)

	last := results[len(results)-1]
	if last.name != "Sources" || !last.error {
		t.Errorf("expected a failing Sources result, got %+v", last)
	}

	var notOrdered int
	for _, r := range results {
		if r.message == "not in source_order" {
			notOrdered++
		}
	}
	if notOrdered != 3 {
		t.Errorf("expected 3 sources outside source_order, got %d", notOrdered)
	}
}
