package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

// readEvents closes the logger and decodes every line of its file
func readEvents(t *testing.T, logger *EventLogger) []Event {
	t.Helper()
	logger.Close()

	file, err := os.Open(logger.Path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded Event
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("Failed to decode line %d: %v", len(events)+1, err)
		}
		events = append(events, decoded)
	}
	return events
}

func TestNewEventLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if logger.Path() == "" {
		t.Error("EventLogger path is empty")
	}

	// The rotating writer opens the file on first write
	if err := logger.LogSkip("job", "a|b", "already processed"); err != nil {
		t.Fatalf("LogSkip failed: %v", err)
	}
	if _, err := os.Stat(logger.Path()); err != nil {
		t.Errorf("Event log file was not created at %s: %v", logger.Path(), err)
	}
}

func TestEventLogger_MultipleEvents(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogScan("/music/a/01.mp3", "A|B", nil)
	logger.LogMatch("job-1", "A|B", "spotify", 0.95, 2)
	logger.LogGenres("job-1", "A|B", []string{"Rock", "Blues"}, []string{"spotify", "musicbrainz"}, 91.5)
	logger.LogClassify("job-1", "A|B", "NEEDS_REVIEW", 91.5, "medium confidence (91.5%) - requires manual review")
	logger.LogWrite("job-1", "/music/a/01.mp3", []string{"Rock"}, true, 20*time.Millisecond, nil)

	events := readEvents(t, logger)
	if len(events) != 5 {
		t.Fatalf("Expected 5 events, got %d", len(events))
	}

	wantTypes := []EventType{EventScan, EventMatch, EventGenres, EventClassify, EventWrite}
	for i, e := range events {
		if e.Event != wantTypes[i] {
			t.Errorf("event %d: type %s, want %s", i, e.Event, wantTypes[i])
		}
		if e.Timestamp.IsZero() {
			t.Errorf("event %d: timestamp not set", i)
		}
	}

	if events[1].Source != "spotify" || events[1].Score != 0.95 || events[1].Extra["candidates"] != "2" {
		t.Errorf("unexpected match event: %+v", events[1])
	}
	if events[2].Confidence != 91.5 || events[2].Extra["sources"] != "spotify,musicbrainz" {
		t.Errorf("unexpected genres event: %+v", events[2])
	}
	if !events[4].DryRun || events[4].Duration != 20 {
		t.Errorf("unexpected write event: %+v", events[4])
	}
}

func TestEventLogger_ErrorsRaiseLevel(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogWrite("job", "/x.flac", []string{"Jazz"}, false, 0, errors.New("ffmpeg failed"))
	logger.LogCache("lastfm", "search", false, "transient", errors.New("503"))
	logger.LogError(EventError, "job", "A|B", errors.New("boom"))

	events := readEvents(t, logger)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].Level != LevelError || events[0].Error != "ffmpeg failed" {
		t.Errorf("write failure: %+v", events[0])
	}
	if events[1].Level != LevelWarning || events[1].Kind != "transient" || events[1].Extra["op"] != "search" {
		t.Errorf("cache failure: %+v", events[1])
	}
	if events[2].Level != LevelError || events[2].AlbumKey != "A|B" {
		t.Errorf("error event: %+v", events[2])
	}
}

func TestEventLogger_ConcurrentWrites(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	const workers = 10
	const perWorker = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				logger.LogRateLimit("musicbrainz", time.Second)
			}
		}()
	}
	wg.Wait()

	if got := len(readEvents(t, logger)); got != workers*perWorker {
		t.Errorf("Expected %d events, got %d", workers*perWorker, got)
	}
}

func TestEventLogger_LogLevelFiltering(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelWarning)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogScan("/a.mp3", "A|B", nil)                   // debug
	logger.LogSkip("job", "A|B", "already processed")      // info
	logger.LogMatch("job", "A|B", "", 0, 0)                // warning
	logger.LogScan("/b.mp3", "", errors.New("unreadable")) // error

	events := readEvents(t, logger)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events at warning and above, got %d", len(events))
	}
	if events[0].Event != EventMatch || events[1].Event != EventScan {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestEventLogger_NullLogger(t *testing.T) {
	logger := NullLogger()

	if err := logger.LogSkip("job", "A|B", "reason"); err != nil {
		t.Errorf("null logger returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("null logger close returned error: %v", err)
	}
	if logger.Path() != "" {
		t.Error("null logger should have an empty path")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]EventLevel{
		"debug":   LevelDebug,
		"WARNING": LevelWarning,
		" error ": LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
