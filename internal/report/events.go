package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// EventType represents the type of event
type EventType string

const (
	EventScan      EventType = "scan"
	EventMatch     EventType = "match"
	EventGenres    EventType = "genres"
	EventClassify  EventType = "classify"
	EventWrite     EventType = "write"
	EventSkip      EventType = "skip"
	EventReview    EventType = "review"
	EventError     EventType = "error"
	EventRateLimit EventType = "ratelimit"
	EventCache     EventType = "cache"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel converts a config string into an EventLevel, defaulting to info
func ParseLevel(s string) EventLevel {
	l := EventLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelPriority[l]; ok {
		return l
	}
	return LevelInfo
}

// Event represents a single line of the event log
type Event struct {
	Timestamp  time.Time         `json:"ts"`
	Level      EventLevel        `json:"level"`
	Event      EventType         `json:"event"`
	JobID      string            `json:"job_id,omitempty"`
	AlbumKey   string            `json:"album_key,omitempty"`
	Path       string            `json:"path,omitempty"`
	Source     string            `json:"source,omitempty"`
	Status     string            `json:"status,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Score      float64           `json:"score,omitempty"`
	Genres     []string          `json:"genres,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	DryRun     bool              `json:"dry_run,omitempty"`
	Duration   int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// RotateOptions control event log rotation
type RotateOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultRotateOptions keeps five compressed 10 MB backups for 30 days
func DefaultRotateOptions() RotateOptions {
	return RotateOptions{MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 30}
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	out      io.WriteCloser
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger opens dir/events.jsonl for appending with the default
// rotation. minLevel determines which events are written.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	return NewRotatingEventLogger(outputDir, minLevel, DefaultRotateOptions())
}

// NewRotatingEventLogger is NewEventLogger with explicit rotation settings
func NewRotatingEventLogger(outputDir string, minLevel EventLevel, opts RotateOptions) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(outputDir, "events.jsonl")
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	return &EventLogger{
		out:      lj,
		encoder:  json.NewEncoder(lj),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.out == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

func errorLevel(err error, ok EventLevel) (EventLevel, string) {
	if err != nil {
		return LevelError, err.Error()
	}
	return ok, ""
}

// LogScan logs one audio file read by the scanner
func (l *EventLogger) LogScan(path, albumKey string, err error) error {
	level, errMsg := errorLevel(err, LevelDebug)
	return l.Log(&Event{
		Level:    level,
		Event:    EventScan,
		Path:     path,
		AlbumKey: albumKey,
		Error:    errMsg,
	})
}

// LogMatch logs the cross-source match for an album. An empty source
// means no source matched.
func (l *EventLogger) LogMatch(jobID, albumKey, src string, score float64, candidates int) error {
	level := LevelInfo
	if src == "" {
		level = LevelWarning
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventMatch,
		JobID:    jobID,
		AlbumKey: albumKey,
		Source:   src,
		Score:    score,
		Extra: map[string]string{
			"candidates": fmt.Sprintf("%d", candidates),
		},
	})
}

// LogGenres logs the aggregated genres of an album
func (l *EventLogger) LogGenres(jobID, albumKey string, genres, sources []string, confidence float64) error {
	return l.Log(&Event{
		Level:      LevelInfo,
		Event:      EventGenres,
		JobID:      jobID,
		AlbumKey:   albumKey,
		Genres:     genres,
		Confidence: confidence,
		Extra: map[string]string{
			"sources": strings.Join(sources, ","),
		},
	})
}

// LogClassify logs the confidence policy decision for an album
func (l *EventLogger) LogClassify(jobID, albumKey, status string, confidence float64, reason string) error {
	return l.Log(&Event{
		Level:      LevelInfo,
		Event:      EventClassify,
		JobID:      jobID,
		AlbumKey:   albumKey,
		Status:     status,
		Confidence: confidence,
		Reason:     reason,
	})
}

// LogWrite logs a genre tag write to one file
func (l *EventLogger) LogWrite(jobID, path string, genres []string, dryRun bool, duration time.Duration, err error) error {
	level, errMsg := errorLevel(err, LevelInfo)
	return l.Log(&Event{
		Level:    level,
		Event:    EventWrite,
		JobID:    jobID,
		Path:     path,
		Genres:   genres,
		DryRun:   dryRun,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogSkip logs an album that was not processed
func (l *EventLogger) LogSkip(jobID, albumKey, reason string) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventSkip,
		JobID:    jobID,
		AlbumKey: albumKey,
		Reason:   reason,
	})
}

// LogReview logs a review queue event (enqueue or decision)
func (l *EventLogger) LogReview(jobID, albumKey, action string, genres []string, reason string) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventReview,
		JobID:    jobID,
		AlbumKey: albumKey,
		Status:   action,
		Genres:   genres,
		Reason:   reason,
	})
}

// LogRateLimit logs a wait imposed by a source's request window
func (l *EventLogger) LogRateLimit(src string, wait time.Duration) error {
	return l.Log(&Event{
		Level:    LevelWarning,
		Event:    EventRateLimit,
		Source:   src,
		Duration: wait.Milliseconds(),
	})
}

// LogCache logs a source call answered by or stored into the response cache
func (l *EventLogger) LogCache(src, op string, hit bool, kind string, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelWarning
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:  level,
		Event:  EventCache,
		Source: src,
		Kind:   kind,
		Error:  errMsg,
		Extra: map[string]string{
			"op":  op,
			"hit": fmt.Sprintf("%t", hit),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, jobID, albumKey string, err error) error {
	return l.Log(&Event{
		Level:    LevelError,
		Event:    event,
		JobID:    jobID,
		AlbumKey: albumKey,
		Error:    err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.out.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
