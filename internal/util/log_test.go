package util

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

func captureLog(t *testing.T, level LogLevel) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLogLevel(level)
	now = func() time.Time { return time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC) }
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLogLevel(LevelInfo)
		now = time.Now
	})
	return &buf
}

func TestLogLevels(t *testing.T) {
	buf := captureLog(t, LevelWarn)

	DebugLog("debug %d", 1)
	InfoLog("info %d", 2)
	SuccessLog("ok %d", 3)
	WarnLog("warn %d", 4)
	ErrorLog("error %d", 5)

	want := "13:04:05 [WARN]  warn 4\n13:04:05 [ERROR] error 5\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%q\nwant\n%q", got, want)
	}
}

func TestLogNoColorsForBuffers(t *testing.T) {
	buf := captureLog(t, LevelDebug)

	DebugLog("probe")
	SuccessLog("done")

	if strings.Contains(buf.String(), "\033[") {
		t.Errorf("unexpected escape codes in %q", buf.String())
	}
	if !strings.Contains(buf.String(), "[OK]    done") {
		t.Errorf("missing success line in %q", buf.String())
	}
}

func TestQuietWinsOverVerbose(t *testing.T) {
	captureLog(t, LevelInfo)

	SetVerbose(true)
	if !IsVerbose() {
		t.Fatal("expected verbose after SetVerbose(true)")
	}
	SetQuiet(true)
	if !IsQuiet() || IsVerbose() {
		t.Error("expected quiet mode to override verbose")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{" warning ", LevelWarn},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"loud", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
