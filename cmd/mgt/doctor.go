package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/genre-tagger/internal/config"
	"github.com/franz/genre-tagger/internal/redisstore"
	"github.com/franz/genre-tagger/internal/source"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure mgt can operate correctly.

This command checks:
- Configuration validity
- Required tools (ffmpeg for writing tags, ffprobe optional)
- Database accessibility and integrity
- SQLite version
- Which metadata sources are enabled, and why others are not
- Redis connectivity when the Redis cache backend is configured
- The library directory (optional)

Use this command to troubleshoot issues before running mgt tag.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().String("library", "", "library directory to check (optional)")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== MGT Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	cfg, err := loadConfig()
	if err != nil {
		results = append(results, checkResult{name: "Configuration", error: true, message: err.Error()})
	} else {
		results = append(results, checkResult{name: "Configuration", message: "valid"})
	}

	results = append(results, checkFFmpeg())
	results = append(results, checkFFprobe())
	results = append(results, checkSQLite())

	if cfg != nil {
		results = append(results, checkDatabase(cfg.DB))
		results = append(results, checkSources(cfg)...)
		if cfg.CacheBackend == "redis" {
			results = append(results, checkRedis(cmd.Context(), cfg))
		}
	}

	if library, _ := cmd.Flags().GetString("library"); library != "" {
		results = append(results, checkLibraryDirectory(library))
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	// Summary
	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before running mgt.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed! System is ready for mgt operations.")
	}

	return nil
}

// toolVersion runs "<tool> -version" and returns the third word of the first line
func toolVersion(tool string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, tool, "-version").CombinedOutput()
	if err != nil {
		return "", err
	}

	version := "unknown"
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		parts := strings.Fields(lines[0])
		if len(parts) >= 3 {
			version = parts[2]
		}
	}
	return version, nil
}

// checkFFmpeg verifies ffmpeg is available; it writes the genre tags
func checkFFmpeg() checkResult {
	version, err := toolVersion("ffmpeg")
	if err != nil {
		return checkResult{
			name:    "ffmpeg",
			error:   true,
			message: "not found or not executable (required for writing tags)",
		}
	}
	return checkResult{
		name:    "ffmpeg",
		message: fmt.Sprintf("version %s", version),
	}
}

// checkFFprobe verifies ffprobe is available (optional)
func checkFFprobe() checkResult {
	version, err := toolVersion("ffprobe")
	if err != nil {
		return checkResult{
			name:    "ffprobe (optional)",
			warning: true,
			message: "not found (used to read tags the tag library cannot parse)",
		}
	}
	return checkResult{
		name:    "ffprobe (optional)",
		message: fmt.Sprintf("version %s", version),
	}
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is built in; just verify we can get the version
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	albums, _ := db.CountAlbums()
	pending, _ := db.CountPendingReviews("")
	return checkResult{
		name: "Database",
		message: fmt.Sprintf("%s (%s, %s albums, %s pending reviews)",
			dbPath, humanize.Bytes(uint64(info.Size())), util.FormatCount(albums), util.FormatCount(pending)),
	}
}

// checkSources reports every source as enabled or disabled
func checkSources(cfg *config.Config) []checkResult {
	_, disabled := buildAdapters(cfg, nil)
	enabled := 0

	var results []checkResult
	for _, name := range cfg.Order() {
		r := checkResult{name: "Source " + name.DisplayName()}
		if reason, off := disabled[name]; off {
			r.warning = true
			r.message = "disabled: " + reason
		} else {
			enabled++
			limit := cfg.Limits()[name]
			r.message = fmt.Sprintf("enabled (weight %.2f, %d requests per %s)",
				cfg.Weights()[name], limit.MaxRequests, limit.Window)
		}
		results = append(results, r)
	}

	for _, name := range source.AllNames {
		if !slices.Contains(cfg.Order(), name) {
			results = append(results, checkResult{
				name:    "Source " + name.DisplayName(),
				message: "not in source_order",
			})
		}
	}

	if enabled == 0 {
		results = append(results, checkResult{
			name:    "Sources",
			error:   true,
			message: "no metadata source is enabled",
		})
	}
	return results
}

// checkRedis verifies the Redis cache backend answers
func checkRedis(ctx context.Context, cfg *config.Config) checkResult {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rs, err := redisstore.Open(ctx, redisstore.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return checkResult{
			name:    "Redis",
			error:   true,
			message: err.Error(),
		}
	}
	defer rs.Close()

	return checkResult{
		name:    "Redis",
		message: fmt.Sprintf("%s (db %d)", cfg.Redis.Addr, cfg.Redis.DB),
	}
}

// checkLibraryDirectory verifies the library directory is readable
func checkLibraryDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			name:    "Library directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Library directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{
			name:    "Library directory",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	return checkResult{
		name:    "Library directory",
		message: fmt.Sprintf("%s (%d entries)", path, len(entries)),
	}
}
