package meta

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/franz/genre-tagger/internal/util"
)

// WriteOptions control a genre write
type WriteOptions struct {
	// PreserveExisting merges the file's current genres in front of the new ones
	PreserveExisting bool
	// DryRun computes the final value but leaves the file untouched
	DryRun bool
}

// WriteResult describes one genre write
type WriteResult struct {
	Path     string
	Previous []string
	Genres   []string // the genres written (or that would be written)
	Written  bool
}

// TagWriter rewrites the genre tag of audio files with ffmpeg. Streams are
// copied, not re-encoded; the new file replaces the original by rename.
type TagWriter struct {
	FFmpegPath string

	run        func(ctx context.Context, name string, args ...string) ([]byte, error)
	readGenres func(ctx context.Context, path string) ([]string, error)
}

// NewTagWriter creates a TagWriter using ffmpeg from PATH
func NewTagWriter() *TagWriter {
	return &TagWriter{
		FFmpegPath: "ffmpeg",
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		readGenres: ReadGenres,
	}
}

// WriteGenres sets the genre tag of path. With PreserveExisting the
// file's current genres are kept first; duplicates are dropped
// case-insensitively. Genres are stored "; "-joined.
func (w *TagWriter) WriteGenres(ctx context.Context, path string, genres []string, opts WriteOptions) (*WriteResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file does not exist: %w", err)
	}
	if !CanWriteTags(path) {
		return nil, fmt.Errorf("%w: cannot write tags to %s", util.ErrUnsupported, filepath.Ext(path))
	}

	result := &WriteResult{Path: path, Genres: MergeGenres(nil, genres)}
	if opts.PreserveExisting {
		existing, err := w.readGenres(ctx, path)
		if err != nil {
			// An unreadable tag is treated as empty, the write replaces it
			util.WarnLog("Could not read existing genre of %s: %v", path, err)
		}
		result.Previous = existing
		result.Genres = MergeGenres(existing, genres)
	}
	if len(result.Genres) == 0 {
		return nil, errors.New("no genres to write")
	}

	if opts.DryRun {
		util.DebugLog("[dry-run] would set genre of %s to %q", path, FormatGenres(result.Genres))
		return result, nil
	}

	tmp := tempPath(path)
	args := buildGenreArgs(path, tmp, FormatGenres(result.Genres))
	if output, err := w.run(ctx, w.FFmpegPath, args...); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("ffmpeg failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to replace %s: %w", path, err)
	}

	result.Written = true
	util.DebugLog("Wrote genre %q to: %s", FormatGenres(result.Genres), path)
	return result, nil
}

// MergeGenres appends genres to existing, keeping order and dropping
// empty and case-insensitive duplicate entries
func MergeGenres(existing, genres []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range [][]string{existing, genres} {
		for _, g := range list {
			g = strings.TrimSpace(g)
			k := strings.ToLower(g)
			if g == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, g)
		}
	}
	return out
}

// buildGenreArgs copies every stream and all metadata, overriding genre
func buildGenreArgs(src, dst, genre string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", src,
		"-map", "0",
		"-map_metadata", "0",
		"-metadata", "genre=" + genre,
		"-codec", "copy",
	}
	if strings.EqualFold(filepath.Ext(src), ".mp3") {
		args = append(args, "-id3v2_version", "3")
	}
	return append(args, "-y", dst)
}

// tempPath keeps the extension so ffmpeg picks the same muxer
func tempPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".mgt-tmp"+ext)
}

// CanWriteTags checks if we can write tags for this file format
func CanWriteTags(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))

	supportedFormats := map[string]bool{
		".mp3":  true,
		".m4a":  true,
		".flac": true,
		".ogg":  true,
		".opus": true,
		".wma":  true,
		".wav":  true, // WAV supports ID3v2 tags
		".aiff": true,
		".ape":  true,
		".wv":   true, // WavPack
		".mpc":  true,
	}

	return supportedFormats[ext]
}

// ValidateFFmpeg checks if ffmpeg is available
func ValidateFFmpeg() error {
	cmd := exec.Command("ffmpeg", "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}
