package scan

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/franz/genre-tagger/internal/meta"
	"github.com/franz/genre-tagger/internal/report"
	"github.com/franz/genre-tagger/internal/store"
	"github.com/franz/genre-tagger/internal/util"
)

// AudioExtensions are the default supported audio file extensions
var AudioExtensions = []string{
	".mp3",
	".flac",
	".m4a",
	".aac",
	".ogg",
	".opus",
	".wav",
	".aiff",
	".aif",
	".wma",
	".ape",
	".wv",  // WavPack
	".mpc", // Musepack
}

// Scanner discovers audio files, reads their tags and groups them into albums
type Scanner struct {
	store       *store.Store
	extensions  map[string]bool
	concurrency int
	logger      *report.EventLogger

	readTags func(ctx context.Context, path string) (*meta.TrackTags, error)
}

// Config holds scanner configuration
type Config struct {
	Store          *store.Store // optional; albums are registered when set
	AdditionalExts []string
	Concurrency    int
	Logger         *report.EventLogger
}

// New creates a new Scanner
func New(cfg *Config) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	// Build extension map (case-insensitive)
	extMap := make(map[string]bool)
	for _, ext := range AudioExtensions {
		extMap[strings.ToLower(ext)] = true
	}
	for _, ext := range cfg.AdditionalExts {
		extMap[strings.ToLower(ext)] = true
	}

	return &Scanner{
		store:       cfg.Store,
		extensions:  extMap,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		readTags:    meta.ReadTags,
	}
}

// Result represents a scan result
type Result struct {
	FilesFound   int
	FilesRead    int
	FilesSkipped int // readable but missing artist or album
	Albums       []*store.Album
	Errors       []error
}

type trackResult struct {
	path string
	tags *meta.TrackTags
	err  error
}

// Scan walks root, reads every audio file's tags and returns one album per
// (artist, album) pair, ordered by album key
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	util.InfoLog("Starting scan of: %s", root)
	result := &Result{}

	paths, err := s.walk(ctx, root, result)
	if err != nil {
		return result, err
	}
	result.FilesFound = len(paths)
	util.InfoLog("Found %s audio files", util.FormatCount(len(paths)))

	tracks, err := s.readAll(ctx, paths)
	if err != nil {
		return result, err
	}

	albums := make(map[string]*store.Album)
	for _, tr := range tracks {
		if tr.err != nil {
			util.WarnLog("Failed to read tags of %s: %v", tr.path, tr.err)
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", tr.path, tr.err))
			s.logger.LogScan(tr.path, "", tr.err)
			continue
		}
		result.FilesRead++

		artist := tr.tags.AlbumArtistOrArtist()
		album := strings.TrimSpace(tr.tags.Album)
		if artist == "" || album == "" {
			util.DebugLog("Skipping %s: missing artist or album tag", tr.path)
			result.FilesSkipped++
			continue
		}

		key := util.AlbumKey(artist, album)
		a, ok := albums[key]
		if !ok {
			a = &store.Album{Key: key, Artist: artist, Album: album}
			albums[key] = a
		}
		a.Tracks = append(a.Tracks, store.Track{
			Path:   tr.path,
			Title:  tr.tags.Title,
			Number: tr.tags.Track,
			Genres: tr.tags.Genres,
		})
		s.logger.LogScan(tr.path, key, nil)
	}

	now := time.Now().UTC()
	for _, a := range albums {
		sort.Slice(a.Tracks, func(i, j int) bool {
			if a.Tracks[i].Number != a.Tracks[j].Number {
				return a.Tracks[i].Number < a.Tracks[j].Number
			}
			return a.Tracks[i].Path < a.Tracks[j].Path
		})
		for _, t := range a.Tracks {
			a.Genres = meta.MergeGenres(a.Genres, t.Genres)
		}
		a.ScannedAt = now
		result.Albums = append(result.Albums, a)
	}
	sort.Slice(result.Albums, func(i, j int) bool {
		return result.Albums[i].Key < result.Albums[j].Key
	})

	if s.store != nil {
		for _, a := range result.Albums {
			if err := s.store.UpsertAlbum(a); err != nil {
				return result, err
			}
		}
	}

	util.SuccessLog("Scan complete: %d albums from %d files (%d skipped, %d errors)",
		len(result.Albums), result.FilesRead, result.FilesSkipped, len(result.Errors))
	return result, nil
}

// walk collects audio file paths below root in lexical order
func (s *Scanner) walk(ctx context.Context, root string, result *Result) ([]string, error) {
	var paths []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == root {
				return err
			}
			util.WarnLog("Error accessing path %s: %v", path, err)
			result.Errors = append(result.Errors, fmt.Errorf("access error: %s: %w", path, err))
			return nil // Continue walking
		}

		if d.IsDir() {
			return nil
		}
		// Hidden files include interrupted tag writes
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if s.isAudioFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk error: %w", walkErr)
	}
	return paths, nil
}

// readAll reads tags on a bounded pool of goroutines
func (s *Scanner) readAll(ctx context.Context, paths []string) ([]trackResult, error) {
	var bar *progressbar.ProgressBar
	if util.ShowProgress() && len(paths) > 0 {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Reading tags"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	p := pool.NewWithResults[trackResult]().
		WithContext(ctx).
		WithMaxGoroutines(s.concurrency)
	for _, path := range paths {
		p.Go(func(ctx context.Context) (trackResult, error) {
			if err := ctx.Err(); err != nil {
				return trackResult{}, err
			}
			tags, err := s.readTags(ctx, path)
			if bar != nil {
				bar.Add(1)
			}
			return trackResult{path: path, tags: tags, err: err}, nil
		})
	}

	tracks, err := p.Wait()
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].path < tracks[j].path })
	return tracks, nil
}

// isAudioFile checks if a file has a supported audio extension
func (s *Scanner) isAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return s.extensions[ext]
}

// GetSupportedExtensions returns the list of supported extensions
func (s *Scanner) GetSupportedExtensions() []string {
	exts := make([]string, 0, len(s.extensions))
	for ext := range s.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
