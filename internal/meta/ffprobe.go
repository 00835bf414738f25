package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/franz/genre-tagger/internal/util"
)

// probeOutput is the subset of `ffprobe -print_format json` we read.
// Containers disagree on where tags live: MP3/MP4 use the format, Ogg
// and Opus use the audio stream.
type probeOutput struct {
	Streams []struct {
		CodecType string            `json:"codec_type"`
		Tags      map[string]string `json:"tags"`
	} `json:"streams"`
	Format *struct {
		FormatName string            `json:"format_name"`
		Tags       map[string]string `json:"tags"`
	} `json:"format"`
}

// ProbeTags reads tags through ffprobe
func ProbeTags(ctx context.Context, path string) (*TrackTags, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, util.ErrNotFound
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}
	return parseProbeOutput(output, path)
}

func parseProbeOutput(data []byte, path string) (*TrackTags, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	// Keys are case-insensitive across containers; format tags win
	tags := make(map[string]string)
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		for k, v := range s.Tags {
			tags[strings.ToLower(k)] = v
		}
	}
	result := &TrackTags{Path: path}
	if out.Format != nil {
		result.Format = out.Format.FormatName
		for k, v := range out.Format.Tags {
			tags[strings.ToLower(k)] = v
		}
	}

	result.Artist = strings.TrimSpace(tags["artist"])
	result.AlbumArtist = strings.TrimSpace(firstNonEmpty(tags["album_artist"], tags["albumartist"], tags["album artist"]))
	result.Album = strings.TrimSpace(tags["album"])
	result.Title = strings.TrimSpace(tags["title"])
	result.Track = parseTrackNumber(firstNonEmpty(tags["track"], tags["tracknumber"]))
	result.Genres = SplitGenres(tags["genre"])
	return result, nil
}

// parseTrackNumber accepts "3" and "3/12"
func parseTrackNumber(s string) int {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// CheckFFprobeAvailable checks if ffprobe is available in PATH
func CheckFFprobeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}
