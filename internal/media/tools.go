// Package media wraps the external binaries hark depends on: yt-dlp for
// audio download and ffmpeg/ffprobe for transcoding, splitting and probing.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"hark/internal/model"
)

// Segment is one slice of a split audio file together with its offset into
// the source. Lifetime is bounded by the directory it was written to.
type Segment struct {
	Path          string
	OffsetSeconds float64
}

// runFunc executes a command and returns its stdout. Injectable so tests can
// stub the binaries.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Tools invokes the external media binaries. The zero value is not usable;
// construct with NewTools.
type Tools struct {
	run runFunc
}

// Option configures Tools.
type Option func(*Tools)

// WithRunner replaces command execution (for testing).
func WithRunner(fn runFunc) Option {
	return func(t *Tools) { t.run = fn }
}

// NewTools returns a Tools backed by os/exec.
func NewTools(opts ...Option) *Tools {
	t := &Tools{run: defaultRun}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func defaultRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, model.ToolNotFound(name)
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return nil, model.ToolNotFound(name)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, model.ToolFailure(name, detail)
	}
	return stdout.Bytes(), nil
}

// ExtractAudio downloads the media at url and returns the path of an mp3
// named after id inside outDir. Existing files are reused; the cache dir is
// append-only and never garbage-collected here.
func (t *Tools) ExtractAudio(ctx context.Context, url, id, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", model.Wrap(model.KindExternalToolFailure, err, "create output directory")
	}

	target := filepath.Join(outDir, id+".mp3")
	if _, err := os.Stat(target); err == nil {
		slog.Debug("using cached audio", "path", target)
		return target, nil
	}

	template := filepath.Join(outDir, id+".%(ext)s")
	_, err := t.run(ctx, "yt-dlp",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--output", template,
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		url,
	)
	if err != nil {
		return "", err
	}

	downloaded, err := findAudioFile(outDir, id)
	if err != nil {
		return "", err
	}
	if downloaded == target {
		return target, nil
	}

	// yt-dlp occasionally leaves opus/m4a/webm behind despite --audio-format.
	if err := t.transcodeToMP3(ctx, downloaded, target); err != nil {
		return "", err
	}
	_ = os.Remove(downloaded)
	return target, nil
}

func findAudioFile(dir, id string) (string, error) {
	for _, ext := range []string{"mp3", "opus", "m4a", "webm", "ogg"} {
		candidate := filepath.Join(dir, id+"."+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", model.ToolFailure("yt-dlp", fmt.Sprintf("cannot read output directory: %v", err))
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), id+".") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", model.ToolFailure("yt-dlp", "audio file not found after download")
}

func (t *Tools) transcodeToMP3(ctx context.Context, source, dest string) error {
	_, err := t.run(ctx, "ffmpeg",
		"-i", source,
		"-vn",
		"-codec:a", "libmp3lame",
		"-qscale:a", "2",
		"-y",
		"-loglevel", "error",
		dest,
	)
	return err
}

// SplitAudio cuts path into sequential mp3 segments of at most chunkSeconds
// inside outDir. Short inputs are returned unchanged as a single segment at
// offset zero. Stream copy is attempted first; failures fall back to a
// re-encode.
func (t *Tools) SplitAudio(ctx context.Context, path, outDir string, chunkSeconds int) ([]Segment, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, model.Wrap(model.KindExternalToolFailure, err, "create segment directory")
	}

	total, err := t.ProbeDuration(ctx, path)
	if err != nil {
		return nil, err
	}

	chunkLen := float64(chunkSeconds)
	if total <= chunkLen {
		return []Segment{{Path: path, OffsetSeconds: 0}}, nil
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var segments []Segment
	offset := 0.0
	idx := 0
	for offset < total {
		segPath := filepath.Join(outDir, fmt.Sprintf("%s_%04d.mp3", stem, idx))
		length := chunkLen
		if remaining := total - offset; remaining < length {
			length = remaining
		}
		if err := t.extractSegment(ctx, path, segPath, offset, length); err != nil {
			return nil, err
		}
		segments = append(segments, Segment{Path: segPath, OffsetSeconds: offset})
		offset += chunkLen
		idx++
	}

	slog.Debug("split audio", "source", path, "segments", len(segments))
	return segments, nil
}

func (t *Tools) extractSegment(ctx context.Context, source, dest string, start, length float64) error {
	_, copyErr := t.run(ctx, "ffmpeg",
		"-ss", formatSeconds(start),
		"-i", source,
		"-t", formatSeconds(length),
		"-c", "copy",
		"-y",
		"-loglevel", "warning",
		dest,
	)
	if copyErr == nil {
		if _, err := os.Stat(dest); err == nil {
			return nil
		}
	}
	if model.IsKind(copyErr, model.KindToolNotFound) {
		return copyErr
	}

	slog.Warn("stream copy failed, re-encoding segment", "dest", dest)
	_, err := t.run(ctx, "ffmpeg",
		"-ss", formatSeconds(start),
		"-i", source,
		"-t", formatSeconds(length),
		"-codec:a", "libmp3lame",
		"-qscale:a", "2",
		"-y",
		"-loglevel", "error",
		dest,
	)
	return err
}

// ProbeDuration returns the duration of a media file in seconds.
func (t *Tools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := t.run(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, model.ToolFailure("ffprobe", "invalid probe output")
	}

	duration, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, model.ToolFailure("ffprobe", "could not determine media duration")
	}
	return duration, nil
}

// Probe runs ffprobe with stream info and returns duration plus any title
// tag. Failures past tool lookup degrade to zero values: a local file
// without probe metadata is still ingestible.
func (t *Tools) Probe(ctx context.Context, path string) (duration float64, title string, err error) {
	out, err := t.run(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		if model.IsKind(err, model.KindToolNotFound) {
			return 0, "", err
		}
		return 0, "", nil
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
			Tags     struct {
				Title string `json:"title"`
			} `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, "", nil
	}
	duration, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	return duration, parsed.Format.Tags.Title, nil
}

// DumpMetadata fetches the downloader's JSON description of a media URL
// without downloading it.
func (t *Tools) DumpMetadata(ctx context.Context, url string) ([]byte, error) {
	return t.run(ctx, "yt-dlp",
		"--dump-json",
		"--no-download",
		"--no-warnings",
		url,
	)
}

// DumpPlaylist fetches flat JSON lines for the items of a playlist or
// channel, one JSON object per line, up to limit entries.
func (t *Tools) DumpPlaylist(ctx context.Context, source string, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = 50
	}
	return t.run(ctx, "yt-dlp",
		"--dump-json",
		"--no-download",
		"--no-warnings",
		"--flat-playlist",
		"--playlist-end", strconv.Itoa(limit),
		source,
	)
}

// LookPath reports whether the named binary is on PATH. Used by doctor and
// pre-flight checks.
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
