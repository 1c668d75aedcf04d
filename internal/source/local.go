package source

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"hark/internal/media"
	"hark/internal/model"
)

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".aac": true, ".ogg": true,
	".opus": true, ".m4a": true, ".wma": true, ".aiff": true, ".alac": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".webm": true,
	".flv": true, ".wmv": true, ".m4v": true, ".mpeg": true, ".mpg": true, ".3gp": true,
}

// LocalSource handles audio and video files on the local filesystem. Audio
// is extracted from video containers downstream; both count as media here.
type LocalSource struct {
	tools *media.Tools
}

// NewLocalSource returns a local filesystem source.
func NewLocalSource(tools *media.Tools) *LocalSource {
	return &LocalSource{tools: tools}
}

func (s *LocalSource) Kind() model.SourceKind { return model.SourceLocal }

func isMediaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return audioExtensions[ext] || videoExtensions[ext]
}

func (s *LocalSource) CanHandle(input string) bool {
	if _, err := os.Stat(input); err == nil {
		return true
	}
	return isMediaFile(input)
}

func (s *LocalSource) ExtractID(input string) (string, bool) {
	if s.CanHandle(input) {
		return input, true
	}
	return "", false
}

// MediaID derives the stable id for a local path: "local_" plus the
// canonicalised path with separators and spaces flattened.
func MediaID(path string) string {
	canonical, err := filepath.Abs(path)
	if err != nil {
		canonical = path
	}
	if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
		canonical = resolved
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return "local_" + replacer.Replace(canonical)
}

func (s *LocalSource) FetchMetadata(ctx context.Context, id string) (model.MediaRef, error) {
	path := id
	if _, err := os.Stat(path); err != nil {
		return model.MediaRef{}, model.Errf(model.KindSource, "file not found: %s", path)
	}
	if !isMediaFile(path) {
		return model.MediaRef{}, model.Errf(model.KindInvalidInput, "not a recognized audio or video file: %s", path)
	}

	duration, tagTitle, err := s.tools.Probe(ctx, path)
	if err != nil {
		return model.MediaRef{}, err
	}

	title := tagTitle
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	canonical, absErr := filepath.Abs(path)
	if absErr != nil {
		canonical = path
	}

	return model.MediaRef{
		ID:              MediaID(path),
		Title:           title,
		DurationSeconds: uint(duration),
		SourceKind:      model.SourceLocal,
		SourceURL:       canonical,
	}, nil
}

func (s *LocalSource) List(ctx context.Context, dir string, limit int) ([]model.MediaRef, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, model.Errf(model.KindSource, "directory not found: %s", dir)
	}
	if !info.IsDir() {
		return nil, model.Errf(model.KindInvalidInput, "not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, model.Wrap(model.KindSource, err, "read directory %s", dir)
	}

	var refs []model.MediaRef
	for _, entry := range entries {
		if limit > 0 && len(refs) >= limit {
			break
		}
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !isMediaFile(path) {
			continue
		}
		ref, err := s.FetchMetadata(ctx, path)
		if err != nil {
			slog.Warn("skipping unreadable media file", "path", path, "error", err)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
