package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"hark/internal/media"
	"hark/internal/model"
)

var (
	ytURLPattern  = regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/)([a-zA-Z0-9_-]{11})`)
	ytBarePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// YouTubeSource resolves YouTube URLs, bare 11-character video ids and
// playlist/channel URLs. Metadata comes from the downloader's JSON dump.
type YouTubeSource struct {
	tools *media.Tools
}

// NewYouTubeSource returns a YouTube source backed by the given tools.
func NewYouTubeSource(tools *media.Tools) *YouTubeSource {
	return &YouTubeSource{tools: tools}
}

func (s *YouTubeSource) Kind() model.SourceKind { return model.SourceYouTube }

func (s *YouTubeSource) CanHandle(input string) bool {
	if _, ok := s.ExtractID(input); ok {
		return true
	}
	return strings.Contains(input, "youtube.com/playlist") ||
		strings.Contains(input, "youtube.com/channel") ||
		strings.Contains(input, "youtube.com/@")
}

func (s *YouTubeSource) ExtractID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if m := ytURLPattern.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	if ytBarePattern.MatchString(input) {
		return input, true
	}
	return "", false
}

func (s *YouTubeSource) FetchMetadata(ctx context.Context, id string) (model.MediaRef, error) {
	videoID, ok := s.ExtractID(id)
	if !ok {
		return model.MediaRef{}, model.Errf(model.KindInvalidInput, "invalid YouTube video id or URL: %s", id)
	}

	url := watchURL(videoID)
	out, err := s.tools.DumpMetadata(ctx, url)
	if err != nil {
		if model.IsKind(err, model.KindToolNotFound) {
			return model.MediaRef{}, err
		}
		return model.MediaRef{}, model.Wrap(model.KindSource, err, "video %s not found or unavailable", videoID)
	}

	var parsed ytMetadata
	if err := json.Unmarshal(out, &parsed); err != nil {
		return model.MediaRef{}, model.Wrap(model.KindSource, err, "parse video metadata")
	}

	return parsed.toRef(videoID, url), nil
}

func (s *YouTubeSource) List(ctx context.Context, sourceURL string, limit int) ([]model.MediaRef, error) {
	out, err := s.tools.DumpPlaylist(ctx, sourceURL, limit)
	if err != nil {
		if model.IsKind(err, model.KindToolNotFound) {
			return nil, err
		}
		return nil, model.Wrap(model.KindSource, err, "list videos from %s", sourceURL)
	}

	var refs []model.MediaRef
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry ytMetadata
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		id := entry.ID
		if id == "" {
			if extracted, ok := s.ExtractID(entry.URL); ok {
				id = extracted
			}
		}
		if id == "" {
			continue
		}
		refs = append(refs, model.MediaRef{
			ID:              id,
			Title:           titleOrUnknown(entry.Title),
			DurationSeconds: uint(entry.Duration),
			SourceKind:      model.SourceYouTube,
			SourceURL:       watchURL(id),
			Channel:         entry.Channel,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, model.Wrap(model.KindSource, err, "scan playlist output")
	}
	return refs, nil
}

type ytMetadata struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Channel     string  `json:"channel"`
	Uploader    string  `json:"uploader"`
	Thumbnail   string  `json:"thumbnail"`
	UploadDate  string  `json:"upload_date"`
}

func (m ytMetadata) toRef(id, url string) model.MediaRef {
	ref := model.MediaRef{
		ID:              id,
		Title:           titleOrUnknown(m.Title),
		Description:     m.Description,
		DurationSeconds: uint(m.Duration),
		SourceKind:      model.SourceYouTube,
		SourceURL:       url,
		Channel:         m.Channel,
		Thumbnail:       m.Thumbnail,
	}
	if ref.Channel == "" {
		ref.Channel = m.Uploader
	}
	// upload_date arrives as YYYYMMDD
	if len(m.UploadDate) == 8 {
		if ts, err := time.Parse("20060102", m.UploadDate); err == nil {
			utc := ts.UTC()
			ref.PublishedAt = &utc
		}
	}
	return ref
}

func titleOrUnknown(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Unknown Title"
	}
	return title
}

func watchURL(id string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", id)
}
