package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hark/internal/media"
	"hark/internal/model"
)

func newTools(handler func(name string, args []string) ([]byte, error)) *media.Tools {
	return media.NewTools(media.WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		return handler(name, args)
	}))
}

func silentTools() *media.Tools {
	return newTools(func(string, []string) ([]byte, error) { return []byte("{}"), nil })
}

func TestYouTubeExtractID(t *testing.T) {
	s := NewYouTubeSource(silentTools())

	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                "dQw4w9WgXcQ",
		"https://youtube.com/embed/dQw4w9WgXcQ":       "dQw4w9WgXcQ",
		"dQw4w9WgXcQ":                                 "dQw4w9WgXcQ",
	}
	for input, want := range cases {
		id, ok := s.ExtractID(input)
		require.True(t, ok, input)
		assert.Equal(t, want, id)
	}

	for _, input := range []string{"not-a-video-id", "", "/path/to/video.mp4"} {
		_, ok := s.ExtractID(input)
		assert.False(t, ok, input)
	}
}

func TestYouTubeCanHandlePlaylists(t *testing.T) {
	s := NewYouTubeSource(silentTools())
	assert.True(t, s.CanHandle("https://youtube.com/playlist?list=PLtest"))
	assert.True(t, s.CanHandle("https://youtube.com/@somecreator"))
	assert.False(t, s.CanHandle("/path/to/video.mp4"))
}

func TestYouTubeFetchMetadata(t *testing.T) {
	tools := newTools(func(name string, args []string) ([]byte, error) {
		require.Equal(t, "yt-dlp", name)
		assert.Contains(t, args, "--dump-json")
		return []byte(`{
			"id": "dQw4w9WgXcQ",
			"title": "Some Talk",
			"description": "desc",
			"duration": 212.0,
			"channel": "SomeChannel",
			"thumbnail": "https://i.ytimg.com/x.jpg",
			"upload_date": "20091025"
		}`), nil
	})

	ref, err := NewYouTubeSource(tools).FetchMetadata(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", ref.ID)
	assert.Equal(t, "Some Talk", ref.Title)
	assert.Equal(t, uint(212), ref.DurationSeconds)
	assert.Equal(t, model.SourceYouTube, ref.SourceKind)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", ref.SourceURL)
	require.NotNil(t, ref.PublishedAt)
	assert.Equal(t, 2009, ref.PublishedAt.Year())
}

func TestYouTubeFetchMetadataFailure(t *testing.T) {
	tools := newTools(func(string, []string) ([]byte, error) {
		return nil, model.ToolFailure("yt-dlp", "video unavailable")
	})

	_, err := NewYouTubeSource(tools).FetchMetadata(context.Background(), "dQw4w9WgXcQ")
	assert.True(t, model.IsKind(err, model.KindSource))
}

func TestYouTubeList(t *testing.T) {
	tools := newTools(func(_ string, args []string) ([]byte, error) {
		assert.Contains(t, args, "--flat-playlist")
		return []byte(`{"id": "aaaaaaaaaaa", "title": "First", "duration": 60}
{"id": "bbbbbbbbbbb", "title": "Second"}
`), nil
	})

	refs, err := NewYouTubeSource(tools).List(context.Background(), "https://youtube.com/playlist?list=PL1", 10)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "aaaaaaaaaaa", refs[0].ID)
	assert.Equal(t, uint(60), refs[0].DurationSeconds)
	assert.Equal(t, "Second", refs[1].Title)
}

func TestLocalFetchMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lecture one.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	tools := newTools(func(name string, _ []string) ([]byte, error) {
		require.Equal(t, "ffprobe", name)
		return []byte(`{"format":{"duration":"42.5","tags":{"title":"Lecture One"}}}`), nil
	})

	ref, err := NewLocalSource(tools).FetchMetadata(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Lecture One", ref.Title)
	assert.Equal(t, uint(42), ref.DurationSeconds)
	assert.Equal(t, model.SourceLocal, ref.SourceKind)
	assert.True(t, len(ref.ID) > len("local_"))
	assert.Contains(t, ref.ID, "local_")
	assert.NotContains(t, ref.ID, " ", "spaces are flattened in ids")
}

func TestLocalFetchMetadataMissingFile(t *testing.T) {
	_, err := NewLocalSource(silentTools()).FetchMetadata(context.Background(), "/no/such/file.mp3")
	assert.True(t, model.IsKind(err, model.KindSource))
}

func TestLocalList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp3", "b.mp4", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	tools := newTools(func(string, []string) ([]byte, error) {
		return []byte(`{"format":{"duration":"10"}}`), nil
	})

	refs, err := NewLocalSource(tools).List(context.Background(), dir, 0)
	require.NoError(t, err)
	assert.Len(t, refs, 2, "only supported media files are listed")

	limited, err := NewLocalSource(tools).List(context.Background(), dir, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDetectOrderPrefersYouTube(t *testing.T) {
	dir := t.TempDir()
	// a file whose name is also a valid bare video id
	path := filepath.Join(dir, "abcdefghijk")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	s, ok := Detect(silentTools(), "abcdefghijk")
	require.True(t, ok)
	assert.Equal(t, model.SourceYouTube, s.Kind())

	s, ok = Detect(silentTools(), filepath.Join(dir, "talk.mp3"))
	require.True(t, ok)
	assert.Equal(t, model.SourceLocal, s.Kind())
}

func TestParseInputUnrecognized(t *testing.T) {
	_, _, err := ParseInput(silentTools(), "definitely not media")
	assert.True(t, model.IsKind(err, model.KindInvalidInput))
}
