package chunk

import (
	"context"
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hark/internal/config"
	"hark/internal/model"
)

func minuteTranscript(segmentSeconds, totalSeconds int) model.Transcript {
	var segments []model.TranscriptSegment
	for start := 0; start < totalSeconds; start += segmentSeconds {
		segments = append(segments, model.TranscriptSegment{
			Text:         fmt.Sprintf("segment-%d", start),
			StartSeconds: float64(start),
			EndSeconds:   float64(start + segmentSeconds),
		})
	}
	return model.NewTranscript("vid", segments)
}

func defaultConfig() model.ChunkConfig {
	return model.ChunkConfig{TargetSeconds: 60, MinSeconds: 30, MaxSeconds: 120}
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, StrategyTemporal, ParseStrategy("temporal"))
	assert.Equal(t, StrategyHybrid, ParseStrategy("HYBRID"))
	assert.Equal(t, StrategySemantic, ParseStrategy("semantic"))
	assert.Equal(t, StrategySemantic, ParseStrategy("anything else"))
}

func TestTemporalChunking(t *testing.T) {
	// segments every 30s for 120s, target 60s -> exactly two chunks
	tr := minuteTranscript(30, 120)
	chunks, err := (&Temporal{}).Chunk(context.Background(), tr, defaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].Order)
	assert.Equal(t, 1, chunks[1].Order)
	assert.Contains(t, chunks[0].Content, "segment-0")
	assert.Contains(t, chunks[0].Content, "segment-30")
	assert.Contains(t, chunks[1].Content, "segment-60")
	assert.Contains(t, chunks[1].Content, "segment-90")
	assert.NotContains(t, chunks[1].Content, "segment-30")
	assert.Empty(t, chunks[0].Title)
}

func TestTemporalEmptyTranscript(t *testing.T) {
	chunks, err := (&Temporal{}).Chunk(context.Background(), model.NewTranscript("vid", nil), defaultConfig())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestTemporalShortTranscriptSingleChunk(t *testing.T) {
	tr := model.NewTranscript("vid", []model.TranscriptSegment{
		{Text: "brief", StartSeconds: 0, EndSeconds: 10},
	})
	chunks, err := (&Temporal{}).Chunk(context.Background(), tr, defaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "brief", chunks[0].Content)
	assert.Equal(t, 10.0, chunks[0].EndSeconds)
}

func TestChunkOrderingInvariant(t *testing.T) {
	tr := minuteTranscript(15, 600)
	chunks, err := (&Temporal{}).Chunk(context.Background(), tr, model.ChunkConfig{TargetSeconds: 90, MinSeconds: 0, MaxSeconds: 300})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.Order, "order must be dense from 0")
		if i > 0 {
			assert.GreaterOrEqual(t, c.StartSeconds, chunks[i-1].StartSeconds)
		}
	}
}

type fakeChat struct {
	content string
	err     error
}

func (f *fakeChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: f.content}},
	}}, nil
}

func newSemantic(content string) *Semantic {
	return NewSemantic(&fakeChat{content: content}, "gpt-4o-mini", config.DefaultPrompts())
}

func TestSemanticChunking(t *testing.T) {
	tr := minuteTranscript(30, 240)
	s := newSemantic(`[
		{"title": "Introduction", "start_seconds": 0, "end_seconds": 120},
		{"title": "Main Content", "start_seconds": 120, "end_seconds": 240, "summary": "The main ideas"}
	]`)

	chunks, err := s.Chunk(context.Background(), tr, defaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Introduction", chunks[0].Title)
	assert.Equal(t, "The main ideas", chunks[1].Summary)
	assert.Contains(t, chunks[0].Content, "segment-0")
	assert.Contains(t, chunks[1].Content, "segment-120")
}

func TestSemanticChunkingToleratesWrappedJSON(t *testing.T) {
	tr := minuteTranscript(30, 240)
	s := newSemantic("Here are the sections:\n```json\n[{\"title\": \"Part 1\", \"start_seconds\": 0, \"end_seconds\": 240}]\n```\nDone.")

	chunks, err := s.Chunk(context.Background(), tr, defaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Part 1", chunks[0].Title)
}

func TestSemanticChunkingMergesUndersizedSections(t *testing.T) {
	tr := minuteTranscript(10, 200)
	s := newSemantic(`[
		{"title": "Big", "start_seconds": 0, "end_seconds": 120, "summary": "kept"},
		{"title": "Tiny", "start_seconds": 120, "end_seconds": 130, "summary": "lost"}
	]`)

	chunks, err := s.Chunk(context.Background(), tr, defaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Big", chunks[0].Title)
	assert.Equal(t, "kept", chunks[0].Summary, "merge must not regenerate title or summary")
	assert.Equal(t, 130.0, chunks[0].EndSeconds)
	assert.Contains(t, chunks[0].Content, "segment-120")
}

func TestSemanticChunkingFallsBackToTemporal(t *testing.T) {
	tr := minuteTranscript(30, 120)
	s := newSemantic("I could not produce structured output, sorry.")

	chunks, err := s.Chunk(context.Background(), tr, defaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 2, "temporal fallback on parse failure")
	assert.Empty(t, chunks[0].Title)
}

func TestSemanticChunkingRequestError(t *testing.T) {
	s := NewSemantic(&fakeChat{err: errors.New("model down")}, "gpt-4o-mini", config.DefaultPrompts())
	_, err := s.Chunk(context.Background(), minuteTranscript(30, 240), defaultConfig())
	assert.Error(t, err)
}

func TestSemanticShortTranscriptSkipsLLM(t *testing.T) {
	chat := &fakeChat{err: errors.New("must not be called")}
	s := NewSemantic(chat, "gpt-4o-mini", config.DefaultPrompts())

	tr := model.NewTranscript("vid", []model.TranscriptSegment{
		{Text: "short", StartSeconds: 0, EndSeconds: 5},
	})
	chunks, err := s.Chunk(context.Background(), tr, defaultConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0].Content)
}
