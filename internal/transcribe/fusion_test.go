package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hark/internal/media"
	"hark/internal/model"
)

var sampleWords = []model.WordTimestamp{
	{Word: "Hello", Start: 0.0, End: 0.5},
	{Word: "world", Start: 0.5, End: 1.0},
	{Word: "this", Start: 1.0, End: 1.3},
	{Word: "is", Start: 1.3, End: 1.5},
	{Word: "a", Start: 1.5, End: 1.6},
	{Word: "test", Start: 1.6, End: 2.0},
}

func TestAlignByPosition(t *testing.T) {
	segments := alignByPosition(sampleWords, "Hello world. This is a test.", 0)

	require.Len(t, segments, 2)
	assert.Equal(t, "Hello world.", segments[0].Text)
	assert.InDelta(t, 0.0, segments[0].StartSeconds, 0.01)
	assert.InDelta(t, 1.0, segments[0].EndSeconds, 0.01)
	assert.Equal(t, "This is a test.", segments[1].Text)
	assert.InDelta(t, 1.0, segments[1].StartSeconds, 0.01)
	assert.InDelta(t, 2.0, segments[1].EndSeconds, 0.01)
}

func TestAlignByPositionWithOffset(t *testing.T) {
	segments := alignByPosition(sampleWords, "Hello world. This is a test.", 120)

	require.Len(t, segments, 2)
	assert.InDelta(t, 120.0, segments[0].StartSeconds, 0.01)
	assert.InDelta(t, 121.0, segments[0].EndSeconds, 0.01)
	assert.InDelta(t, 121.0, segments[1].StartSeconds, 0.01)
	assert.InDelta(t, 122.0, segments[1].EndSeconds, 0.01)
}

func TestAlignByPositionEmptyWords(t *testing.T) {
	segments := alignByPosition(nil, "Hello", 5)

	require.Len(t, segments, 1)
	assert.Equal(t, "Hello", segments[0].Text)
	assert.Equal(t, 5.0, segments[0].StartSeconds)
	assert.Equal(t, 15.0, segments[0].EndSeconds)
}

func TestAlignByPositionNoSentences(t *testing.T) {
	words := []model.WordTimestamp{{Word: "...", Start: 0, End: 2}}
	segments := alignByPosition(words, "...", 0)

	require.Len(t, segments, 1)
	assert.Equal(t, 0.0, segments[0].StartSeconds)
	assert.Equal(t, 2.0, segments[0].EndSeconds)
}

func TestAlignByPositionExtendsLastSegment(t *testing.T) {
	// text covers only the first two of many words; the last synthesized
	// segment must be stretched to the final word's end
	words := append([]model.WordTimestamp{}, sampleWords...)
	words = append(words, model.WordTimestamp{Word: "trailing", Start: 2.0, End: 9.0})

	segments := alignByPosition(words, "Hello world.", 0)
	require.NotEmpty(t, segments)
	assert.Equal(t, 9.0, segments[len(segments)-1].EndSeconds)
}

// fakeWords / fakeText / fakeChat implement the per-segment pipeline
// dependencies.
type fakeWords struct {
	words []model.WordTimestamp
	err   error
	calls atomic.Int64
}

func (f *fakeWords) TranscribeWords(context.Context, string, string) ([]model.WordTimestamp, error) {
	f.calls.Add(1)
	return f.words, f.err
}

type fakeText struct {
	text string
	err  error
}

func (f *fakeText) TranscribeText(context.Context, string, string) (string, error) {
	return f.text, f.err
}

type fakeChat struct {
	content string
	err     error
	calls   atomic.Int64
}

func (f *fakeChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

type fakeSplitter struct {
	segments []media.Segment
	err      error
}

func (f *fakeSplitter) SplitAudio(context.Context, string, string, int) ([]media.Segment, error) {
	return f.segments, f.err
}

func fusionJSON(t *testing.T, segments []fusedSegment) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"segments": segments})
	require.NoError(t, err)
	return string(data)
}

func TestFuseSegmentUsesLLMAndShiftsOffsets(t *testing.T) {
	chat := &fakeChat{content: fusionJSON(t, []fusedSegment{
		{Text: "Hello world.", StartSeconds: 0, EndSeconds: 1},
		{Text: "This is a test.", StartSeconds: 1, EndSeconds: 2},
	})}
	p := &Processor{chat: chat, fusionModel: "gpt-4.1"}

	segments := p.fuseSegment(context.Background(), sampleWords, "Hello world. This is a test.", 120)
	require.Len(t, segments, 2)
	assert.Equal(t, 120.0, segments[0].StartSeconds)
	assert.Equal(t, 122.0, segments[1].EndSeconds)
}

func TestFuseSegmentFallsBackOnBadJSON(t *testing.T) {
	p := &Processor{chat: &fakeChat{content: "not json"}, fusionModel: "gpt-4.1"}

	segments := p.fuseSegment(context.Background(), sampleWords, "Hello world. This is a test.", 0)
	require.Len(t, segments, 2, "positional fallback must produce segments")
	assert.Equal(t, "Hello world.", segments[0].Text)
}

func TestFuseSegmentFallsBackOnEmptyResult(t *testing.T) {
	p := &Processor{chat: &fakeChat{content: `{"segments": []}`}, fusionModel: "gpt-4.1"}

	segments := p.fuseSegment(context.Background(), sampleWords, "Hello world. This is a test.", 0)
	assert.Len(t, segments, 2)
}

func TestFuseSegmentFallsBackOnError(t *testing.T) {
	p := &Processor{chat: &fakeChat{err: errors.New("rate limited")}, fusionModel: "gpt-4.1"}

	segments := p.fuseSegment(context.Background(), sampleWords, "Hello world. This is a test.", 0)
	assert.Len(t, segments, 2)
}

func TestFuseSegmentEmptyWordsNonEmptyText(t *testing.T) {
	chat := &fakeChat{}
	p := &Processor{chat: chat, fusionModel: "gpt-4.1"}

	segments := p.fuseSegment(context.Background(), nil, "Residual text", 30)
	require.Len(t, segments, 1)
	assert.Equal(t, "Residual text", segments[0].Text)
	assert.Equal(t, 30.0, segments[0].StartSeconds)
	assert.Equal(t, 40.0, segments[0].EndSeconds)
	assert.Zero(t, chat.calls.Load(), "degenerate input must not call the LLM")
}

func TestFuseSegmentEmptyEverything(t *testing.T) {
	p := &Processor{chat: &fakeChat{}, fusionModel: "gpt-4.1"}
	assert.Empty(t, p.fuseSegment(context.Background(), nil, "  ", 0))
}

func TestProcessorTranscribeSingleSegment(t *testing.T) {
	words := &fakeWords{words: sampleWords}
	chat := &fakeChat{content: fusionJSON(t, []fusedSegment{
		{Text: "Hello world.", StartSeconds: 0, EndSeconds: 1},
		{Text: "This is a test.", StartSeconds: 1, EndSeconds: 2},
	})}
	p := &Processor{
		words:         words,
		chat:          chat,
		splitter:      &fakeSplitter{segments: []media.Segment{{Path: "/a.mp3", OffsetSeconds: 0}}},
		fusionModel:   "gpt-4.1",
		segmentSecs:   300,
		maxConcurrent: 2,
	}

	tr, err := p.Transcribe(context.Background(), "/audio/a.mp3", "")
	require.NoError(t, err)
	assert.Equal(t, "a", tr.MediaID)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, 2.0, tr.DurationSeconds)
	assert.Equal(t, "Hello world. This is a test.", tr.FullText)
	assert.Equal(t, int64(1), words.calls.Load())
}

func TestProcessorTranscribeMergesAndSortsSegments(t *testing.T) {
	// whisper-only mode: text is reconstructed from words and the fusion
	// LLM output is echoed back per segment
	words := &fakeWords{words: []model.WordTimestamp{
		{Word: "Hello", Start: 0, End: 1},
		{Word: "there", Start: 1, End: 2},
	}}
	chat := &fakeChat{content: fusionJSON(t, []fusedSegment{
		{Text: "Hello there.", StartSeconds: 0, EndSeconds: 2},
	})}
	p := &Processor{
		words: words,
		chat:  chat,
		splitter: &fakeSplitter{segments: []media.Segment{
			{Path: "/seg1.mp3", OffsetSeconds: 300},
			{Path: "/seg0.mp3", OffsetSeconds: 0},
		}},
		fusionModel:   "gpt-4.1",
		segmentSecs:   300,
		maxConcurrent: 2,
	}

	tr, err := p.Transcribe(context.Background(), "/audio/long.mp3", "")
	require.NoError(t, err)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, 0.0, tr.Segments[0].StartSeconds)
	assert.Equal(t, 300.0, tr.Segments[1].StartSeconds)
	assert.Equal(t, 302.0, tr.DurationSeconds)

	for i := 0; i < len(tr.Segments)-1; i++ {
		assert.LessOrEqual(t, tr.Segments[i].EndSeconds, tr.Segments[i+1].StartSeconds,
			"segments must not overlap")
	}
}

func TestProcessorTranscribeFailFast(t *testing.T) {
	words := &fakeWords{err: fmt.Errorf("whisper unavailable")}
	p := &Processor{
		words: words,
		chat:  &fakeChat{},
		splitter: &fakeSplitter{segments: []media.Segment{
			{Path: "/seg0.mp3", OffsetSeconds: 0},
			{Path: "/seg1.mp3", OffsetSeconds: 300},
			{Path: "/seg2.mp3", OffsetSeconds: 600},
		}},
		fusionModel:   "gpt-4.1",
		segmentSecs:   300,
		maxConcurrent: 1,
	}

	_, err := p.Transcribe(context.Background(), "/audio/a.mp3", "")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindTranscription))
	assert.Contains(t, err.Error(), "failed")
}

func TestProcessorFullFusionRunsBothModels(t *testing.T) {
	words := &fakeWords{words: sampleWords}
	text := &fakeText{text: "Hello world. This is a test."}
	chat := &fakeChat{content: fusionJSON(t, []fusedSegment{
		{Text: "Hello world. This is a test.", StartSeconds: 0, EndSeconds: 2},
	})}
	p := &Processor{
		words:         words,
		text:          text,
		chat:          chat,
		splitter:      &fakeSplitter{segments: []media.Segment{{Path: "/a.mp3", OffsetSeconds: 0}}},
		fusionModel:   "gpt-4.1",
		segmentSecs:   300,
		maxConcurrent: 2,
	}

	require.True(t, p.IsFullFusion())
	tr, err := p.Transcribe(context.Background(), "/audio/a.mp3", "en")
	require.NoError(t, err)
	assert.Len(t, tr.Segments, 1)
}

func TestProcessorFullFusionTextModelFailureFailsSegment(t *testing.T) {
	p := &Processor{
		words:         &fakeWords{words: sampleWords},
		text:          &fakeText{err: errors.New("text model down")},
		chat:          &fakeChat{},
		splitter:      &fakeSplitter{segments: []media.Segment{{Path: "/a.mp3", OffsetSeconds: 0}}},
		fusionModel:   "gpt-4.1",
		segmentSecs:   300,
		maxConcurrent: 2,
	}

	_, err := p.Transcribe(context.Background(), "/audio/a.mp3", "")
	assert.Error(t, err, "both models must succeed in full fusion mode")
}
