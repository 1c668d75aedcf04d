// Package transcribe implements the fusion transcription engine: word-level
// timestamps from one model, optional cleaner text from a second, fused into
// sentence segments by an LLM with a deterministic positional fallback.
package transcribe

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"hark/internal/model"
)

// audioAPI is the slice of the OpenAI client used for transcription calls.
type audioAPI interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// chatAPI is the slice of the OpenAI client used for fusion calls.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// WhisperModel produces word-level timestamps for one audio segment.
type WhisperModel struct {
	client audioAPI
	model  string
}

// NewWhisperModel returns a word-timestamp transcriber using the given model.
func NewWhisperModel(client audioAPI, modelName string) *WhisperModel {
	return &WhisperModel{client: client, model: modelName}
}

// TranscribeWords transcribes one segment and returns its word timestamps.
// When the provider returns no word granularity the sentence segments are
// split on whitespace and their duration distributed uniformly.
func (w *WhisperModel) TranscribeWords(ctx context.Context, path, language string) ([]model.WordTimestamp, error) {
	req := openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	}
	if language != "" {
		req.Language = language
	}

	resp, err := w.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, model.Wrap(model.KindTranscription, err, "word-timestamp request failed")
	}

	if len(resp.Words) > 0 {
		words := make([]model.WordTimestamp, 0, len(resp.Words))
		for _, w := range resp.Words {
			words = append(words, model.WordTimestamp{Word: w.Word, Start: w.Start, End: w.End})
		}
		return words, nil
	}

	return approximateWords(resp), nil
}

// approximateWords distributes each segment's duration uniformly across its
// whitespace-split tokens.
func approximateWords(resp openai.AudioResponse) []model.WordTimestamp {
	var words []model.WordTimestamp
	for _, seg := range resp.Segments {
		tokens := strings.Fields(seg.Text)
		if len(tokens) == 0 {
			continue
		}
		duration := seg.End - seg.Start
		per := duration / float64(len(tokens))
		for i, token := range tokens {
			words = append(words, model.WordTimestamp{
				Word:  token,
				Start: seg.Start + float64(i)*per,
				End:   seg.Start + float64(i+1)*per,
			})
		}
	}
	return words
}

// TextModel produces a plain-text transcription of one audio segment with a
// higher-accuracy text model.
type TextModel struct {
	client audioAPI
	model  string
}

// NewTextModel returns a text-only transcriber using the given model.
func NewTextModel(client audioAPI, modelName string) *TextModel {
	return &TextModel{client: client, model: modelName}
}

// TranscribeText transcribes one segment to plain text.
func (m *TextModel) TranscribeText(ctx context.Context, path, language string) (string, error) {
	req := openai.AudioRequest{
		Model:    m.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatJSON,
	}
	if language != "" {
		req.Language = language
	}

	resp, err := m.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", model.Wrap(model.KindTranscription, err, "text transcription request failed")
	}
	return strings.TrimSpace(resp.Text), nil
}
