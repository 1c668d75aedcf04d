package chunk

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"hark/internal/config"
	"hark/internal/model"
)

// chatAPI is the slice of the OpenAI client the semantic chunker uses.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Semantic asks an LLM to identify topic sections in a timed transcript.
// Parse failures fall back to temporal chunking of the same transcript.
type Semantic struct {
	chat     chatAPI
	model    string
	prompts  config.Prompts
	temporal Temporal
}

// NewSemantic returns an LLM-guided chunker.
func NewSemantic(chat chatAPI, modelName string, prompts config.Prompts) *Semantic {
	return &Semantic{chat: chat, model: modelName, prompts: prompts}
}

// llmSection is one section of the model's JSON response.
type llmSection struct {
	Title        string  `json:"title"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Summary      string  `json:"summary"`
}

func (c *Semantic) Chunk(ctx context.Context, t model.Transcript, cfg model.ChunkConfig) ([]model.ContentChunk, error) {
	if len(t.Segments) == 0 {
		return nil, nil
	}
	if t.DurationSeconds < float64(cfg.MinSeconds) {
		return singleChunk(t), nil
	}

	vars := map[string]string{
		"title":           t.MediaID,
		"transcript":      t.FormatWithTimestamps(),
		"target_duration": strconv.Itoa(cfg.TargetSeconds),
		"min_duration":    strconv.Itoa(cfg.MinSeconds),
		"max_duration":    strconv.Itoa(cfg.MaxSeconds),
	}

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompts.Render(c.prompts.Chunking.System, vars)},
			{Role: openai.ChatMessageRoleUser, Content: c.prompts.Render(c.prompts.Chunking.User, vars)},
		},
	})
	if err != nil {
		return nil, model.Wrap(model.KindTranscription, err, "chunking request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, model.Errf(model.KindTranscription, "empty chunking response")
	}

	sections, err := parseSections(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Warn("semantic chunking parse failed, falling back to temporal", "error", err)
		return c.temporal.Chunk(ctx, t, cfg)
	}

	return buildChunks(sections, t, cfg), nil
}

// parseSections extracts the outermost JSON array from the response, which
// models routinely wrap in prose or code fences.
func parseSections(response string) ([]llmSection, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")

	jsonStr := response
	if start >= 0 && end > start {
		jsonStr = response[start : end+1]
	}

	var sections []llmSection
	if err := json.Unmarshal([]byte(jsonStr), &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// buildChunks materialises sections against the transcript text. Sections
// shorter than the minimum merge into the previous chunk; the merged-away
// section's title and summary are dropped.
func buildChunks(sections []llmSection, t model.Transcript, cfg model.ChunkConfig) []model.ContentChunk {
	var chunks []model.ContentChunk
	for _, section := range sections {
		content := t.TextBetween(section.StartSeconds, section.EndSeconds)
		if strings.TrimSpace(content) == "" {
			continue
		}

		duration := section.EndSeconds - section.StartSeconds
		if duration < float64(cfg.MinSeconds) && len(chunks) > 0 {
			last := &chunks[len(chunks)-1]
			last.Content = last.Content + " " + content
			last.EndSeconds = section.EndSeconds
			continue
		}

		chunks = append(chunks, model.ContentChunk{
			Order:        len(chunks),
			Title:        section.Title,
			Summary:      section.Summary,
			StartSeconds: section.StartSeconds,
			EndSeconds:   section.EndSeconds,
			Content:      content,
		})
	}
	return chunks
}
