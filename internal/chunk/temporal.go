package chunk

import (
	"context"
	"strings"

	"hark/internal/model"
)

// Temporal splits a transcript into fixed-duration windows. Chunk content is
// the space-join of every segment overlapping the window; empty windows are
// skipped.
type Temporal struct{}

func (c *Temporal) Chunk(_ context.Context, t model.Transcript, cfg model.ChunkConfig) ([]model.ContentChunk, error) {
	if len(t.Segments) == 0 {
		return nil, nil
	}
	if t.DurationSeconds < float64(cfg.MinSeconds) {
		return singleChunk(t), nil
	}

	target := float64(cfg.TargetSeconds)
	var chunks []model.ContentChunk
	order := 0

	for start := 0.0; start < t.DurationSeconds; start += target {
		end := start + target
		if end > t.DurationSeconds {
			end = t.DurationSeconds
		}

		content := strings.TrimSpace(t.TextBetween(start, end))
		if content == "" {
			continue
		}

		chunks = append(chunks, model.ContentChunk{
			Order:        order,
			StartSeconds: start,
			EndSeconds:   end,
			Content:      content,
		})
		order++
	}

	return chunks, nil
}
