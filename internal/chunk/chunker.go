// Package chunk splits transcripts into retrieval-sized content chunks,
// either on fixed time windows or along LLM-identified topic boundaries.
package chunk

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"hark/internal/config"
	"hark/internal/model"
)

// Strategy selects a chunking algorithm.
type Strategy string

const (
	StrategySemantic Strategy = "semantic"
	StrategyTemporal Strategy = "temporal"
	// StrategyHybrid dispatches to semantic chunking with its temporal
	// fallback. Kept as a distinct name for configs that already use it.
	StrategyHybrid Strategy = "hybrid"
)

// ParseStrategy resolves a strategy name, defaulting to semantic.
func ParseStrategy(s string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyTemporal:
		return StrategyTemporal
	case StrategyHybrid:
		return StrategyHybrid
	default:
		return StrategySemantic
	}
}

// New returns the chunker for a strategy.
func New(strategy Strategy, client *openai.Client, modelName string, prompts config.Prompts) model.Chunker {
	if strategy == StrategyTemporal {
		return &Temporal{}
	}
	return NewSemantic(client, modelName, prompts)
}

// singleChunk wraps a whole transcript in one chunk, used by every strategy
// for transcripts shorter than the minimum duration.
func singleChunk(t model.Transcript) []model.ContentChunk {
	return []model.ContentChunk{{
		Order:        0,
		StartSeconds: 0,
		EndSeconds:   t.DurationSeconds,
		Content:      t.FullText,
	}}
}
