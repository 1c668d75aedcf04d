// Package rag assembles retrieval context and generates cited answers over
// the indexed library.
package rag

import (
	"context"
	"fmt"
	"strings"

	"hark/internal/model"
)

const (
	defaultMaxChunks = 10
	defaultMinScore  = 0.3
)

// ContextBuilder turns a query into scored, timestamped context chunks.
type ContextBuilder struct {
	store     model.Store
	embedder  model.Embedder
	maxChunks int
	minScore  float32
}

// NewContextBuilder returns a builder with the default limits.
func NewContextBuilder(store model.Store, embedder model.Embedder) *ContextBuilder {
	return &ContextBuilder{
		store:     store,
		embedder:  embedder,
		maxChunks: defaultMaxChunks,
		minScore:  defaultMinScore,
	}
}

// WithMaxChunks bounds how many chunks a query may pull in.
func (b *ContextBuilder) WithMaxChunks(n int) *ContextBuilder {
	if n > 0 {
		b.maxChunks = n
	}
	return b
}

// WithMinScore sets the similarity threshold.
func (b *ContextBuilder) WithMinScore(score float32) *ContextBuilder {
	b.minScore = score
	return b
}

// Build embeds the query, searches the store and maps the hits to context
// chunks. Deep links are synthesised only for non-local media.
func (b *ContextBuilder) Build(ctx context.Context, query string) ([]model.ContextChunk, error) {
	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := b.store.SearchWithThreshold(ctx, vec, b.maxChunks, b.minScore)
	if err != nil {
		return nil, err
	}
	return FromResults(results), nil
}

// FromResults converts raw search results into context chunks.
func FromResults(results []model.SearchResult) []model.ContextChunk {
	chunks := make([]model.ContextChunk, 0, len(results))
	for _, r := range results {
		chunk := model.ContextChunk{
			MediaID:      r.Document.MediaID,
			MediaTitle:   r.Document.MediaTitle,
			SectionTitle: r.Document.SectionTitle,
			Timestamp:    r.Document.FormatTimestamp(),
			StartSeconds: r.Document.StartSeconds,
			EndSeconds:   r.Document.EndSeconds,
			Content:      r.Document.Content,
			Score:        r.Score,
		}
		if !strings.HasPrefix(r.Document.MediaID, "local_") {
			chunk.URL = fmt.Sprintf("https://youtube.com/watch?v=%s&t=%ds",
				r.Document.MediaID, int(r.Document.StartSeconds))
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// FormatContextForPrompt renders chunks as delimited blocks with citation
// headers for the generation prompt.
func FormatContextForPrompt(chunks []model.ContextChunk) string {
	blocks := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		blocks = append(blocks, fmt.Sprintf("---\n[%d] %s @ %s\n%s\n---",
			i+1, chunk.MediaTitle, chunk.Timestamp, chunk.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// FormatContextForDisplay renders chunks for the terminal sources listing.
func FormatContextForDisplay(chunks []model.ContextChunk) string {
	lines := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		line := fmt.Sprintf("%s @ %s (score: %.2f)", chunk.MediaTitle, chunk.Timestamp, chunk.Score)
		if chunk.URL != "" {
			line += "\n  " + chunk.URL
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n\n")
}
