// Package embed maps text to fixed-dimension vectors through the OpenAI
// embeddings API.
package embed

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"hark/internal/model"
)

// maxBatchSize bounds how many inputs go into one underlying request.
const maxBatchSize = 100

// embeddingsAPI is the slice of the OpenAI client the embedder uses.
type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder produces fixed-dimension embeddings. Batches larger than
// maxBatchSize are split into sequential requests and reassembled in input
// order using the provider-returned indexes.
type OpenAIEmbedder struct {
	client     embeddingsAPI
	model      string
	dimensions int
}

// NewOpenAIEmbedder returns an embedder for the given model and dimension.
func NewOpenAIEmbedder(client embeddingsAPI, modelName string, dimensions int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: modelName, dimensions: dimensions}
}

// Dimensions returns the fixed output dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// Embed embeds a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, model.Errf(model.KindEmbedding, "empty embedding response")
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedRun(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedRun(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, model.Wrap(model.KindEmbedding, err, "embedding request failed")
	}
	if len(resp.Data) != len(texts) {
		return nil, model.Errf(model.KindEmbedding, "embedding response size mismatch: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, model.Errf(model.KindEmbedding, "embedding response contains invalid index %d", item.Index)
		}
		if vectors[item.Index] != nil {
			return nil, model.Errf(model.KindEmbedding, "embedding response contains duplicate index %d", item.Index)
		}
		if len(item.Embedding) != e.dimensions {
			return nil, model.Errf(model.KindEmbedding, "embedding has %d dimensions, want %d", len(item.Embedding), e.dimensions)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, model.Errf(model.KindEmbedding, "embedding response missing index %d", i)
		}
	}
	return vectors, nil
}
