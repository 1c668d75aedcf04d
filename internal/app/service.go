// Package app exposes the core pipeline and retrieval operations as one
// service facade shared by the HTTP and MCP shells.
package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"hark/internal/config"
	"hark/internal/model"
	"hark/internal/pipeline"
	"hark/internal/rag"
)

// Service bundles the orchestrator and retrieval surfaces behind the
// operations the protocol shells expose.
type Service struct {
	orch     *pipeline.Orchestrator
	settings config.Settings
}

// NewService builds the full stack from settings.
func NewService(settings config.Settings) (*Service, error) {
	orch, err := pipeline.New(settings)
	if err != nil {
		return nil, err
	}
	return &Service{orch: orch, settings: settings}, nil
}

// NewServiceWithOrchestrator wraps an existing orchestrator (tests, CLI).
func NewServiceWithOrchestrator(orch *pipeline.Orchestrator) *Service {
	return &Service{orch: orch, settings: orch.Settings()}
}

// Close releases underlying resources.
func (s *Service) Close() error { return s.orch.Close() }

// Orchestrator exposes the pipeline for CLI verbs that need it directly.
func (s *Service) Orchestrator() *pipeline.Orchestrator { return s.orch }

// ProcessMedia runs the ingest pipeline.
func (s *Service) ProcessMedia(ctx context.Context, input string, force bool) (model.ProcessResult, error) {
	return s.orch.ProcessMedia(ctx, input, force)
}

// Search embeds the query and returns thresholded context chunks.
func (s *Service) Search(ctx context.Context, query string, limit int, minScore float32) ([]model.ContextChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	builder := rag.NewContextBuilder(s.orch.Store(), s.orch.Embedder()).
		WithMaxChunks(limit).
		WithMinScore(minScore)
	return builder.Build(ctx, query)
}

// Ask runs single-shot RAG answering. An empty modelName uses the
// configured default.
func (s *Service) Ask(ctx context.Context, question string, maxChunks int, modelName string) (rag.Response, error) {
	if maxChunks <= 0 {
		maxChunks = s.settings.RAG.MaxContextChunks
	}
	if modelName == "" {
		modelName = s.settings.RAG.Model
	}
	engine := rag.NewEngine(
		s.chatClient(),
		modelName,
		rag.NewContextBuilder(s.orch.Store(), s.orch.Embedder()).WithMaxChunks(maxChunks),
		s.orch.Prompts(),
	)
	return engine.Ask(ctx, question)
}

// NewChatEngine returns a stateful conversational engine for the chat verb.
func (s *Service) NewChatEngine(modelName string) *rag.Engine {
	if modelName == "" {
		modelName = s.settings.RAG.Model
	}
	return rag.NewEngine(
		s.chatClient(),
		modelName,
		rag.NewContextBuilder(s.orch.Store(), s.orch.Embedder()),
		s.orch.Prompts(),
	)
}

// ListMedia enumerates indexed media.
func (s *Service) ListMedia(ctx context.Context) ([]model.IndexedMedia, error) {
	return s.orch.Store().ListMedia(ctx)
}

// GetMedia returns one media's aggregate view, nil when unknown.
func (s *Service) GetMedia(ctx context.Context, mediaID string) (*model.IndexedMedia, error) {
	return s.orch.Store().GetMedia(ctx, mediaID)
}

// GetDocuments returns a media's stored chunks in order.
func (s *Service) GetDocuments(ctx context.Context, mediaID string) ([]model.Document, error) {
	return s.orch.Store().GetByMedia(ctx, mediaID)
}

// TranscriptText renders a media's indexed chunks as a timestamped
// transcript.
func (s *Service) TranscriptText(ctx context.Context, mediaID string) (string, error) {
	docs, err := s.orch.Store().GetByMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", model.Errf(model.KindInvalidInput, "media not found: %s", mediaID)
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ChunkOrder < docs[j].ChunkOrder })

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", docs[0].MediaTitle)
	for _, d := range docs {
		fmt.Fprintf(&b, "\n[%s] %s\n", d.FormatTimestamp(), d.Content)
	}
	return b.String(), nil
}

// StoredTranscript fetches the raw transcript kept for rechunking, nil when
// absent.
func (s *Service) StoredTranscript(ctx context.Context, mediaID string) (*model.StoredTranscript, error) {
	return s.orch.Store().GetTranscript(ctx, mediaID)
}

func (s *Service) chatClient() *openai.Client {
	cfg := openai.DefaultConfig(s.settings.OpenAI.APIKey)
	if s.settings.OpenAI.BaseURL != "" {
		cfg.BaseURL = s.settings.OpenAI.BaseURL
	}
	return openai.NewClientWithConfig(cfg)
}
