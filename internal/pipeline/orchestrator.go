// Package pipeline coordinates the end-to-end flow: resolve input, fetch
// metadata, extract audio, transcribe, chunk, embed and index.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"

	"hark/internal/chunk"
	"hark/internal/config"
	"hark/internal/embed"
	"hark/internal/media"
	"hark/internal/model"
	"hark/internal/source"
	"hark/internal/store"
	"hark/internal/transcribe"
)

// parseInputFunc resolves user input to a source and media id. Injectable
// for tests.
type parseInputFunc func(input string) (model.Source, string, error)

// Orchestrator drives the processing pipeline. It owns the audio temp dir
// for the lifetime of one media processing; downloaded audio is removed
// best-effort after indexing.
type Orchestrator struct {
	settings    config.Settings
	prompts     config.Prompts
	tools       *media.Tools
	transcriber model.Transcriber
	chunker     model.Chunker
	embedder    model.Embedder
	store       model.Store
	parseInput  parseInputFunc
}

// New wires an orchestrator from settings: OpenAI client, fusion engine in
// whisper or fusion mode, chunker per configured strategy, SQLite store.
func New(settings config.Settings) (*Orchestrator, error) {
	prompts, err := config.LoadPrompts(settings.Prompts.CustomDir, settings.Prompts.Variables)
	if err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(settings.OpenAI.APIKey)
	if settings.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = settings.OpenAI.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	tools := media.NewTools()
	st, err := store.NewSQLiteStore(settings.SQLitePath())
	if err != nil {
		return nil, err
	}

	if settings.Transcription.Provider == config.ProviderFusion {
		slog.Info("using fusion transcription",
			"timestamp_model", settings.Transcription.TimestampModel,
			"text_model", settings.Transcription.TextModel,
			"fusion_model", settings.Transcription.FusionModel)
	} else {
		slog.Info("using whisper transcription with LLM cleanup",
			"model", settings.Transcription.TimestampModel,
			"fusion_model", settings.Transcription.FusionModel)
	}

	strategy := chunk.ParseStrategy(settings.Chunking.Strategy)
	return &Orchestrator{
		settings:    settings,
		prompts:     prompts,
		tools:       tools,
		transcriber: transcribe.NewProcessor(client, tools, settings, prompts),
		chunker:     chunk.New(strategy, client, settings.Chunking.Model, prompts),
		embedder:    embed.NewOpenAIEmbedder(client, settings.Embedding.Model, settings.Embedding.Dimensions),
		store:       st,
		parseInput: func(input string) (model.Source, string, error) {
			return source.ParseInput(tools, input)
		},
	}, nil
}

// NewWithComponents wires an orchestrator from caller-supplied parts. Used
// by tests and by shells that share a store.
func NewWithComponents(
	settings config.Settings,
	prompts config.Prompts,
	tools *media.Tools,
	transcriber model.Transcriber,
	chunker model.Chunker,
	embedder model.Embedder,
	st model.Store,
	parse parseInputFunc,
) *Orchestrator {
	return &Orchestrator{
		settings:    settings,
		prompts:     prompts,
		tools:       tools,
		transcriber: transcriber,
		chunker:     chunker,
		embedder:    embedder,
		store:       st,
		parseInput:  parse,
	}
}

// Store exposes the underlying store to the retrieval surfaces.
func (o *Orchestrator) Store() model.Store { return o.store }

// Embedder exposes the embedder to the retrieval surfaces.
func (o *Orchestrator) Embedder() model.Embedder { return o.embedder }

// Settings returns the active configuration.
func (o *Orchestrator) Settings() config.Settings { return o.settings }

// Prompts returns the loaded prompt templates.
func (o *Orchestrator) Prompts() config.Prompts { return o.prompts }

// Close releases the store.
func (o *Orchestrator) Close() error { return o.store.Close() }

// ProcessMedia runs the full pipeline for one input. When the media is
// already indexed and force is false the pipeline is skipped entirely.
func (o *Orchestrator) ProcessMedia(ctx context.Context, input string, force bool) (model.ProcessResult, error) {
	src, mediaID, err := o.parseInput(input)
	if err != nil {
		return model.ProcessResult{}, err
	}

	if !force {
		indexed, err := o.store.IsIndexed(ctx, mediaID)
		if err != nil {
			return model.ProcessResult{}, err
		}
		if indexed {
			slog.Info("media already indexed, skipping", "media", mediaID)
			return model.ProcessResult{MediaID: mediaID, Title: "Already indexed", Skipped: true}, nil
		}
	}

	ref, err := src.FetchMetadata(ctx, mediaID)
	if err != nil {
		return model.ProcessResult{}, err
	}
	slog.Info("processing media", "media", ref.ID, "title", ref.Title)

	if max := o.settings.Transcription.MaxDurationSeconds; max > 0 && ref.DurationSeconds > max {
		return model.ProcessResult{}, model.Errf(model.KindInvalidInput,
			"media duration (%d seconds) exceeds maximum (%d seconds)", ref.DurationSeconds, max)
	}

	audioDir := filepath.Join(o.settings.TempDir(), "audio")
	audioPath, err := o.tools.ExtractAudio(ctx, ref.SourceURL, ref.ID, audioDir)
	if err != nil {
		return model.ProcessResult{}, err
	}

	transcript, err := o.transcriber.Transcribe(ctx, audioPath, "")
	if err != nil {
		return model.ProcessResult{}, err
	}
	transcript.MediaID = ref.ID

	// best effort: losing the raw transcript only costs the rechunk path
	if err := o.store.StoreTranscript(ctx, ref.ID, ref.Title, transcript); err != nil {
		slog.Warn("failed to store transcript, rechunking won't be available", "media", ref.ID, "error", err)
	}

	indexed, err := o.chunkAndIndex(ctx, ref, transcript)
	if err != nil {
		return model.ProcessResult{}, err
	}

	if err := os.Remove(audioPath); err != nil {
		slog.Warn("failed to clean up audio file", "path", audioPath, "error", err)
	}

	return model.ProcessResult{MediaID: ref.ID, Title: ref.Title, ChunksIndexed: indexed}, nil
}

// chunkAndIndex chunks a transcript, embeds the chunks and replaces the
// media's documents in one delete-then-batch-write window.
func (o *Orchestrator) chunkAndIndex(ctx context.Context, ref model.MediaRef, transcript model.Transcript) (int, error) {
	cfg := model.ChunkConfig{
		TargetSeconds: o.settings.Chunking.TargetChunkSeconds,
		MinSeconds:    o.settings.Chunking.MinChunkSeconds,
		MaxSeconds:    o.settings.Chunking.MaxChunkSeconds,
	}
	chunks, err := o.chunker.Chunk(ctx, transcript, cfg)
	if err != nil {
		return 0, err
	}
	slog.Info("chunked transcript", "media", ref.ID, "chunks", len(chunks))
	if len(chunks) == 0 {
		_, err := o.store.DeleteByMedia(ctx, ref.ID)
		return 0, err
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Content)
	}
	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	docs := make([]model.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, model.NewDocument(ref, c, vectors[i]))
	}

	if _, err := o.store.DeleteByMedia(ctx, ref.ID); err != nil {
		return 0, err
	}
	return o.store.UpsertBatch(ctx, docs)
}

// TranscribeOnly resolves input, extracts audio and transcribes it without
// touching the index. Used by the transcript export path.
func (o *Orchestrator) TranscribeOnly(ctx context.Context, input string) (model.MediaRef, model.Transcript, error) {
	src, mediaID, err := o.parseInput(input)
	if err != nil {
		return model.MediaRef{}, model.Transcript{}, err
	}
	ref, err := src.FetchMetadata(ctx, mediaID)
	if err != nil {
		return model.MediaRef{}, model.Transcript{}, err
	}

	audioDir := filepath.Join(o.settings.TempDir(), "audio")
	audioPath, err := o.tools.ExtractAudio(ctx, ref.SourceURL, ref.ID, audioDir)
	if err != nil {
		return model.MediaRef{}, model.Transcript{}, err
	}

	transcript, err := o.transcriber.Transcribe(ctx, audioPath, "")
	if err != nil {
		return model.MediaRef{}, model.Transcript{}, err
	}
	transcript.MediaID = ref.ID
	return ref, transcript, nil
}

// ChunkTranscript chunks a transcript with the configured strategy and
// bounds.
func (o *Orchestrator) ChunkTranscript(ctx context.Context, transcript model.Transcript) ([]model.ContentChunk, error) {
	return o.chunker.Chunk(ctx, transcript, model.ChunkConfig{
		TargetSeconds: o.settings.Chunking.TargetChunkSeconds,
		MinSeconds:    o.settings.Chunking.MinChunkSeconds,
		MaxSeconds:    o.settings.Chunking.MaxChunkSeconds,
	})
}

// EmbedChunks embeds chunk contents in order.
func (o *Orchestrator) EmbedChunks(ctx context.Context, chunks []model.ContentChunk) ([][]float32, error) {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Content)
	}
	return o.embedder.EmbedBatch(ctx, texts)
}

// RechunkMedia re-runs chunking and embedding from the stored transcript,
// without downloading or transcribing again.
func (o *Orchestrator) RechunkMedia(ctx context.Context, mediaID string) (model.ProcessResult, error) {
	st, err := o.store.GetTranscript(ctx, mediaID)
	if err != nil {
		return model.ProcessResult{}, err
	}
	if st == nil {
		return model.ProcessResult{}, model.Errf(model.KindInvalidInput,
			"no stored transcript for %q; re-run transcribe with --force", mediaID)
	}

	ref := model.MediaRef{ID: mediaID, Title: st.MediaTitle, SourceKind: kindForID(mediaID)}
	indexed, err := o.chunkAndIndex(ctx, ref, st.Transcript)
	if err != nil {
		return model.ProcessResult{}, err
	}
	return model.ProcessResult{MediaID: mediaID, Title: st.MediaTitle, ChunksIndexed: indexed}, nil
}

// ListRechunkable enumerates media with stored transcripts.
func (o *Orchestrator) ListRechunkable(ctx context.Context) ([]model.StoredTranscript, error) {
	return o.store.ListTranscripts(ctx)
}

// ProcessPlaylist lists a playlist, channel or directory and processes each
// item in turn. Per-item failures are reported but do not stop the batch.
func (o *Orchestrator) ProcessPlaylist(ctx context.Context, input string, limit int, force bool) ([]model.ProcessResult, []error) {
	src, ok := source.Detect(o.tools, input)
	if !ok {
		return nil, []error{model.Errf(model.KindInvalidInput, "could not parse input: %s", input)}
	}

	refs, err := src.List(ctx, input, limit)
	if err != nil {
		return nil, []error{err}
	}

	var (
		results []model.ProcessResult
		errs    []error
	)
	for _, ref := range refs {
		// local ids are derived from paths and are not re-parseable; feed
		// the path back instead
		itemInput := ref.ID
		if ref.SourceKind == model.SourceLocal {
			itemInput = ref.SourceURL
		}
		res, err := o.ProcessMedia(ctx, itemInput, force)
		if err != nil {
			slog.Warn("playlist item failed", "media", ref.ID, "error", err)
			errs = append(errs, model.Wrap(model.KindSource, err, "item %s", ref.ID))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

func kindForID(mediaID string) model.SourceKind {
	if len(mediaID) >= 6 && mediaID[:6] == "local_" {
		return model.SourceLocal
	}
	return model.SourceYouTube
}

// Preflight verifies the configuration and external binaries before any
// pipeline work starts.
func Preflight(settings config.Settings, needsDownloader bool) error {
	if err := config.Validate(settings); err != nil {
		return err
	}
	if err := config.RequireAPIKey(settings); err != nil {
		return err
	}
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if !media.LookPath(tool) {
			return model.ToolNotFound(tool)
		}
	}
	if needsDownloader && !media.LookPath("yt-dlp") {
		return model.ToolNotFound("yt-dlp")
	}
	return nil
}
