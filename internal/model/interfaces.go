package model

import "context"

// Source resolves user input to media and enumerates collections. Detection
// order across sources is fixed by the caller; a bare 11-character string is
// deliberately treated as a YouTube id before a local path.
type Source interface {
	Kind() SourceKind
	CanHandle(input string) bool
	ExtractID(input string) (string, bool)
	FetchMetadata(ctx context.Context, id string) (MediaRef, error)
	List(ctx context.Context, source string, limit int) ([]MediaRef, error)
}

// Transcriber turns an audio file into a timed transcript. language may be
// empty for auto-detection.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (Transcript, error)
}

// Embedder maps text to fixed-dimension vectors. EmbedBatch preserves input
// order; every returned vector has length Dimensions().
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Store persists embedded chunks and raw transcripts and serves similarity
// search over them.
type Store interface {
	Upsert(ctx context.Context, doc Document) error
	UpsertBatch(ctx context.Context, docs []Document) (int, error)
	DeleteByMedia(ctx context.Context, mediaID string) (int, error)
	Search(ctx context.Context, query []float32, limit int) ([]SearchResult, error)
	SearchWithThreshold(ctx context.Context, query []float32, limit int, minScore float32) ([]SearchResult, error)
	ListMedia(ctx context.Context) ([]IndexedMedia, error)
	GetMedia(ctx context.Context, mediaID string) (*IndexedMedia, error)
	IsIndexed(ctx context.Context, mediaID string) (bool, error)
	GetByMedia(ctx context.Context, mediaID string) ([]Document, error)

	StoreTranscript(ctx context.Context, mediaID, title string, transcript Transcript) error
	GetTranscript(ctx context.Context, mediaID string) (*StoredTranscript, error)
	HasTranscript(ctx context.Context, mediaID string) (bool, error)
	ListTranscripts(ctx context.Context) ([]StoredTranscript, error)

	Close() error
}

// Chunker splits a transcript into content chunks under the given bounds.
type Chunker interface {
	Chunk(ctx context.Context, transcript Transcript, cfg ChunkConfig) ([]ContentChunk, error)
}

// ChunkConfig bounds chunk durations in seconds.
type ChunkConfig struct {
	TargetSeconds int
	MinSeconds    int
	MaxSeconds    int
}
