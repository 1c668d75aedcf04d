package config

import (
	"os"
	"path/filepath"
	"strings"
)

// TranscriptionProvider selects how transcripts are produced.
type TranscriptionProvider string

const (
	// ProviderWhisper runs the timestamp model alone; the fusion LLM cleans
	// up the word stream into sentence segments.
	ProviderWhisper TranscriptionProvider = "whisper"
	// ProviderFusion adds a secondary text model and fuses both.
	ProviderFusion TranscriptionProvider = "fusion"
)

// Settings is the full resolved configuration.
// Precedence: CLI flags > env vars > config.toml > defaults.
type Settings struct {
	General       General       `toml:"general"`
	OpenAI        OpenAI        `toml:"openai"`
	Transcription Transcription `toml:"transcription"`
	Embedding     Embedding     `toml:"embedding"`
	Chunking      Chunking      `toml:"chunking"`
	Store         Store         `toml:"store"`
	RAG           RAG           `toml:"rag"`
	Agent         Agent         `toml:"agent"`
	Prompts       PromptConfig  `toml:"prompts"`
}

// General holds paths and logging.
type General struct {
	DataDir  string `toml:"data_dir"`
	TempDir  string `toml:"temp_dir"`
	LogLevel string `toml:"log_level"`
}

// OpenAI holds provider credentials. The key normally arrives via the
// OPENAI_API_KEY environment variable rather than the config file.
type OpenAI struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// Transcription configures the fusion engine.
type Transcription struct {
	Provider              TranscriptionProvider `toml:"provider"`
	TimestampModel        string                `toml:"timestamp_model"`
	TextModel             string                `toml:"text_model"`
	FusionModel           string                `toml:"fusion_model"`
	SegmentSeconds        int                   `toml:"segment_seconds"`
	MaxDurationSeconds    uint                  `toml:"max_duration_seconds"`
	MaxConcurrentSegments int                   `toml:"max_concurrent_segments"`
}

// Embedding configures the embedder.
type Embedding struct {
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
}

// Chunking configures transcript chunking.
type Chunking struct {
	Strategy           string `toml:"strategy"` // semantic | temporal | hybrid
	TargetChunkSeconds int    `toml:"target_chunk_seconds"`
	MinChunkSeconds    int    `toml:"min_chunk_seconds"`
	MaxChunkSeconds    int    `toml:"max_chunk_seconds"`
	Model              string `toml:"model"`
}

// Store configures persistence.
type Store struct {
	SQLitePath string `toml:"sqlite_path"`
}

// RAG configures retrieval-augmented answering.
type RAG struct {
	Model            string `toml:"model"`
	MaxContextChunks int    `toml:"max_context_chunks"`
}

// Agent configures the tool-call loop.
type Agent struct {
	Model         string `toml:"model"`
	MaxIterations int    `toml:"max_iterations"`
}

// PromptConfig points at optional prompt template overrides.
type PromptConfig struct {
	CustomDir string            `toml:"custom_dir"`
	Variables map[string]string `toml:"variables"`
}

// Default returns the built-in configuration.
func Default() Settings {
	return Settings{
		General: General{
			DataDir:  "~/.hark",
			TempDir:  filepath.Join(os.TempDir(), "hark"),
			LogLevel: "info",
		},
		OpenAI: OpenAI{},
		Transcription: Transcription{
			Provider:              ProviderWhisper,
			TimestampModel:        "whisper-1",
			TextModel:             "gpt-4o-transcribe",
			FusionModel:           "gpt-4.1",
			SegmentSeconds:        300,
			MaxDurationSeconds:    7200,
			MaxConcurrentSegments: 2,
		},
		Embedding: Embedding{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Chunking: Chunking{
			Strategy:           "semantic",
			TargetChunkSeconds: 180,
			MinChunkSeconds:    60,
			MaxChunkSeconds:    600,
			Model:              "gpt-4o-mini",
		},
		Store: Store{
			SQLitePath: "~/.hark/index.db",
		},
		RAG: RAG{
			Model:            "gpt-4o-mini",
			MaxContextChunks: 10,
		},
		Agent: Agent{
			Model:         "gpt-4o-mini",
			MaxIterations: 15,
		},
		Prompts: PromptConfig{Variables: map[string]string{}},
	}
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// DataDir returns the expanded data directory.
func (s Settings) DataDir() string { return ExpandPath(s.General.DataDir) }

// TempDir returns the expanded temp directory.
func (s Settings) TempDir() string { return ExpandPath(s.General.TempDir) }

// SQLitePath returns the expanded store path.
func (s Settings) SQLitePath() string { return ExpandPath(s.Store.SQLitePath) }

// HasTextModel reports whether fusion mode has a secondary text model.
func (s Settings) HasTextModel() bool {
	return s.Transcription.Provider == ProviderFusion && strings.TrimSpace(s.Transcription.TextModel) != ""
}
