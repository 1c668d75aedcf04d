package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"hark/internal/model"
)

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "hark", "config.toml")
}

// Load builds settings with precedence: defaults → config.toml → env vars.
// A missing config file is not an error; a malformed one is.
func Load(path string) (Settings, error) {
	// .env files never override variables already present in the process
	// environment (godotenv.Load semantics).
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, model.Wrap(model.KindConfig, err, "malformed config file %s", path)
		}
	} else if !os.IsNotExist(err) {
		return cfg, model.Wrap(model.KindConfig, err, "read config file %s", path)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Settings) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("HARK_DATA_DIR"); v != "" {
		cfg.General.DataDir = v
	}
	if v := os.Getenv("HARK_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
}

// Save writes the settings as TOML, creating parent directories as needed.
// The API key is not persisted; it stays in the environment.
func Save(cfg Settings, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.Wrap(model.KindConfig, err, "create config directory")
	}

	persisted := cfg
	persisted.OpenAI.APIKey = ""

	f, err := os.Create(path)
	if err != nil {
		return model.Wrap(model.KindConfig, err, "write config file %s", path)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(persisted); err != nil {
		return model.Wrap(model.KindConfig, err, "encode config")
	}
	return nil
}

// Set updates one dotted key (e.g. "chunking.strategy") in place. Values are
// coerced to the field's type.
func Set(cfg *Settings, key, value string) error {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "general.data_dir":
		cfg.General.DataDir = value
	case "general.temp_dir":
		cfg.General.TempDir = value
	case "general.log_level":
		cfg.General.LogLevel = value
	case "openai.base_url":
		cfg.OpenAI.BaseURL = value
	case "transcription.provider":
		switch TranscriptionProvider(value) {
		case ProviderWhisper, ProviderFusion:
			cfg.Transcription.Provider = TranscriptionProvider(value)
		default:
			return model.Errf(model.KindConfig, "unknown transcription provider %q (whisper or fusion)", value)
		}
	case "transcription.timestamp_model":
		cfg.Transcription.TimestampModel = value
	case "transcription.text_model":
		cfg.Transcription.TextModel = value
	case "transcription.fusion_model":
		cfg.Transcription.FusionModel = value
	case "transcription.segment_seconds":
		return setInt(&cfg.Transcription.SegmentSeconds, key, value)
	case "transcription.max_concurrent_segments":
		return setInt(&cfg.Transcription.MaxConcurrentSegments, key, value)
	case "transcription.max_duration_seconds":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return model.Errf(model.KindConfig, "%s: not an integer: %q", key, value)
		}
		cfg.Transcription.MaxDurationSeconds = uint(n)
	case "embedding.model":
		cfg.Embedding.Model = value
	case "embedding.dimensions":
		return setInt(&cfg.Embedding.Dimensions, key, value)
	case "chunking.strategy":
		switch value {
		case "semantic", "temporal", "hybrid":
			cfg.Chunking.Strategy = value
		default:
			return model.Errf(model.KindConfig, "unknown chunking strategy %q (semantic, temporal or hybrid)", value)
		}
	case "chunking.target_chunk_seconds":
		return setInt(&cfg.Chunking.TargetChunkSeconds, key, value)
	case "chunking.min_chunk_seconds":
		return setInt(&cfg.Chunking.MinChunkSeconds, key, value)
	case "chunking.max_chunk_seconds":
		return setInt(&cfg.Chunking.MaxChunkSeconds, key, value)
	case "chunking.model":
		cfg.Chunking.Model = value
	case "store.sqlite_path":
		cfg.Store.SQLitePath = value
	case "rag.model":
		cfg.RAG.Model = value
	case "rag.max_context_chunks":
		return setInt(&cfg.RAG.MaxContextChunks, key, value)
	case "agent.model":
		cfg.Agent.Model = value
	case "agent.max_iterations":
		return setInt(&cfg.Agent.MaxIterations, key, value)
	case "prompts.custom_dir":
		cfg.Prompts.CustomDir = value
	default:
		return model.Errf(model.KindConfig, "unknown config key %q", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return model.Errf(model.KindConfig, "%s: not an integer: %q", key, value)
	}
	*dst = n
	return nil
}

// Validate checks the invariants the pipeline relies on before any work
// starts. Preferring a pre-flight failure to a partial failure mid-pipeline.
func Validate(cfg Settings) error {
	if cfg.Transcription.SegmentSeconds <= 0 {
		return model.Errf(model.KindConfig, "transcription.segment_seconds must be positive")
	}
	if cfg.Transcription.MaxConcurrentSegments <= 0 {
		return model.Errf(model.KindConfig, "transcription.max_concurrent_segments must be positive")
	}
	if cfg.Embedding.Dimensions <= 0 {
		return model.Errf(model.KindConfig, "embedding.dimensions must be positive")
	}
	if cfg.Chunking.MinChunkSeconds < 0 || cfg.Chunking.MaxChunkSeconds < cfg.Chunking.MinChunkSeconds {
		return model.Errf(model.KindConfig, "chunking durations must satisfy 0 <= min <= max")
	}
	return nil
}

// RequireAPIKey fails when no provider credential is configured.
func RequireAPIKey(cfg Settings) error {
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return model.Errf(model.KindConfig, "OPENAI_API_KEY is not set; export it or add it to a .env file")
	}
	return nil
}

// Describe renders the effective settings for `config show`.
func Describe(cfg Settings) string {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	shown := cfg
	if shown.OpenAI.APIKey != "" {
		shown.OpenAI.APIKey = "(set)"
	}
	if err := enc.Encode(shown); err != nil {
		return fmt.Sprintf("error rendering config: %v", err)
	}
	return b.String()
}
