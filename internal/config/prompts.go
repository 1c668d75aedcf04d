package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"hark/internal/model"
)

// Prompts is the full set of LLM prompt templates. Any of them can be
// overridden by a TOML file in the custom prompts directory; {{name}}
// placeholders are substituted at render time.
type Prompts struct {
	Fusion    FusionPrompts   `toml:"fusion"`
	Chunking  ChunkingPrompts `toml:"chunking"`
	RAG       RagPrompts      `toml:"rag"`
	Variables map[string]string
}

// FusionPrompts drive the transcription fusion step.
type FusionPrompts struct {
	System string `toml:"system"`
}

// ChunkingPrompts drive semantic chunking.
type ChunkingPrompts struct {
	System string `toml:"system"`
	User   string `toml:"user"`
}

// RagPrompts drive answer generation.
type RagPrompts struct {
	System     string `toml:"system"`
	User       string `toml:"user"`
	ChatSystem string `toml:"chat_system"`
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Fusion: FusionPrompts{
			System: `You are a transcription cleanup and fusion expert. You process word-level timestamps, optionally combined with text from a secondary transcription model.

Input:
- Word timestamps (JSON array with word, start, end)
- Text transcription (from the secondary model, or reconstructed from the words)

Output a JSON object with a "segments" array. Each segment has:
- "text": the cleaned transcribed text for this segment
- "start_seconds": start time taken from the word timestamps
- "end_seconds": end time taken from the word timestamps

Rules:
- Group words into natural segments (sentences or phrases, typically 5-15 seconds each)
- If two transcripts are provided, compare them; neither is always correct
- Never invent content that is not present in the transcripts
- Segments must cover the full duration of the audio and must not overlap
- Ensure proper punctuation and capitalization`,
		},
		Chunking: ChunkingPrompts{
			System: `You are a content analyst. You read timed transcripts and identify logical content sections while filtering out filler.

When analyzing a transcript:
1. Look for natural topic transitions
2. Group related discussions together
3. Identify distinct segments covering specific topics

Exclude from chunk boundaries: subscription/like requests, generic intros and outros, self-promotion, sponsor reads. Chunks should contain only the substantive content.

Output your analysis as a JSON array of sections.`,
			User: `Analyze this transcript and identify logical content sections.

Title: {{title}}

Transcript:
{{transcript}}

For each section provide:
- "title": a brief descriptive title (3-8 words)
- "start_seconds": start timestamp in seconds
- "end_seconds": end timestamp in seconds
- "summary": one sentence describing the content

Target section length: {{target_duration}} seconds (minimum {{min_duration}}, maximum {{max_duration}}).

Respond with a JSON array of section objects only.`,
		},
		RAG: RagPrompts{
			System: `You are a helpful assistant that answers questions based on transcribed audio content from the user's library.

Guidelines:
- Answer using only the provided context
- Always cite sources with titles and timestamps, as [Title @ MM:SS]
- If the context does not contain relevant information, say so clearly
- Be concise but thorough`,
			User: `Question: {{question}}

Relevant excerpts from the library:

{{context}}

Answer the question based on the above context.`,
			ChatSystem: `You are a helpful assistant for exploring transcribed audio content. Answer using the context provided with each message, remember earlier turns for follow-ups, and cite sources as [Title @ MM:SS]. If asked about something not in the library, say so honestly.`,
		},
		Variables: map[string]string{},
	}
}

// LoadPrompts returns the defaults overlaid with any TOML override files
// (fusion.toml, chunking.toml, rag.toml) found in customDir.
func LoadPrompts(customDir string, variables map[string]string) (Prompts, error) {
	p := DefaultPrompts()
	if variables != nil {
		p.Variables = variables
	}
	if customDir == "" {
		return p, nil
	}

	dir := ExpandPath(customDir)
	if err := overlay(filepath.Join(dir, "fusion.toml"), &p.Fusion); err != nil {
		return p, err
	}
	if err := overlay(filepath.Join(dir, "chunking.toml"), &p.Chunking); err != nil {
		return p, err
	}
	if err := overlay(filepath.Join(dir, "rag.toml"), &p.RAG); err != nil {
		return p, err
	}
	return p, nil
}

func overlay(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return model.Wrap(model.KindConfig, err, "read prompt override %s", path)
	}
	if err := toml.Unmarshal(data, dst); err != nil {
		return model.Wrap(model.KindConfig, err, "malformed prompt override %s", path)
	}
	return nil
}

// Render substitutes {{name}} placeholders. Explicit vars take precedence
// over the configured custom variables.
func (p Prompts) Render(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	for k, v := range p.Variables {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
