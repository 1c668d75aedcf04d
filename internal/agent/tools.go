// Package agent exposes the retrieval primitives as LLM tools and drives a
// bounded tool-call loop over them.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"hark/internal/model"
)

const (
	searchDefaultLimit   = 5
	searchScoreThreshold = 0.3
	searchSnippetChars   = 500
)

// ToolContext executes agent tools against the store and embedder.
type ToolContext struct {
	store    model.Store
	embedder model.Embedder
}

// NewToolContext returns a tool executor.
func NewToolContext(store model.Store, embedder model.Embedder) *ToolContext {
	return &ToolContext{store: store, embedder: embedder}
}

// Execute dispatches one named tool call. Errors returned here are surfaced
// to the model as text, never out of the agent loop.
func (t *ToolContext) Execute(ctx context.Context, name, arguments string) (string, error) {
	var args struct {
		Query        string  `json:"query"`
		Limit        int     `json:"limit"`
		MediaID      string  `json:"media_id"`
		StartSeconds float64 `json:"start_seconds"`
		EndSeconds   float64 `json:"end_seconds"`
	}
	if strings.TrimSpace(arguments) != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", model.Wrap(model.KindAgent, err, "invalid tool arguments")
		}
	}

	switch name {
	case "search":
		if args.Query == "" {
			return "", model.Errf(model.KindAgent, "missing 'query' argument")
		}
		if args.Limit <= 0 {
			args.Limit = searchDefaultLimit
		}
		return t.search(ctx, args.Query, args.Limit)
	case "get_transcript":
		if args.MediaID == "" {
			return "", model.Errf(model.KindAgent, "missing 'media_id' argument")
		}
		return t.getTranscript(ctx, args.MediaID)
	case "get_segment":
		if args.MediaID == "" {
			return "", model.Errf(model.KindAgent, "missing 'media_id' argument")
		}
		return t.getSegment(ctx, args.MediaID, args.StartSeconds, args.EndSeconds)
	case "list_videos":
		return t.listVideos(ctx)
	case "get_video_info":
		if args.MediaID == "" {
			return "", model.Errf(model.KindAgent, "missing 'media_id' argument")
		}
		return t.getVideoInfo(ctx, args.MediaID)
	default:
		return "", model.Errf(model.KindAgent, "unknown tool: %s", name)
	}
}

func (t *ToolContext) search(ctx context.Context, query string, limit int) (string, error) {
	vec, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return "", err
	}
	results, err := t.store.SearchWithThreshold(ctx, vec, limit, searchScoreThreshold)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No relevant results found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results:\n", len(results))
	for i, r := range results {
		content := r.Document.Content
		if len(content) > searchSnippetChars {
			content = content[:searchSnippetChars]
		}
		fmt.Fprintf(&b, "\n%d. [%s] %s @ %s\n   %s\n",
			i+1, r.Document.MediaID, r.Document.MediaTitle, r.Document.FormatTimestamp(), content)
	}
	return b.String(), nil
}

func (t *ToolContext) getTranscript(ctx context.Context, mediaID string) (string, error) {
	docs, err := t.store.GetByMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", model.Errf(model.KindAgent, "media not found: %s", mediaID)
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ChunkOrder < docs[j].ChunkOrder })

	var duration float64
	for _, d := range docs {
		if d.EndSeconds > duration {
			duration = d.EndSeconds
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\nDuration: %.0f seconds\n", docs[0].MediaTitle, duration)
	for _, d := range docs {
		fmt.Fprintf(&b, "\n[%s] %s\n", d.FormatTimestamp(), d.Content)
	}
	return b.String(), nil
}

func (t *ToolContext) getSegment(ctx context.Context, mediaID string, start, end float64) (string, error) {
	docs, err := t.store.GetByMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", model.Errf(model.KindAgent, "media not found: %s", mediaID)
	}

	var parts []string
	for _, d := range docs {
		if d.StartSeconds < end && d.EndSeconds > start {
			parts = append(parts, fmt.Sprintf("[%s - %s] %s",
				d.FormatTimestamp(), model.FormatTimestamp(d.EndSeconds), d.Content))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("No content found between %.0f and %.0f seconds.", start, end), nil
	}
	return strings.Join(parts, "\n\n"), nil
}

func (t *ToolContext) listVideos(ctx context.Context) (string, error) {
	media, err := t.store.ListMedia(ctx)
	if err != nil {
		return "", err
	}
	if len(media) == 0 {
		return "No media indexed yet.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Indexed media (%d):\n", len(media))
	for _, m := range media {
		fmt.Fprintf(&b, "\n- %s (ID: %s, %d chunks, %.0fs)",
			m.MediaTitle, m.MediaID, m.ChunkCount, m.TotalDurationSeconds)
	}
	return b.String(), nil
}

func (t *ToolContext) getVideoInfo(ctx context.Context, mediaID string) (string, error) {
	m, err := t.store.GetMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", model.Errf(model.KindAgent, "media not found: %s", mediaID)
	}
	return fmt.Sprintf("Media: %s\nID: %s\nChunks: %d\nDuration: %.0f seconds\nIndexed: %s",
		m.MediaTitle, m.MediaID, m.ChunkCount, m.TotalDurationSeconds,
		m.IndexedAt.Format("2006-01-02 15:04:05")), nil
}

// Definitions returns the tool catalogue handed to the chat model.
func Definitions() []openai.Tool {
	return []openai.Tool{
		functionTool("search",
			"Search the knowledge base for relevant content. Use this when you need to find specific information across all media.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "The search query"},
					"limit": map[string]any{"type": "integer", "description": "Maximum number of results (default: 5)", "default": 5},
				},
				"required": []string{"query"},
			}),
		functionTool("get_transcript",
			"Get the full transcript of a media item. Use this when you need complete context, like for summaries or comprehensive analysis.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"media_id": map[string]any{"type": "string", "description": "The media ID"},
				},
				"required": []string{"media_id"},
			}),
		functionTool("get_segment",
			"Get a specific time range from a media transcript. Use this when you need content from a particular part.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"media_id":      map[string]any{"type": "string", "description": "The media ID"},
					"start_seconds": map[string]any{"type": "number", "description": "Start time in seconds"},
					"end_seconds":   map[string]any{"type": "number", "description": "End time in seconds"},
				},
				"required": []string{"media_id", "start_seconds", "end_seconds"},
			}),
		functionTool("list_videos",
			"List all indexed media in the knowledge base. Use this to see what content is available.",
			map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}),
		functionTool("get_video_info",
			"Get metadata about a specific media item (title, duration, chunk count).",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"media_id": map[string]any{"type": "string", "description": "The media ID"},
				},
				"required": []string{"media_id"},
			}),
	}
}

func functionTool(name, description string, parameters map[string]any) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}
