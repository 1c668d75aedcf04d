package mcp

func toolCatalogue() []Tool {
	return []Tool{
		{
			Name: "transcribe",
			Description: "Transcribe audio or video content from a YouTube URL or local file. " +
				"Returns the indexing result. Use this to add new content to the knowledge base.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"input": map[string]any{
						"type":        "string",
						"description": "YouTube URL, video ID, or local file path",
					},
					"force": map[string]any{
						"type":        "boolean",
						"description": "Force re-processing even if already indexed",
						"default":     false,
					},
				},
				"required": []string{"input"},
			},
		},
		{
			Name: "search",
			Description: "Search the audio knowledge base for relevant content. " +
				"Returns matching segments with timestamps and relevance scores.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results",
						"default":     5,
					},
					"min_score": map[string]any{
						"type":        "number",
						"description": "Minimum similarity score (0.0-1.0)",
						"default":     0.3,
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name: "ask",
			Description: "Ask a question and get an AI-generated answer based on the audio knowledge base. " +
				"The answer includes citations with titles and timestamps.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question": map[string]any{
						"type":        "string",
						"description": "The question to ask",
					},
					"max_chunks": map[string]any{
						"type":        "integer",
						"description": "Maximum context chunks to include",
						"default":     10,
					},
				},
				"required": []string{"question"},
			},
		},
		{
			Name:        "list_media",
			Description: "List all indexed audio/video content in the knowledge base.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "get_transcript",
			Description: "Get the full transcript of a specific indexed media item by its ID.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"media_id": map[string]any{
						"type":        "string",
						"description": "The media ID to get the transcript for",
					},
				},
				"required": []string{"media_id"},
			},
		},
	}
}
