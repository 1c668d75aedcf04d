package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"hark/internal/model"
	"hark/internal/rag"
)

// Backend is the slice of the application service the MCP tools call.
type Backend interface {
	ProcessMedia(ctx context.Context, input string, force bool) (model.ProcessResult, error)
	Search(ctx context.Context, query string, limit int, minScore float32) ([]model.ContextChunk, error)
	Ask(ctx context.Context, question string, maxChunks int, modelName string) (rag.Response, error)
	ListMedia(ctx context.Context) ([]model.IndexedMedia, error)
	TranscriptText(ctx context.Context, mediaID string) (string, error)
}

// Server reads one JSON-RPC request per line from in and writes one
// response per line to out. Logs go to stderr so stdout stays clean for the
// protocol. The backend is constructed lazily on initialize so a broken
// configuration surfaces as an -32000 error instead of a startup crash.
type Server struct {
	name       string
	version    string
	newBackend func() (Backend, error)
	backend    Backend
	in         io.Reader
	out        io.Writer
}

// NewServer returns a stdio MCP server.
func NewServer(name, version string, in io.Reader, out io.Writer, newBackend func() (Backend, error)) *Server {
	return &Server{
		name:       name,
		version:    version,
		newBackend: newBackend,
		in:         in,
		out:        out,
	}
}

// Run serves until in closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("mcp server starting")

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			slog.Error("failed to parse request", "error", err)
			if err := s.write(errorResponse(nil, codeParseError, "Parse error")); err != nil {
				return err
			}
			continue
		}

		if err := s.write(s.handle(ctx, req)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) write(resp rpcResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, string(data))
	return err
}

func (s *Server) handle(ctx context.Context, req rpcRequest) rpcResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		// notification; answered with an empty success object
		return successResponse(req.ID, map[string]any{})
	case "tools/list":
		return successResponse(req.ID, toolsListResult{Tools: toolCatalogue()})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req rpcRequest) rpcResponse {
	if s.backend == nil {
		backend, err := s.newBackend()
		if err != nil {
			slog.Error("backend initialization failed", "error", err)
			return errorResponse(req.ID, codeInitFailure, fmt.Sprintf("Init failed: %v", err))
		}
		s.backend = backend
	}

	return successResponse(req.ID, initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    serverCapabilities{Tools: toolsCapability{ListChanged: false}},
		ServerInfo:      serverInfo{Name: s.name, Version: s.version},
	})
}

func (s *Server) handleToolsCall(ctx context.Context, req rpcRequest) rpcResponse {
	var params toolCallParams
	if len(req.Params) == 0 {
		return errorResponse(req.ID, codeInvalidParams, "Missing params")
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("Invalid params: %v", err))
	}
	if s.backend == nil {
		return errorResponse(req.ID, codeInitFailure, "Server not initialized")
	}

	var args struct {
		Input     string  `json:"input"`
		Force     bool    `json:"force"`
		Query     string  `json:"query"`
		Limit     int     `json:"limit"`
		MinScore  float32 `json:"min_score"`
		Question  string  `json:"question"`
		MaxChunks int     `json:"max_chunks"`
		MediaID   string  `json:"media_id"`
	}
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("Invalid arguments: %v", err))
		}
	}

	var result toolCallResult
	switch params.Name {
	case "transcribe":
		result = s.toolTranscribe(ctx, args.Input, args.Force)
	case "search":
		result = s.toolSearch(ctx, args.Query, args.Limit, args.MinScore)
	case "ask":
		result = s.toolAsk(ctx, args.Question, args.MaxChunks)
	case "list_media":
		result = s.toolListMedia(ctx)
	case "get_transcript":
		result = s.toolGetTranscript(ctx, args.MediaID)
	default:
		result = errorResult(fmt.Sprintf("Unknown tool: %s", params.Name))
	}
	return successResponse(req.ID, result)
}

func (s *Server) toolTranscribe(ctx context.Context, input string, force bool) toolCallResult {
	if input == "" {
		return errorResult("Missing 'input' argument")
	}
	res, err := s.backend.ProcessMedia(ctx, input, force)
	if err != nil {
		return errorResult(fmt.Sprintf("Transcription failed: %v", err))
	}
	if res.Skipped {
		return textResult(fmt.Sprintf("%s is already indexed. Pass force=true to re-process.", res.MediaID))
	}
	return textResult(fmt.Sprintf("Indexed %q (%s): %d chunks.", res.Title, res.MediaID, res.ChunksIndexed))
}

func (s *Server) toolSearch(ctx context.Context, query string, limit int, minScore float32) toolCallResult {
	if query == "" {
		return errorResult("Missing 'query' argument")
	}
	if minScore <= 0 {
		minScore = 0.3
	}
	chunks, err := s.backend.Search(ctx, query, limit, minScore)
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %v", err))
	}
	if len(chunks) == 0 {
		return textResult("No results found.")
	}

	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "%d. %s @ %s (score %.2f)\n%s\n\n", i+1, c.MediaTitle, c.Timestamp, c.Score, c.Content)
	}
	return textResult(strings.TrimSpace(b.String()))
}

func (s *Server) toolAsk(ctx context.Context, question string, maxChunks int) toolCallResult {
	if question == "" {
		return errorResult("Missing 'question' argument")
	}
	resp, err := s.backend.Ask(ctx, question, maxChunks, "")
	if err != nil {
		return errorResult(fmt.Sprintf("Ask failed: %v", err))
	}

	text := resp.Answer
	if len(resp.Sources) > 0 {
		text += "\n\nSources:\n" + rag.FormatContextForDisplay(resp.Sources)
	}
	return textResult(text)
}

func (s *Server) toolListMedia(ctx context.Context) toolCallResult {
	media, err := s.backend.ListMedia(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("List failed: %v", err))
	}
	if len(media) == 0 {
		return textResult("No media indexed yet.")
	}

	var b strings.Builder
	for _, m := range media {
		fmt.Fprintf(&b, "- %s (ID: %s, %d chunks, %.0fs)\n", m.MediaTitle, m.MediaID, m.ChunkCount, m.TotalDurationSeconds)
	}
	return textResult(strings.TrimSpace(b.String()))
}

func (s *Server) toolGetTranscript(ctx context.Context, mediaID string) toolCallResult {
	if mediaID == "" {
		return errorResult("Missing 'media_id' argument")
	}
	text, err := s.backend.TranscriptText(ctx, mediaID)
	if err != nil {
		return errorResult(fmt.Sprintf("Transcript lookup failed: %v", err))
	}
	return textResult(text)
}
