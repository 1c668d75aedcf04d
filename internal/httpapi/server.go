// Package httpapi exposes the pipeline and retrieval operations as a JSON
// HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"hark/internal/model"
	"hark/internal/rag"
)

// Backend is the slice of the application service the HTTP routes call.
type Backend interface {
	ProcessMedia(ctx context.Context, input string, force bool) (model.ProcessResult, error)
	Search(ctx context.Context, query string, limit int, minScore float32) ([]model.ContextChunk, error)
	Ask(ctx context.Context, question string, maxChunks int, modelName string) (rag.Response, error)
	ListMedia(ctx context.Context) ([]model.IndexedMedia, error)
	GetMedia(ctx context.Context, mediaID string) (*model.IndexedMedia, error)
	GetDocuments(ctx context.Context, mediaID string) ([]model.Document, error)
}

// Server is the HTTP shell.
type Server struct {
	backend Backend
}

// NewServer returns a server over the given backend.
func NewServer(backend Backend) *Server {
	return &Server{backend: backend}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	// detach request contexts so client disconnects do not cancel in-flight work
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(context.WithoutCancel(req.Context())))
		})
	})
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/transcribe", s.handleTranscribe).Methods(http.MethodPost)
	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	r.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	r.HandleFunc("/media", s.handleListMedia).Methods(http.MethodGet)
	r.HandleFunc("/media/{id}", s.handleGetMedia).Methods(http.MethodGet)
	return r
}

// ListenAndServe binds addr and serves until the listener fails. In-flight
// pipeline work is not cancelled by client disconnects.
func (s *Server) ListenAndServe(addr string) error {
	slog.Info("http server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if model.IsKind(err, model.KindInvalidInput) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type transcribeRequest struct {
	Input string `json:"input"`
	Force bool   `json:"force"`
}

type transcribeResponse struct {
	Success       bool   `json:"success"`
	MediaID       string `json:"media_id"`
	Title         string `json:"title"`
	ChunksIndexed int    `json:"chunks_indexed"`
	Error         string `json:"error,omitempty"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Input == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must include a non-empty 'input'"})
		return
	}

	res, err := s.backend.ProcessMedia(r.Context(), req.Input, req.Force)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, transcribeResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{
		Success:       true,
		MediaID:       res.MediaID,
		Title:         res.Title,
		ChunksIndexed: res.ChunksIndexed,
	})
}

type searchRequest struct {
	Query    string   `json:"query"`
	Limit    int      `json:"limit"`
	MinScore *float32 `json:"min_score"`
}

type searchResultBody struct {
	MediaID      string  `json:"media_id"`
	MediaTitle   string  `json:"media_title"`
	ChunkTitle   string  `json:"chunk_title,omitempty"`
	Content      string  `json:"content"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Timestamp    string  `json:"timestamp"`
	Score        float32 `json:"score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must include a non-empty 'query'"})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}
	minScore := float32(0.3)
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	chunks, err := s.backend.Search(r.Context(), req.Query, req.Limit, minScore)
	if err != nil {
		writeError(w, err)
		return
	}

	results := make([]searchResultBody, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, searchResultBody{
			MediaID:      c.MediaID,
			MediaTitle:   c.MediaTitle,
			ChunkTitle:   c.SectionTitle,
			Content:      c.Content,
			StartSeconds: c.StartSeconds,
			EndSeconds:   c.EndSeconds,
			Timestamp:    c.Timestamp,
			Score:        c.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type askRequest struct {
	Question  string `json:"question"`
	MaxChunks int    `json:"max_chunks"`
	Model     string `json:"model"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must include a non-empty 'question'"})
		return
	}

	resp, err := s.backend.Ask(r.Context(), req.Question, req.MaxChunks, req.Model)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":  resp.Answer,
		"sources": resp.Sources,
	})
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	media, err := s.backend.ListMedia(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(media))
	for _, m := range media {
		items = append(items, mediaBody(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"media": items, "total": len(items)})
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := mux.Vars(r)["id"]

	m, err := s.backend.GetMedia(r.Context(), mediaID)
	if err != nil {
		writeError(w, err)
		return
	}
	if m == nil {
		writeError(w, model.Errf(model.KindInvalidInput, "media not found: %s", mediaID))
		return
	}

	docs, err := s.backend.GetDocuments(r.Context(), mediaID)
	if err != nil {
		writeError(w, err)
		return
	}

	chunks := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		chunks = append(chunks, map[string]any{
			"chunk_order":   d.ChunkOrder,
			"section_title": d.SectionTitle,
			"content":       d.Content,
			"start_seconds": d.StartSeconds,
			"end_seconds":   d.EndSeconds,
		})
	}

	body := mediaBody(*m)
	body["chunks"] = chunks
	writeJSON(w, http.StatusOK, body)
}

func mediaBody(m model.IndexedMedia) map[string]any {
	return map[string]any{
		"media_id":               m.MediaID,
		"media_title":            m.MediaTitle,
		"chunk_count":            m.ChunkCount,
		"total_duration_seconds": m.TotalDurationSeconds,
		"indexed_at":             m.IndexedAt,
	}
}
