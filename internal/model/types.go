package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies where a media item comes from.
type SourceKind string

const (
	SourceYouTube SourceKind = "youtube"
	SourceLocal   SourceKind = "local"
)

// MediaRef describes one audio-bearing item and its metadata. ID is stable
// per source: the 11-character video code for YouTube, a canonicalised path
// prefixed "local_" for local files.
type MediaRef struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DurationSeconds uint       `json:"duration_seconds,omitempty"`
	SourceKind      SourceKind `json:"source_kind"`
	SourceURL       string     `json:"source_url"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	Channel         string     `json:"channel,omitempty"`
	Thumbnail       string     `json:"thumbnail,omitempty"`
}

// URLAtTime returns a deep link into the media at the given offset.
func (m MediaRef) URLAtTime(seconds float64) string {
	if m.SourceKind == SourceYouTube {
		return fmt.Sprintf("https://youtube.com/watch?v=%s&t=%ds", m.ID, int(seconds))
	}
	return fmt.Sprintf("%s#t=%d", m.SourceURL, int(seconds))
}

// WordTimestamp is a single word with its start/end offsets in seconds.
// Starts are monotonically non-decreasing within one audio segment.
type WordTimestamp struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptSegment is one timed piece of transcript text. Start < End;
// within a Transcript segments are sorted by start and non-overlapping.
type TranscriptSegment struct {
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// Transcript is the ordered, timed transcript of one media item.
type Transcript struct {
	MediaID         string              `json:"media_id"`
	Segments        []TranscriptSegment `json:"segments"`
	FullText        string              `json:"full_text"`
	DurationSeconds float64             `json:"duration_seconds"`
}

// NewTranscript sorts the segments by start time and derives the cached
// full text and total duration.
func NewTranscript(mediaID string, segments []TranscriptSegment) Transcript {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartSeconds < segments[j].StartSeconds
	})

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}

	var duration float64
	if len(segments) > 0 {
		duration = segments[len(segments)-1].EndSeconds
	}

	return Transcript{
		MediaID:         mediaID,
		Segments:        segments,
		FullText:        strings.Join(texts, " "),
		DurationSeconds: duration,
	}
}

// TextBetween returns the space-joined text of every segment overlapping
// the half-open interval [start, end).
func (t Transcript) TextBetween(start, end float64) string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if seg.StartSeconds < end && seg.EndSeconds > start {
			parts = append(parts, seg.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// FormatWithTimestamps renders the transcript one segment per line with a
// leading [MM:SS] stamp. Used as LLM input for semantic chunking.
func (t Transcript) FormatWithTimestamps() string {
	var b strings.Builder
	for _, seg := range t.Segments {
		b.WriteString("[")
		b.WriteString(FormatTimestamp(seg.StartSeconds))
		b.WriteString("] ")
		b.WriteString(seg.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS past one hour.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// ContentChunk is a bounded passage of transcript used as a retrieval unit.
// Within a media, Order is dense from 0 and chunks are sorted by start.
type ContentChunk struct {
	Order        int     `json:"order"`
	Title        string  `json:"title,omitempty"`
	Summary      string  `json:"summary,omitempty"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Content      string  `json:"content"`
}

// Document is a stored, embedded chunk with provenance.
type Document struct {
	ID              uuid.UUID
	MediaID         string
	MediaTitle      string
	SectionTitle    string
	Content         string
	StartSeconds    float64
	EndSeconds      float64
	Embedding       []float32
	ChunkOrder      int
	SourceCreatedAt *time.Time
	IndexedAt       time.Time
}

// NewDocument builds a Document from a chunk, its embedding and the media it
// belongs to, stamping it with the current time.
func NewDocument(ref MediaRef, chunk ContentChunk, embedding []float32) Document {
	return Document{
		ID:              uuid.New(),
		MediaID:         ref.ID,
		MediaTitle:      ref.Title,
		SectionTitle:    chunk.Title,
		Content:         chunk.Content,
		StartSeconds:    chunk.StartSeconds,
		EndSeconds:      chunk.EndSeconds,
		Embedding:       embedding,
		ChunkOrder:      chunk.Order,
		SourceCreatedAt: ref.PublishedAt,
		IndexedAt:       time.Now().UTC(),
	}
}

// FormatTimestamp renders the document's start offset for display.
func (d Document) FormatTimestamp() string {
	return FormatTimestamp(d.StartSeconds)
}

// SearchResult pairs a document with its cosine similarity to a query.
type SearchResult struct {
	Document Document
	Score    float32
}

// IndexedMedia is the aggregated per-media view over stored documents.
type IndexedMedia struct {
	MediaID              string
	MediaTitle           string
	ChunkCount           int
	TotalDurationSeconds float64
	IndexedAt            time.Time
}

// StoredTranscript is a raw transcript kept alongside the documents so the
// expensive transcription step need not be repeated to rechunk.
type StoredTranscript struct {
	MediaID         string
	MediaTitle      string
	Transcript      Transcript
	DurationSeconds float64
	TranscribedAt   time.Time
}

// ProcessResult reports the outcome of one pipeline run.
type ProcessResult struct {
	MediaID       string `json:"media_id"`
	Title         string `json:"title"`
	ChunksIndexed int    `json:"chunks_indexed"`
	Skipped       bool   `json:"skipped"`
}

// ContextChunk is a retrieval hit prepared for prompt assembly: timestamped,
// scored, and (for YouTube sources) deep-linked.
type ContextChunk struct {
	MediaID      string  `json:"media_id"`
	MediaTitle   string  `json:"media_title"`
	SectionTitle string  `json:"section_title,omitempty"`
	Timestamp    string  `json:"timestamp"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Content      string  `json:"content"`
	Score        float32 `json:"score"`
	URL          string  `json:"url,omitempty"`
}
