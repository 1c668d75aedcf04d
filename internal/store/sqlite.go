// Package store persists embedded chunks and raw transcripts in SQLite and
// serves linear-scan cosine similarity search over them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"hark/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  media_id TEXT NOT NULL,
  media_title TEXT NOT NULL,
  section_title TEXT,
  content TEXT NOT NULL,
  start_seconds REAL NOT NULL,
  end_seconds REAL NOT NULL,
  embedding BLOB NOT NULL,
  chunk_order INTEGER NOT NULL,
  source_created_at TEXT,
  indexed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_media_id ON documents(media_id);
CREATE INDEX IF NOT EXISTS idx_documents_indexed_at ON documents(indexed_at);

CREATE TABLE IF NOT EXISTS transcripts (
  media_id TEXT PRIMARY KEY,
  media_title TEXT NOT NULL,
  transcript_json TEXT NOT NULL,
  duration_seconds REAL NOT NULL,
  transcribed_at TEXT NOT NULL
);
`

// SQLiteStore is the on-disk index. One logical connection; every operation
// holds the store mutex, which serialises the whole store. Adequate given
// linear-scan search dominates cost.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, model.Wrap(model.KindStore, err, "create store directory")
		}
	}
	return open(path)
}

// NewInMemoryStore opens a throwaway in-memory database, used by tests.
func NewInMemoryStore() (*SQLiteStore, error) {
	return open(":memory:")
}

func open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, model.Wrap(model.KindStore, err, "open database")
	}
	// a single connection keeps :memory: stores coherent and matches the
	// one-logical-connection model
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, model.Wrap(model.KindStore, err, "enable WAL")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, model.Wrap(model.KindStore, err, "initialize schema")
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

const upsertDocumentSQL = `
INSERT OR REPLACE INTO documents
(id, media_id, media_title, section_title, content, start_seconds, end_seconds,
 embedding, chunk_order, source_created_at, indexed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func documentArgs(doc model.Document) []any {
	var sourceCreated any
	if doc.SourceCreatedAt != nil {
		sourceCreated = doc.SourceCreatedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		doc.ID.String(),
		doc.MediaID,
		doc.MediaTitle,
		nullable(doc.SectionTitle),
		doc.Content,
		doc.StartSeconds,
		doc.EndSeconds,
		embeddingToBytes(doc.Embedding),
		doc.ChunkOrder,
		sourceCreated,
		doc.IndexedAt.UTC().Format(time.RFC3339),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Upsert inserts or replaces one document by id.
func (s *SQLiteStore) Upsert(ctx context.Context, doc model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, upsertDocumentSQL, documentArgs(doc)...)
	if err != nil {
		return model.Wrap(model.KindStore, err, "upsert document %s", doc.ID)
	}
	return nil
}

// UpsertBatch writes all documents in a single transaction; on any failure
// nothing is written.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, docs []model.Document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, model.Wrap(model.KindStore, err, "begin batch")
	}
	defer func() { _ = tx.Rollback() }()

	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, upsertDocumentSQL, documentArgs(doc)...); err != nil {
			return 0, model.Wrap(model.KindStore, err, "upsert document %s", doc.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, model.Wrap(model.KindStore, err, "commit batch")
	}
	return len(docs), nil
}

// DeleteByMedia removes every document of a media. Idempotent.
func (s *SQLiteStore) DeleteByMedia(ctx context.Context, mediaID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE media_id = ?`, mediaID)
	if err != nil {
		return 0, model.Wrap(model.KindStore, err, "delete documents for %s", mediaID)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const selectDocumentSQL = `
SELECT id, media_id, media_title, section_title, content,
       start_seconds, end_seconds, embedding, chunk_order,
       source_created_at, indexed_at
FROM documents`

func scanDocument(rows *sql.Rows) (model.Document, error) {
	var (
		doc           model.Document
		idStr         string
		sectionTitle  sql.NullString
		embedding     []byte
		sourceCreated sql.NullString
		indexedAt     string
	)
	if err := rows.Scan(
		&idStr, &doc.MediaID, &doc.MediaTitle, &sectionTitle, &doc.Content,
		&doc.StartSeconds, &doc.EndSeconds, &embedding, &doc.ChunkOrder,
		&sourceCreated, &indexedAt,
	); err != nil {
		return model.Document{}, err
	}

	doc.ID, _ = uuid.Parse(idStr)
	doc.SectionTitle = sectionTitle.String
	doc.Embedding = bytesToEmbedding(embedding)
	if sourceCreated.Valid {
		if ts, err := time.Parse(time.RFC3339, sourceCreated.String); err == nil {
			utc := ts.UTC()
			doc.SourceCreatedAt = &utc
		}
	}
	doc.IndexedAt = parseTimeOrNow(indexedAt)
	return doc, nil
}

// parseTimeOrNow degrades an unparseable stored timestamp to the current
// time rather than failing the row.
func parseTimeOrNow(s string) time.Time {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC()
	}
	return time.Now().UTC()
}

// Search scans all documents and returns the limit highest cosine scores.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, limit int) ([]model.SearchResult, error) {
	return s.searchScan(ctx, query, limit, -1.0)
}

// SearchWithThreshold is Search filtered to score >= minScore.
func (s *SQLiteStore) SearchWithThreshold(ctx context.Context, query []float32, limit int, minScore float32) ([]model.SearchResult, error) {
	return s.searchScan(ctx, query, limit, minScore)
}

func (s *SQLiteStore) searchScan(ctx context.Context, query []float32, limit int, minScore float32) ([]model.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, selectDocumentSQL)
	if err != nil {
		return nil, model.Wrap(model.KindStore, err, "scan documents")
	}
	defer func() { _ = rows.Close() }()

	var results []model.SearchResult
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, model.Wrap(model.KindStore, err, "scan document row")
		}
		score := Cosine(query, doc.Embedding)
		if score >= minScore {
			results = append(results, model.SearchResult{Document: doc, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, model.Wrap(model.KindStore, err, "iterate documents")
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

const aggregateMediaSQL = `
SELECT media_id, media_title, COUNT(*) AS chunk_count,
       MAX(end_seconds) AS total_duration, MAX(indexed_at) AS indexed_at
FROM documents`

// ListMedia aggregates documents per media, most recently indexed first.
func (s *SQLiteStore) ListMedia(ctx context.Context) ([]model.IndexedMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, aggregateMediaSQL+` GROUP BY media_id ORDER BY indexed_at DESC`)
	if err != nil {
		return nil, model.Wrap(model.KindStore, err, "list media")
	}
	defer func() { _ = rows.Close() }()

	var media []model.IndexedMedia
	for rows.Next() {
		var (
			m         model.IndexedMedia
			indexedAt string
		)
		if err := rows.Scan(&m.MediaID, &m.MediaTitle, &m.ChunkCount, &m.TotalDurationSeconds, &indexedAt); err != nil {
			return nil, model.Wrap(model.KindStore, err, "scan media row")
		}
		m.IndexedAt = parseTimeOrNow(indexedAt)
		media = append(media, m)
	}
	return media, rows.Err()
}

// GetMedia returns the aggregate view of one media, or nil when absent.
func (s *SQLiteStore) GetMedia(ctx context.Context, mediaID string) (*model.IndexedMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, aggregateMediaSQL+` WHERE media_id = ? GROUP BY media_id`, mediaID)

	var (
		m         model.IndexedMedia
		indexedAt string
	)
	err := row.Scan(&m.MediaID, &m.MediaTitle, &m.ChunkCount, &m.TotalDurationSeconds, &indexedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, model.Wrap(model.KindStore, err, "get media %s", mediaID)
	}
	m.IndexedAt = parseTimeOrNow(indexedAt)
	return &m, nil
}

// IsIndexed reports whether at least one document exists for the media.
func (s *SQLiteStore) IsIndexed(ctx context.Context, mediaID string) (bool, error) {
	m, err := s.GetMedia(ctx, mediaID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// GetByMedia returns a media's documents ordered by chunk order.
func (s *SQLiteStore) GetByMedia(ctx context.Context, mediaID string) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, selectDocumentSQL+` WHERE media_id = ? ORDER BY chunk_order`, mediaID)
	if err != nil {
		return nil, model.Wrap(model.KindStore, err, "get documents for %s", mediaID)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, model.Wrap(model.KindStore, err, "scan document row")
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// StoreTranscript saves (or replaces) the raw transcript for a media.
func (s *SQLiteStore) StoreTranscript(ctx context.Context, mediaID, title string, transcript model.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(transcript)
	if err != nil {
		return model.Wrap(model.KindStore, err, "encode transcript")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO transcripts
		(media_id, media_title, transcript_json, duration_seconds, transcribed_at)
		VALUES (?, ?, ?, ?, ?)`,
		mediaID, title, string(data), transcript.DurationSeconds,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return model.Wrap(model.KindStore, err, "store transcript for %s", mediaID)
	}
	return nil
}

// GetTranscript returns the stored transcript, or nil when absent.
func (s *SQLiteStore) GetTranscript(ctx context.Context, mediaID string) (*model.StoredTranscript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT media_id, media_title, transcript_json, duration_seconds, transcribed_at
		FROM transcripts WHERE media_id = ?`, mediaID)

	var (
		st            model.StoredTranscript
		rawJSON       string
		transcribedAt string
	)
	err := row.Scan(&st.MediaID, &st.MediaTitle, &rawJSON, &st.DurationSeconds, &transcribedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, model.Wrap(model.KindStore, err, "get transcript for %s", mediaID)
	}

	if err := json.Unmarshal([]byte(rawJSON), &st.Transcript); err != nil {
		return nil, model.Wrap(model.KindStore, err, "decode transcript for %s", mediaID)
	}
	st.TranscribedAt = parseTimeOrNow(transcribedAt)
	return &st, nil
}

// HasTranscript reports whether a raw transcript is stored for the media.
func (s *SQLiteStore) HasTranscript(ctx context.Context, mediaID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM transcripts WHERE media_id = ?`, mediaID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, model.Wrap(model.KindStore, err, "check transcript for %s", mediaID)
	}
	return true, nil
}

// ListTranscripts enumerates stored transcripts without decoding their
// segment JSON.
func (s *SQLiteStore) ListTranscripts(ctx context.Context) ([]model.StoredTranscript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT media_id, media_title, duration_seconds, transcribed_at
		FROM transcripts ORDER BY transcribed_at DESC`)
	if err != nil {
		return nil, model.Wrap(model.KindStore, err, "list transcripts")
	}
	defer func() { _ = rows.Close() }()

	var out []model.StoredTranscript
	for rows.Next() {
		var (
			st            model.StoredTranscript
			transcribedAt string
		)
		if err := rows.Scan(&st.MediaID, &st.MediaTitle, &st.DurationSeconds, &transcribedAt); err != nil {
			return nil, model.Wrap(model.KindStore, err, "scan transcript row")
		}
		st.TranscribedAt = parseTimeOrNow(transcribedAt)
		out = append(out, st)
	}
	return out, rows.Err()
}

var _ model.Store = (*SQLiteStore)(nil)
