package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hark/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewInMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testDoc(mediaID string, order int, embedding []float32) model.Document {
	return model.Document{
		ID:           uuid.New(),
		MediaID:      mediaID,
		MediaTitle:   "Title of " + mediaID,
		SectionTitle: "Section",
		Content:      "content of chunk",
		StartSeconds: float64(order * 60),
		EndSeconds:   float64((order + 1) * 60),
		Embedding:    embedding,
		ChunkOrder:   order,
		IndexedAt:    time.Now().UTC(),
	}
}

func TestUpsertAndGetByMedia(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("vid1", 0, []float32{1, 0, 0})
	require.NoError(t, s.Upsert(ctx, doc))

	docs, err := s.GetByMedia(ctx, "vid1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
	assert.Equal(t, doc.Content, docs[0].Content)
	assert.Equal(t, doc.Embedding, docs[0].Embedding)
	assert.Equal(t, "Section", docs[0].SectionTitle)
}

func TestUpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("vid1", 0, []float32{1, 0, 0})
	require.NoError(t, s.Upsert(ctx, doc))

	doc.Content = "updated content"
	require.NoError(t, s.Upsert(ctx, doc))

	docs, err := s.GetByMedia(ctx, "vid1")
	require.NoError(t, err)
	require.Len(t, docs, 1, "same id upserted twice yields one row")
	assert.Equal(t, "updated content", docs[0].Content)
}

func TestUpsertBatchAndOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docs := []model.Document{
		testDoc("vid1", 2, []float32{0, 0, 1}),
		testDoc("vid1", 0, []float32{1, 0, 0}),
		testDoc("vid1", 1, []float32{0, 1, 0}),
	}
	n, err := s.UpsertBatch(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.GetByMedia(ctx, "vid1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, d := range got {
		assert.Equal(t, i, d.ChunkOrder, "documents come back in chunk order")
	}
}

func TestDeleteByMedia(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertBatch(ctx, []model.Document{
		testDoc("vid1", 0, []float32{1, 0, 0}),
		testDoc("vid1", 1, []float32{0, 1, 0}),
		testDoc("vid2", 0, []float32{0, 0, 1}),
	})
	require.NoError(t, err)

	n, err := s.DeleteByMedia(ctx, "vid1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	indexed, err := s.IsIndexed(ctx, "vid1")
	require.NoError(t, err)
	assert.False(t, indexed)

	indexed, err = s.IsIndexed(ctx, "vid2")
	require.NoError(t, err)
	assert.True(t, indexed)

	// idempotent
	n, err = s.DeleteByMedia(ctx, "vid1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearchRankingAndThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertBatch(ctx, []model.Document{
		testDoc("exact", 0, []float32{1, 0, 0}),
		testDoc("close", 0, []float32{0.9, 0.1, 0}),
		testDoc("orthogonal", 0, []float32{0, 1, 0}),
		testDoc("opposite", 0, []float32{-1, 0, 0}),
	})
	require.NoError(t, err)

	results, err := s.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, "exact", results[0].Document.MediaID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "opposite", results[3].Document.MediaID)
	assert.InDelta(t, -1.0, results[3].Score, 1e-6)

	// descending scores
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	limited, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	thresholded, err := s.SearchWithThreshold(ctx, []float32{1, 0, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, thresholded, 2)
	for _, r := range thresholded {
		assert.GreaterOrEqual(t, r.Score, float32(0.5))
	}
}

func TestListAndGetMedia(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	older := testDoc("vid1", 0, []float32{1, 0, 0})
	older.IndexedAt = now.Add(-time.Hour)
	newer := testDoc("vid2", 0, []float32{0, 1, 0})
	newer.EndSeconds = 300
	newer.IndexedAt = now

	_, err := s.UpsertBatch(ctx, []model.Document{older, newer, testDoc("vid2", 1, []float32{0, 1, 0})})
	require.NoError(t, err)

	media, err := s.ListMedia(ctx)
	require.NoError(t, err)
	require.Len(t, media, 2)
	assert.Equal(t, "vid2", media[0].MediaID, "most recently indexed first")
	assert.Equal(t, 2, media[0].ChunkCount)
	assert.Equal(t, 300.0, media[0].TotalDurationSeconds)

	got, err := s.GetMedia(ctx, "vid1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.ChunkCount)

	missing, err := s.GetMedia(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTranscriptRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tr := model.NewTranscript("vid1", []model.TranscriptSegment{
		{Text: "hello", StartSeconds: 0, EndSeconds: 2},
		{Text: "world", StartSeconds: 2, EndSeconds: 4},
	})
	require.NoError(t, s.StoreTranscript(ctx, "vid1", "Video One", tr))

	has, err := s.HasTranscript(ctx, "vid1")
	require.NoError(t, err)
	assert.True(t, has)

	st, err := s.GetTranscript(ctx, "vid1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "Video One", st.MediaTitle)
	assert.Equal(t, tr.Segments, st.Transcript.Segments)
	assert.Equal(t, 4.0, st.DurationSeconds)

	list, err := s.ListTranscripts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "vid1", list[0].MediaID)

	missing, err := s.GetTranscript(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	has, err = s.HasTranscript(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStoreTranscriptReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := model.NewTranscript("vid1", []model.TranscriptSegment{{Text: "v1", StartSeconds: 0, EndSeconds: 1}})
	second := model.NewTranscript("vid1", []model.TranscriptSegment{{Text: "v2", StartSeconds: 0, EndSeconds: 2}})
	require.NoError(t, s.StoreTranscript(ctx, "vid1", "t", first))
	require.NoError(t, s.StoreTranscript(ctx, "vid1", "t", second))

	st, err := s.GetTranscript(ctx, "vid1")
	require.NoError(t, err)
	assert.Equal(t, "v2", st.Transcript.Segments[0].Text)
	assert.Equal(t, 2.0, st.DurationSeconds)
}

func TestOnDiskStore(t *testing.T) {
	path := t.TempDir() + "/sub/index.db"
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Upsert(context.Background(), testDoc("vid1", 0, []float32{1})))
	ok, err := s.IsIndexed(context.Background(), "vid1")
	require.NoError(t, err)
	assert.True(t, ok)
}
