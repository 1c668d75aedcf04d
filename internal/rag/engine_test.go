package rag

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hark/internal/config"
	"hark/internal/model"
	"hark/internal/store"
)

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Dimensions() int { return f.dims }

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	vec := make([]float32, f.dims)
	vec[0] = 1
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = f.Embed(ctx, texts[i])
	}
	return out, nil
}

type fakeChat struct {
	answer   string
	requests []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: f.answer}},
	}}, nil
}

func seededStore(t *testing.T, docs ...model.Document) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewInMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	for _, doc := range docs {
		require.NoError(t, s.Upsert(context.Background(), doc))
	}
	return s
}

func doc(mediaID string, score0 float32) model.Document {
	emb := make([]float32, 4)
	emb[0] = score0
	return model.Document{
		ID:           uuid.New(),
		MediaID:      mediaID,
		MediaTitle:   "Title " + mediaID,
		Content:      "the content of " + mediaID,
		StartSeconds: 90,
		EndSeconds:   150,
		Embedding:    emb,
		IndexedAt:    time.Now().UTC(),
	}
}

func TestContextBuilderBuild(t *testing.T) {
	s := seededStore(t, doc("dQw4w9WgXcQ", 1), doc("local_tmp_a", 1), doc("faraway0000", -1))
	b := NewContextBuilder(s, &fakeEmbedder{dims: 4})

	chunks, err := b.Build(context.Background(), "what is this about")
	require.NoError(t, err)
	require.Len(t, chunks, 2, "opposite vector falls under the 0.3 threshold")

	byID := map[string]model.ContextChunk{}
	for _, c := range chunks {
		byID[c.MediaID] = c
	}

	yt := byID["dQw4w9WgXcQ"]
	assert.Equal(t, "https://youtube.com/watch?v=dQw4w9WgXcQ&t=90s", yt.URL)
	assert.Equal(t, "01:30", yt.Timestamp)

	local := byID["local_tmp_a"]
	assert.Empty(t, local.URL, "local media gets no deep link")
}

func TestContextBuilderLimits(t *testing.T) {
	var docs []model.Document
	for i := 0; i < 5; i++ {
		docs = append(docs, doc(fmt.Sprintf("media%06d", i), 1))
	}
	s := seededStore(t, docs...)

	b := NewContextBuilder(s, &fakeEmbedder{dims: 4}).WithMaxChunks(3)
	chunks, err := b.Build(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
}

func TestAskWithContext(t *testing.T) {
	s := seededStore(t, doc("dQw4w9WgXcQ", 1))
	chat := &fakeChat{answer: "Grounded answer [Title @ 01:30]"}
	e := NewEngine(chat, "gpt-4o-mini", NewContextBuilder(s, &fakeEmbedder{dims: 4}), config.DefaultPrompts())

	resp, err := e.Ask(context.Background(), "what happens at 90 seconds?")
	require.NoError(t, err)
	assert.Equal(t, "Grounded answer [Title @ 01:30]", resp.Answer)
	require.Len(t, resp.Sources, 1)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	assert.Equal(t, float32(0.7), req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[1].Content, "what happens at 90 seconds?")
	assert.Contains(t, req.Messages[1].Content, "the content of dQw4w9WgXcQ")
}

func TestAskWithoutContext(t *testing.T) {
	s := seededStore(t) // empty store
	chat := &fakeChat{answer: "should not be used"}
	e := NewEngine(chat, "gpt-4o-mini", NewContextBuilder(s, &fakeEmbedder{dims: 4}), config.DefaultPrompts())

	resp, err := e.Ask(context.Background(), "anything?")
	require.NoError(t, err)
	assert.Equal(t, noContextAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, chat.requests, "no-context answers skip the model")
}

func TestChatKeepsHistory(t *testing.T) {
	s := seededStore(t, doc("dQw4w9WgXcQ", 1))
	chat := &fakeChat{answer: "reply"}
	e := NewEngine(chat, "gpt-4o-mini", NewContextBuilder(s, &fakeEmbedder{dims: 4}), config.DefaultPrompts())

	_, err := e.Chat(context.Background(), "first question")
	require.NoError(t, err)
	_, err = e.Chat(context.Background(), "follow-up")
	require.NoError(t, err)

	assert.Equal(t, 4, e.HistoryLen(), "two user plus two assistant messages")

	// the second request carries the whole conversation plus the system
	// message
	last := chat.requests[len(chat.requests)-1]
	require.Len(t, last.Messages, 4) // system, user1, assistant1, user2
	assert.Equal(t, openai.ChatMessageRoleSystem, last.Messages[0].Role)
	assert.Contains(t, last.Messages[3].Content, "follow-up")
}

func TestChatTrimsHistory(t *testing.T) {
	s := seededStore(t, doc("dQw4w9WgXcQ", 1))
	e := NewEngine(&fakeChat{answer: "r"}, "gpt-4o-mini", NewContextBuilder(s, &fakeEmbedder{dims: 4}), config.DefaultPrompts())

	for i := 0; i < 15; i++ {
		_, err := e.Chat(context.Background(), fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	assert.Equal(t, maxHistoryMessages-1, e.HistoryLen(),
		"history caps at the system message plus the most recent 19")
}

func TestClearHistory(t *testing.T) {
	s := seededStore(t, doc("dQw4w9WgXcQ", 1))
	e := NewEngine(&fakeChat{answer: "r"}, "gpt-4o-mini", NewContextBuilder(s, &fakeEmbedder{dims: 4}), config.DefaultPrompts())

	_, err := e.Chat(context.Background(), "hello")
	require.NoError(t, err)
	require.NotZero(t, e.HistoryLen())

	e.ClearHistory()
	assert.Zero(t, e.HistoryLen())
}

func TestFormatContextForPrompt(t *testing.T) {
	out := FormatContextForPrompt([]model.ContextChunk{
		{MediaTitle: "Talk", Timestamp: "01:30", Content: "body text"},
	})
	assert.Contains(t, out, "[1] Talk @ 01:30")
	assert.Contains(t, out, "body text")
	assert.Contains(t, out, "---")
}
