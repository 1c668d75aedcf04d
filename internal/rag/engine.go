package rag

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"hark/internal/config"
	"hark/internal/model"
)

// chatAPI is the slice of the OpenAI client the engine uses.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const (
	// answerTemperature leaves some room for phrasing; retrieval keeps the
	// content grounded.
	answerTemperature = 0.7

	// maxHistoryMessages bounds chat history: the system message plus the
	// most recent turns.
	maxHistoryMessages = 20

	noContextAnswer = "I couldn't find any relevant information in your library for this question."
)

// Response is an answer plus the context chunks it was grounded on.
type Response struct {
	Answer  string
	Sources []model.ContextChunk
}

// Engine answers questions over the indexed library, either single-shot
// (Ask) or conversationally (Chat). A single Engine owns its chat history
// and is not safe for concurrent use.
type Engine struct {
	chat    chatAPI
	model   string
	builder *ContextBuilder
	prompts config.Prompts
	history []openai.ChatCompletionMessage
}

// NewEngine returns a RAG engine over the given store and embedder.
func NewEngine(chat chatAPI, modelName string, builder *ContextBuilder, prompts config.Prompts) *Engine {
	return &Engine{
		chat:    chat,
		model:   modelName,
		builder: builder,
		prompts: prompts,
	}
}

// Ask answers a single question with citations. An empty retrieval yields a
// canned no-information answer without calling the model.
func (e *Engine) Ask(ctx context.Context, question string) (Response, error) {
	chunks, err := e.builder.Build(ctx, question)
	if err != nil {
		return Response{}, err
	}
	if len(chunks) == 0 {
		return Response{Answer: noContextAnswer}, nil
	}

	userPrompt := e.prompts.Render(e.prompts.RAG.User, map[string]string{
		"question": question,
		"context":  FormatContextForPrompt(chunks),
	})

	answer, err := e.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: e.prompts.RAG.System},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Answer: answer, Sources: chunks}, nil
}

// Chat answers within an ongoing conversation, retrieving fresh context for
// every message and keeping the history trimmed.
func (e *Engine) Chat(ctx context.Context, message string) (Response, error) {
	chunks, err := e.builder.Build(ctx, message)
	if err != nil {
		return Response{}, err
	}

	var userContent string
	if len(chunks) == 0 {
		userContent = fmt.Sprintf("Question: %s\n\n(No relevant context found in the library)", message)
	} else {
		userContent = fmt.Sprintf("Question: %s\n\nRelevant context from the library:\n%s",
			message, FormatContextForPrompt(chunks))
	}

	e.history = append(e.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userContent,
	})

	messages := make([]openai.ChatCompletionMessage, 0, len(e.history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: e.prompts.RAG.ChatSystem,
	})
	messages = append(messages, e.history...)

	answer, err := e.complete(ctx, messages)
	if err != nil {
		// drop the failed turn so a retry does not duplicate it
		e.history = e.history[:len(e.history)-1]
		return Response{}, err
	}

	e.history = append(e.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: answer,
	})
	e.trimHistory()

	return Response{Answer: answer, Sources: chunks}, nil
}

// trimHistory retains the most recent turns once the history (excluding the
// system message, which is rebuilt each call) outgrows the cap.
func (e *Engine) trimHistory() {
	if len(e.history) > maxHistoryMessages-1 {
		e.history = e.history[len(e.history)-(maxHistoryMessages-1):]
	}
}

// ClearHistory resets the conversation.
func (e *Engine) ClearHistory() {
	e.history = nil
}

// HistoryLen reports the number of stored turns (user and assistant
// messages, system excluded).
func (e *Engine) HistoryLen() int { return len(e.history) }

func (e *Engine) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := e.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: answerTemperature,
		Messages:    messages,
	})
	if err != nil {
		return "", model.Wrap(model.KindRag, err, "answer generation failed")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", model.Errf(model.KindRag, "empty response from model")
	}
	return resp.Choices[0].Message.Content, nil
}
