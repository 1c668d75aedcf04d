package agent

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"hark/internal/model"
)

// DefaultMaxIterations bounds the tool-call loop.
const DefaultMaxIterations = 15

const defaultSystemPrompt = `You are an intelligent assistant with access to a transcribed media knowledge base.

You have tools to search the library, get full transcripts, and retrieve specific segments.
Think step-by-step about what information you need, then use the appropriate tools.

Guidelines:
- Use 'list_videos' first if you need to know what content is available
- Use 'search' to find specific topics across all media
- Use 'get_transcript' to get a full transcript for summaries or deep analysis
- Use 'get_segment' to get content from a specific time range
- Use 'get_video_info' to get metadata about a media item

When you have gathered enough information, provide your final response.
Always cite your sources with titles and timestamps when relevant.`

// chatAPI is the slice of the OpenAI client the agent uses.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ToolCallRecord captures one tool invocation made during a run.
type ToolCallRecord struct {
	Name      string
	Arguments string
	Result    string
}

func (r ToolCallRecord) String() string {
	return fmt.Sprintf("%s(%s)", r.Name, r.Arguments)
}

// Response is the outcome of an agent run.
type Response struct {
	Content    string
	ToolCalls  []ToolCallRecord
	Iterations int
}

// Agent drives a chat model through a bounded tool-call loop. The loop is
// strictly sequential: one model call per round, requested tools executed in
// order, results appended before the next round.
type Agent struct {
	chat          chatAPI
	model         string
	tools         *ToolContext
	maxIterations int
	systemPrompt  string
}

// New returns an agent over the given tool context.
func New(chat chatAPI, modelName string, tools *ToolContext) *Agent {
	return &Agent{
		chat:          chat,
		model:         modelName,
		tools:         tools,
		maxIterations: DefaultMaxIterations,
		systemPrompt:  defaultSystemPrompt,
	}
}

// WithMaxIterations bounds the loop. Non-positive values are ignored.
func (a *Agent) WithMaxIterations(n int) *Agent {
	if n > 0 {
		a.maxIterations = n
	}
	return a
}

// WithSystemPrompt replaces the default system prompt.
func (a *Agent) WithSystemPrompt(prompt string) *Agent {
	if prompt != "" {
		a.systemPrompt = prompt
	}
	return a
}

// Run executes the loop for a task, optionally scoped by extra context
// (e.g. a specific media id). Tool failures are fed back to the model as
// text; only transport failures and iteration exhaustion surface as errors.
func (a *Agent) Run(ctx context.Context, task, extraContext string) (Response, error) {
	userMessage := task
	if extraContext != "" {
		userMessage = fmt.Sprintf("Context: %s\n\nTask: %s", extraContext, task)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: a.systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userMessage},
	}

	var records []ToolCallRecord
	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		resp, err := a.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    a.model,
			Messages: messages,
			Tools:    Definitions(),
		})
		if err != nil {
			return Response{}, model.Wrap(model.KindAgent, err, "agent model call failed")
		}
		if len(resp.Choices) == 0 {
			return Response{}, model.Errf(model.KindAgent, "no response from model")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return Response{
				Content:    msg.Content,
				ToolCalls:  records,
				Iterations: iteration,
			}, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			slog.Debug("agent tool call", "tool", call.Function.Name, "args", call.Function.Arguments)

			result, err := a.tools.Execute(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				result = fmt.Sprintf("Tool error: %v", err)
			}
			records = append(records, ToolCallRecord{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
				Result:    result,
			})
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return Response{ToolCalls: records, Iterations: a.maxIterations},
		model.Errf(model.KindAgent, "agent exceeded maximum iterations (%d)", a.maxIterations)
}
