package llm

import (
	"context"
	"fmt"

	"github.com/noesis-dev/noesis/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIClient is a chat-completion client with tool-calling support.
// A shared limiter paces outbound calls across both dialogue roles.
type OpenAIClient struct {
	client  *openai.Client
	limiter *rate.Limiter
}

func NewOpenAIClient(apiKey string, rps float64) *OpenAIClient {
	if rps <= 0 {
		rps = 1
	}
	return &OpenAIClient{
		client:  openai.NewClient(apiKey),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	var tools []openai.Tool
	for _, t := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	out := &domain.ChatResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}
