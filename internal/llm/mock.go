package llm

import (
	"context"

	"github.com/noesis-dev/noesis/internal/domain"
)

// MockClient is a configurable chat client for testing. Set Responses to
// control what successive calls return; the last entry repeats once the
// queue is drained.
type MockClient struct {
	Responses []domain.ChatResponse
	Err       error

	// Call tracking for assertions
	Calls []domain.ChatRequest

	next int
}

func NewMockClient() *MockClient {
	return &MockClient{
		Responses: []domain.ChatResponse{
			{Content: "What does it mean for a system to remember?"},
		},
	}
}

func (c *MockClient) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	c.Calls = append(c.Calls, req)
	if c.Err != nil {
		return nil, c.Err
	}
	if len(c.Responses) == 0 {
		return &domain.ChatResponse{}, nil
	}
	i := c.next
	if i >= len(c.Responses) {
		i = len(c.Responses) - 1
	}
	c.next++
	resp := c.Responses[i]
	return &resp, nil
}
