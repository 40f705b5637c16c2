package embedding

import (
	"context"
	"hash/fnv"
)

const mockDimensions = 8

// MockClient produces small deterministic vectors derived from the input
// text, so tests get stable similarity behavior without network access.
type MockClient struct {
	Err error

	// Call tracking for assertions
	Calls []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Dimensions() int {
	return mockDimensions
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.Calls = append(c.Calls, text)
	if c.Err != nil {
		return nil, c.Err
	}

	vec := make([]float32, mockDimensions)
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000 - 0.5
	}
	return vec, nil
}
