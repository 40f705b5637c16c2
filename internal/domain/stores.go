package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RunStore interface {
	Create(ctx context.Context, r *Run) error
	// MostActive returns the run with the most persisted exchanges
	// (continuation over creation). Returns store.ErrNotFound when no
	// runs exist.
	MostActive(ctx context.Context) (*Run, error)
	SetStatus(ctx context.Context, id uuid.UUID, status RunStatus) error
	Touch(ctx context.Context, id uuid.UUID) error
}

type ExchangeStore interface {
	Create(ctx context.Context, ex *DialogueExchange) error
	CountByRun(ctx context.Context, runID uuid.UUID) (int, error)
	// ListRecent returns up to limit exchanges, most recent first.
	ListRecent(ctx context.Context, runID uuid.UUID, limit int) ([]DialogueExchange, error)
}

type StateStore interface {
	// Upsert writes the latest state snapshot, keyed by state id.
	Upsert(ctx context.Context, s *DialogueState) error
	LatestByRun(ctx context.Context, runID uuid.UUID) (*DialogueState, error)
}

type MemoryStore interface {
	Create(ctx context.Context, m *Memory) error
	// SearchContent is the degraded retrieval path: substring match on
	// content, most recent first.
	SearchContent(ctx context.Context, query string, types []MemoryType, limit int) ([]Memory, error)
	DeleteLowSignificanceBefore(ctx context.Context, runID uuid.UUID, cutoff time.Time) (int64, error)
}

type ConceptStore interface {
	Upsert(ctx context.Context, c *PhilosophicalConcept) error
	GetByName(ctx context.Context, name string) (*PhilosophicalConcept, error)
}

type ProcedureStore interface {
	Upsert(ctx context.Context, p *ProceduralPattern) error
	GetByName(ctx context.Context, name string) (*ProceduralPattern, error)
	// RefreshUsedSince resets last_used_at on patterns used after the
	// given instant, keeping recently exercised strategies warm.
	RefreshUsedSince(ctx context.Context, since time.Time) (int64, error)
}

type InsightStore interface {
	Create(ctx context.Context, i *Insight) error
	ListRecent(ctx context.Context, runID uuid.UUID, limit int) ([]Insight, error)
}

type SnapshotStore interface {
	Create(ctx context.Context, s *IdentitySnapshot) error
	LatestByRun(ctx context.Context, runID uuid.UUID) (*IdentitySnapshot, error)
}

// --- capability clients ---

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolSpec describes a callable tool offered to the model. Parameters is a
// JSON schema in whatever shape the provider expects.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  any
}

// ToolCall is a tool invocation requested by the model, arguments as raw
// JSON.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ChatRequest struct {
	Model    string
	System   string
	Messages []ChatMessage
	Tools    []ToolSpec
}

// ChatResponse may carry text, tool calls, or both. An empty response is an
// error state at the call site, not a crash.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type VectorMatch struct {
	ID      string
	Score   float64
	Payload map[string]string
}

// VectorStore is the similarity-search capability. Collections use cosine
// distance; Search returns matches at or above the score threshold, best
// first.
type VectorStore interface {
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, name string, dimensions int) error
	Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]string) error
	Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64) ([]VectorMatch, error)
}

type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// WebSearchClient returns an empty result set on any failure; it never
// propagates an error.
type WebSearchClient interface {
	Search(ctx context.Context, query string, count int) []SearchResult
}
