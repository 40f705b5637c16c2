package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
	"github.com/noesis-dev/noesis/internal/store"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
)

// ToolKind is the closed set of tools agents can call. Dispatch is a
// single exhaustive switch; unknown names are errors, not extensions.
type ToolKind string

const (
	ToolMemorySearch    ToolKind = "memory_search"
	ToolMemorySynthesis ToolKind = "memory_synthesis"
	ToolConceptLookup   ToolKind = "concept_lookup"
	ToolWebSearch       ToolKind = "web_search"
)

var ErrUnknownTool = errors.New("unknown tool")

type MemorySearchParams struct {
	Query string   `json:"query"`
	Types []string `json:"types,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

type SynthesisParams struct {
	Topic string `json:"topic"`
	Limit int    `json:"limit,omitempty"`
}

type ConceptLookupParams struct {
	Name string `json:"name"`
}

type WebSearchParams struct {
	Query string `json:"query"`
	Count int    `json:"count,omitempty"`
}

// ToolResult is the structured outcome of one tool invocation.
type ToolResult struct {
	Kind      ToolKind
	Summary   string
	MemoryIDs []string
	Insights  []domain.Insight
}

func toolSpec(k ToolKind) domain.ToolSpec {
	switch k {
	case ToolMemorySearch:
		return domain.ToolSpec{
			Name:        string(k),
			Description: "Search the layered memory store for relevant prior ground.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {Type: jsonschema.String, Description: "What to search for."},
					"types": {
						Type:        jsonschema.Array,
						Description: "Memory types to search: episodic, semantic, procedural.",
						Items:       &jsonschema.Definition{Type: jsonschema.String},
					},
					"limit": {Type: jsonschema.Integer, Description: "Maximum results."},
				},
				Required: []string{"query"},
			},
		}
	case ToolMemorySynthesis:
		return domain.ToolSpec{
			Name:        string(k),
			Description: "Retrieve memories around a topic and synthesize patterns, contradictions, and candidate insights.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"topic": {Type: jsonschema.String, Description: "The topic to synthesize around."},
					"limit": {Type: jsonschema.Integer, Description: "Maximum memories to draw on."},
				},
				Required: []string{"topic"},
			},
		}
	case ToolConceptLookup:
		return domain.ToolSpec{
			Name:        string(k),
			Description: "Look up a philosophical concept by name.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"name": {Type: jsonschema.String, Description: "The concept name."},
				},
				Required: []string{"name"},
			},
		}
	case ToolWebSearch:
		return domain.ToolSpec{
			Name:        string(k),
			Description: "Search the web for external sources on a question.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {Type: jsonschema.String, Description: "The query to search for."},
					"count": {Type: jsonschema.Integer, Description: "Number of results."},
				},
				Required: []string{"query"},
			},
		}
	}
	return domain.ToolSpec{Name: string(k)}
}

// ToolsFor returns the tool set available to a role: the questioner probes
// existing ground, the explorer additionally synthesizes and reaches out.
func ToolsFor(role domain.AgentRole) []domain.ToolSpec {
	kinds := []ToolKind{ToolMemorySearch, ToolConceptLookup}
	if role == domain.AgentExplorer {
		kinds = []ToolKind{ToolMemorySearch, ToolMemorySynthesis, ToolConceptLookup, ToolWebSearch}
	}
	specs := make([]domain.ToolSpec, 0, len(kinds))
	for _, k := range kinds {
		specs = append(specs, toolSpec(k))
	}
	return specs
}

// ToolRunner executes model-requested tool calls. The runner holds no
// per-call state.
type ToolRunner struct {
	memories *MemoryManager
	concepts domain.ConceptStore
	web      domain.WebSearchClient
	logger   *zap.Logger
}

func NewToolRunner(memories *MemoryManager, concepts domain.ConceptStore, web domain.WebSearchClient, logger *zap.Logger) *ToolRunner {
	return &ToolRunner{
		memories: memories,
		concepts: concepts,
		web:      web,
		logger:   logger,
	}
}

// Execute dispatches one tool call. Parameter decoding errors and unknown
// tools surface as errors for the per-tool log entry; the caller isolates
// them from the rest of the turn.
func (r *ToolRunner) Execute(ctx context.Context, runID uuid.UUID, rc RetrievalContext, call domain.ToolCall) (*ToolResult, error) {
	r.logger.Info("executing tool", zap.String("tool", call.Name))

	switch ToolKind(call.Name) {
	case ToolMemorySearch:
		params, err := decodeParams[MemorySearchParams](call.Arguments)
		if err != nil {
			return nil, err
		}
		return r.memorySearch(ctx, rc, params)

	case ToolMemorySynthesis:
		params, err := decodeParams[SynthesisParams](call.Arguments)
		if err != nil {
			return nil, err
		}
		return r.memorySynthesis(ctx, runID, rc, params)

	case ToolConceptLookup:
		params, err := decodeParams[ConceptLookupParams](call.Arguments)
		if err != nil {
			return nil, err
		}
		return r.conceptLookup(ctx, params)

	case ToolWebSearch:
		params, err := decodeParams[WebSearchParams](call.Arguments)
		if err != nil {
			return nil, err
		}
		return r.webSearch(ctx, params)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
}

func (r *ToolRunner) memorySearch(ctx context.Context, rc RetrievalContext, params MemorySearchParams) (*ToolResult, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("memory_search requires a query")
	}

	var types []domain.MemoryType
	for _, t := range params.Types {
		if normalized, ok := domain.NormalizeMemoryType(t); ok {
			types = append(types, normalized)
		}
	}

	results := r.memories.Retrieve(ctx, params.Query, rc, types, params.Limit)

	out := &ToolResult{Kind: ToolMemorySearch}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d memories found", len(results))
	for _, res := range results {
		if res.ID != uuid.Nil {
			out.MemoryIDs = append(out.MemoryIDs, res.ID.String())
		}
		fmt.Fprintf(&sb, "\n- [%s %.2f] %s", res.Type, res.Score, truncate(res.Content, 160))
	}
	out.Summary = sb.String()
	return out, nil
}

func (r *ToolRunner) memorySynthesis(ctx context.Context, runID uuid.UUID, rc RetrievalContext, params SynthesisParams) (*ToolResult, error) {
	if strings.TrimSpace(params.Topic) == "" {
		return nil, fmt.Errorf("memory_synthesis requires a topic")
	}
	if params.Limit <= 0 {
		params.Limit = 10
	}

	candidates := r.memories.Retrieve(ctx, params.Topic, rc, nil, params.Limit)
	plain := make([]domain.Memory, 0, len(candidates))
	out := &ToolResult{Kind: ToolMemorySynthesis}
	for _, c := range candidates {
		plain = append(plain, c.Memory)
		if c.ID != uuid.Nil {
			out.MemoryIDs = append(out.MemoryIDs, c.ID.String())
		}
	}

	insights, err := r.memories.Synthesize(ctx, runID, plain, rc.Topic)
	if err != nil {
		return nil, err
	}
	out.Insights = insights

	var sb strings.Builder
	fmt.Fprintf(&sb, "synthesized %d insights from %d memories", len(insights), len(plain))
	for _, ins := range insights {
		fmt.Fprintf(&sb, "\n- (%s) %s", ins.Significance, truncate(ins.Content, 160))
	}
	out.Summary = sb.String()
	return out, nil
}

func (r *ToolRunner) conceptLookup(ctx context.Context, params ConceptLookupParams) (*ToolResult, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("concept_lookup requires a name")
	}

	c, err := r.concepts.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &ToolResult{
				Kind:    ToolConceptLookup,
				Summary: fmt.Sprintf("concept %q is not yet known", name),
			}, nil
		}
		return nil, fmt.Errorf("concept lookup: %w", err)
	}

	return &ToolResult{
		Kind: ToolConceptLookup,
		Summary: fmt.Sprintf("%s (exploration level %d): %s\nrelated: %s",
			c.Name, c.ExplorationLevel, c.Definition, strings.Join(c.RelatedConcepts, ", ")),
	}, nil
}

func (r *ToolRunner) webSearch(ctx context.Context, params WebSearchParams) (*ToolResult, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("web_search requires a query")
	}
	if params.Count <= 0 {
		params.Count = 3
	}

	results := r.web.Search(ctx, params.Query, params.Count)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d results", len(results))
	for _, res := range results {
		fmt.Fprintf(&sb, "\n- %s (%s): %s", res.Title, res.URL, truncate(res.Description, 200))
	}
	return &ToolResult{Kind: ToolWebSearch, Summary: sb.String()}, nil
}

func decodeParams[T any](raw string) (T, error) {
	var out T
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("decode tool arguments: %w", err)
	}
	return out, nil
}

// truncate shortens model-generated text on rune boundaries.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
