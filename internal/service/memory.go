package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
	"github.com/noesis-dev/noesis/internal/llm"
	"github.com/noesis-dev/noesis/internal/store"
	"go.uber.org/zap"
)

var (
	ErrConceptNameEmpty = errors.New("concept name is required")
	ErrPatternNameEmpty = errors.New("pattern name is required")
)

const (
	// SimilarityThreshold is the minimum cosine similarity for a vector
	// match to count.
	SimilarityThreshold = 0.5
	// FallbackScore is the neutral relevance assigned to substring-search
	// results on the degraded path.
	FallbackScore = 0.5
	// DefaultRetrieveLimit bounds retrieval when the caller passes none.
	DefaultRetrieveLimit = 5
	// LowSignificanceTTL is how long low-significance episodic memories
	// are kept before cleanup.
	LowSignificanceTTL = 24 * time.Hour
	// ProcedureRefreshWindow is the recent-use window whose patterns get
	// their last-used timestamps refreshed during cleanup.
	ProcedureRefreshWindow = time.Hour
)

// collectionFor names the vector collection backing a memory type.
func collectionFor(t domain.MemoryType) string {
	return string(t) + "_memories"
}

// MemoryManager owns durable storage and retrieval across the four memory
// types. The relational store is authoritative; the vector store is a
// derived index whose failures only degrade retrieval fidelity.
type MemoryManager struct {
	memories   domain.MemoryStore
	concepts   domain.ConceptStore
	procedures domain.ProcedureStore
	vectors    domain.VectorStore
	embedder   domain.EmbeddingClient
	chat       domain.ChatClient
	model      string
	logger     *zap.Logger
}

func NewMemoryManager(
	memories domain.MemoryStore,
	concepts domain.ConceptStore,
	procedures domain.ProcedureStore,
	vectors domain.VectorStore,
	embedder domain.EmbeddingClient,
	chat domain.ChatClient,
	model string,
	logger *zap.Logger,
) *MemoryManager {
	return &MemoryManager{
		memories:   memories,
		concepts:   concepts,
		procedures: procedures,
		vectors:    vectors,
		embedder:   embedder,
		chat:       chat,
		model:      model,
		logger:     logger,
	}
}

// EnsureCollections idempotently creates the vector collections for the
// vector-backed types. Creation failures are logged, not fatal; later
// operations against a missing collection fail and are caught at the call
// site.
func (m *MemoryManager) EnsureCollections(ctx context.Context) {
	existing := make(map[string]bool)
	names, err := m.vectors.ListCollections(ctx)
	if err != nil {
		m.logger.Warn("failed to list vector collections", zap.Error(err))
	}
	for _, n := range names {
		existing[n] = true
	}

	for _, t := range domain.VectorBackedTypes() {
		name := collectionFor(t)
		if existing[name] {
			continue
		}
		if err := m.vectors.CreateCollection(ctx, name, m.embedder.Dimensions()); err != nil {
			m.logger.Warn("failed to create vector collection", zap.String("collection", name), zap.Error(err))
		}
	}
}

// StoreEpisodic persists an exchange as an episodic memory. The relational
// write is authoritative; the vector upsert is skipped for low significance
// and its failures never roll the relational write back.
func (m *MemoryManager) StoreEpisodic(ctx context.Context, runID uuid.UUID, ex domain.DialogueExchange, sig domain.Significance) (*domain.Memory, error) {
	mem := &domain.Memory{
		RunID:        runID,
		Type:         domain.MemoryTypeEpisodic,
		Content:      ex.Content,
		Significance: sig,
		Tags:         append([]string{string(ex.Agent), string(ex.Type)}, extractConcepts(ex.Content)...),
		Metadata: map[string]any{
			"exchange_id": ex.ID.String(),
			"depth":       ex.Depth,
		},
	}
	if err := m.memories.Create(ctx, mem); err != nil {
		return nil, fmt.Errorf("store episodic memory: %w", err)
	}

	if sig == domain.SignificanceLow {
		return mem, nil
	}
	m.indexMemory(ctx, mem)
	return mem, nil
}

// StoreSemantic upserts a concept by name with max-merge semantics: the
// exploration level only ever rises, relations and sources accumulate.
func (m *MemoryManager) StoreSemantic(ctx context.Context, c domain.PhilosophicalConcept, source string) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return ErrConceptNameEmpty
	}
	if c.ExplorationLevel < 1 {
		c.ExplorationLevel = 1
	}
	if c.ExplorationLevel > 10 {
		c.ExplorationLevel = 10
	}
	if source != "" {
		c.Sources = appendUnique(c.Sources, source)
	}

	inserted := false
	existing, err := m.concepts.GetByName(ctx, c.Name)
	switch {
	case err == nil:
		if existing.ExplorationLevel > c.ExplorationLevel {
			c.ExplorationLevel = existing.ExplorationLevel
		}
		if c.Definition == "" {
			c.Definition = existing.Definition
		}
		for _, r := range existing.RelatedConcepts {
			c.RelatedConcepts = appendUnique(c.RelatedConcepts, r)
		}
		for _, s := range existing.Sources {
			c.Sources = appendUnique(c.Sources, s)
		}
	case errors.Is(err, store.ErrNotFound):
		inserted = true
	default:
		return fmt.Errorf("look up concept: %w", err)
	}

	if err := m.concepts.Upsert(ctx, &c); err != nil {
		return fmt.Errorf("upsert concept: %w", err)
	}

	content := c.Name + ": " + c.Definition
	mem := &domain.Memory{
		Type:         domain.MemoryTypeSemantic,
		Content:      content,
		Significance: domain.SignificanceMedium,
		Tags:         append([]string{c.Name}, c.RelatedConcepts...),
	}
	if inserted {
		if err := m.memories.Create(ctx, mem); err != nil {
			m.logger.Warn("failed to index concept in memories", zap.String("concept", c.Name), zap.Error(err))
		}
	}

	emb, err := m.embedder.Embed(ctx, content)
	if err != nil {
		m.logger.Warn("embedding failed, concept stored without vector", zap.String("concept", c.Name), zap.Error(err))
		return nil
	}
	payload := map[string]string{
		"memory_id":    mem.ID.String(),
		"name":         c.Name,
		"type":         string(domain.MemoryTypeSemantic),
		"content":      content,
		"tags":         strings.Join(mem.Tags, ","),
		"significance": string(domain.SignificanceMedium),
		"created_at":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := m.vectors.Upsert(ctx, collectionFor(domain.MemoryTypeSemantic), "semantic:"+c.Name, emb, payload); err != nil {
		m.logger.Warn("vector upsert failed for concept", zap.String("concept", c.Name), zap.Error(err))
	}
	return nil
}

// StoreProcedural upserts a strategy pattern by name. Re-insertion averages
// effectiveness with the stored value and increments the usage counter.
func (m *MemoryManager) StoreProcedural(ctx context.Context, p domain.ProceduralPattern) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return ErrPatternNameEmpty
	}
	if p.Effectiveness < 0 {
		p.Effectiveness = 0
	}
	if p.Effectiveness > 1 {
		p.Effectiveness = 1
	}

	inserted := false
	existing, err := m.procedures.GetByName(ctx, p.Name)
	switch {
	case err == nil:
		p.Effectiveness = (existing.Effectiveness + p.Effectiveness) / 2
		p.UsageCount = existing.UsageCount + 1
		if p.Description == "" {
			p.Description = existing.Description
		}
	case errors.Is(err, store.ErrNotFound):
		p.UsageCount = 1
		inserted = true
	default:
		return fmt.Errorf("look up pattern: %w", err)
	}

	if err := m.procedures.Upsert(ctx, &p); err != nil {
		return fmt.Errorf("upsert pattern: %w", err)
	}

	content := p.Name + ": " + p.Description
	mem := &domain.Memory{
		Type:         domain.MemoryTypeProcedural,
		Content:      content,
		Significance: domain.SignificanceMedium,
		Tags:         []string{p.Name},
	}
	if inserted {
		if err := m.memories.Create(ctx, mem); err != nil {
			m.logger.Warn("failed to index pattern in memories", zap.String("pattern", p.Name), zap.Error(err))
		}
	}

	emb, err := m.embedder.Embed(ctx, content)
	if err != nil {
		m.logger.Warn("embedding failed, pattern stored without vector", zap.String("pattern", p.Name), zap.Error(err))
		return nil
	}
	payload := map[string]string{
		"memory_id":    mem.ID.String(),
		"name":         p.Name,
		"type":         string(domain.MemoryTypeProcedural),
		"content":      content,
		"tags":         strings.Join(mem.Tags, ","),
		"significance": string(domain.SignificanceMedium),
		"created_at":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := m.vectors.Upsert(ctx, collectionFor(domain.MemoryTypeProcedural), "procedural:"+p.Name, emb, payload); err != nil {
		m.logger.Warn("vector upsert failed for pattern", zap.String("pattern", p.Name), zap.Error(err))
	}
	return nil
}

// Retrieve runs similarity search across the requested types, re-ranks the
// union contextually, and falls back to substring search when similarity
// yields nothing. It never returns an error for empty or degraded results;
// only programmer errors surface.
func (m *MemoryManager) Retrieve(ctx context.Context, query string, rc RetrievalContext, types []domain.MemoryType, limit int) []domain.MemoryWithScore {
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}

	searchTypes := filterVectorBacked(types)
	if len(searchTypes) == 0 {
		searchTypes = domain.VectorBackedTypes()
	}
	perType := (limit + len(searchTypes) - 1) / len(searchTypes)

	emb, err := m.embedder.Embed(ctx, query)
	if err != nil {
		// Retrieval cannot proceed without a query vector; this aborts
		// the search rather than triggering the fallback.
		m.logger.Warn("query embedding failed, aborting retrieval", zap.Error(err))
		return nil
	}

	var union []domain.MemoryWithScore
	for _, t := range searchTypes {
		matches, err := m.vectors.Search(ctx, collectionFor(t), emb, perType, SimilarityThreshold)
		if err != nil {
			m.logger.Warn("vector search failed", zap.String("type", string(t)), zap.Error(err))
			continue
		}
		m.logger.Debug("vector search", zap.String("type", string(t)), zap.Int("matches", len(matches)))
		for _, match := range matches {
			union = append(union, memoryFromMatch(t, match))
		}
	}

	if len(union) > 0 {
		ranked := rankByContext(union, rc, time.Now())
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}
		return ranked
	}

	// Degraded path: substring match against stored content by recency.
	m.logger.Info("similarity search empty, using content fallback", zap.String("query", query))
	rows, err := m.memories.SearchContent(ctx, query, searchTypes, limit)
	if err != nil {
		m.logger.Warn("content fallback failed", zap.Error(err))
		return nil
	}
	results := make([]domain.MemoryWithScore, 0, len(rows))
	for _, row := range rows {
		results = append(results, domain.MemoryWithScore{Memory: row, Score: FallbackScore})
	}
	return results
}

type synthesisItem struct {
	Content      string   `json:"content"`
	Significance string   `json:"significance"`
	Concepts     []string `json:"concepts"`
}

// Synthesize asks the model to surface patterns, contradictions, and
// candidate insights across the given memories. Malformed output yields an
// empty set, logged.
func (m *MemoryManager) Synthesize(ctx context.Context, runID uuid.UUID, memories []domain.Memory, dialogueContext string) ([]domain.Insight, error) {
	if len(memories) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for i, mem := range memories {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, mem.Type, mem.Content)
	}

	resp, err := m.chat.Complete(ctx, domain.ChatRequest{
		Model:  m.model,
		System: "You synthesize memories into insights.",
		Messages: []domain.ChatMessage{
			{Role: "user", Content: llm.SynthesisPrompt(dialogueContext, sb.String())},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis completion: %w", err)
	}

	items, err := decodeModelJSON[[]synthesisItem](resp.Content)
	if err != nil {
		m.logger.Warn("synthesis output unparseable", zap.Error(err))
		return nil, nil
	}

	var insights []domain.Insight
	for _, item := range items {
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		sig := domain.SignificanceMedium
		if domain.ValidSignificance(item.Significance) {
			sig = domain.Significance(item.Significance)
		}
		insights = append(insights, domain.Insight{
			ID:              uuid.New(),
			RunID:           runID,
			Content:         strings.TrimSpace(item.Content),
			Significance:    sig,
			RelatedConcepts: item.Concepts,
			GeneratedBy:     domain.AgentSynthesis,
		})
	}
	return insights, nil
}

// Cleanup drops stale low-significance episodic memories and refreshes
// recently used procedural patterns. Failures are logged; cleanup never
// escalates.
func (m *MemoryManager) Cleanup(ctx context.Context, runID uuid.UUID) {
	now := time.Now()

	deleted, err := m.memories.DeleteLowSignificanceBefore(ctx, runID, now.Add(-LowSignificanceTTL))
	if err != nil {
		m.logger.Warn("memory cleanup failed", zap.Error(err))
	} else if deleted > 0 {
		m.logger.Info("cleaned up low-significance memories", zap.Int64("deleted", deleted))
	}

	refreshed, err := m.procedures.RefreshUsedSince(ctx, now.Add(-ProcedureRefreshWindow))
	if err != nil {
		m.logger.Warn("pattern refresh failed", zap.Error(err))
	} else if refreshed > 0 {
		m.logger.Debug("refreshed recently used patterns", zap.Int64("refreshed", refreshed))
	}
}

// indexMemory embeds and upserts a memory into its vector collection,
// degrading to relational-only on failure.
func (m *MemoryManager) indexMemory(ctx context.Context, mem *domain.Memory) {
	emb, err := m.embedder.Embed(ctx, mem.Content)
	if err != nil {
		m.logger.Warn("embedding failed, memory stored without vector", zap.String("memory_id", mem.ID.String()), zap.Error(err))
		return
	}

	payload := map[string]string{
		"memory_id":    mem.ID.String(),
		"type":         string(mem.Type),
		"content":      mem.Content,
		"tags":         strings.Join(mem.Tags, ","),
		"significance": string(mem.Significance),
		"created_at":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := m.vectors.Upsert(ctx, collectionFor(mem.Type), mem.ID.String(), emb, payload); err != nil {
		m.logger.Warn("vector upsert failed", zap.String("memory_id", mem.ID.String()), zap.Error(err))
	}
}

// memoryFromMatch rebuilds a scored memory from a vector payload without a
// relational round trip.
func memoryFromMatch(t domain.MemoryType, match domain.VectorMatch) domain.MemoryWithScore {
	mem := domain.Memory{
		Type:    t,
		Content: match.Payload["content"],
	}
	if id, err := uuid.Parse(match.Payload["memory_id"]); err == nil {
		mem.ID = id
	}
	if tags := match.Payload["tags"]; tags != "" {
		mem.Tags = strings.Split(tags, ",")
	}
	if sig := match.Payload["significance"]; domain.ValidSignificance(sig) {
		mem.Significance = domain.Significance(sig)
	} else {
		mem.Significance = domain.SignificanceMedium
	}
	if ts, err := time.Parse(time.RFC3339, match.Payload["created_at"]); err == nil {
		mem.CreatedAt = ts
	}
	return domain.MemoryWithScore{Memory: mem, Score: match.Score}
}

func filterVectorBacked(types []domain.MemoryType) []domain.MemoryType {
	var out []domain.MemoryType
	for _, t := range types {
		for _, v := range domain.VectorBackedTypes() {
			if t == v {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
