package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MemoryType string

const (
	MemoryTypeEpisodic   MemoryType = "episodic"
	MemoryTypeSemantic   MemoryType = "semantic"
	MemoryTypeProcedural MemoryType = "procedural"
	MemoryTypeWorking    MemoryType = "working"
)

func ValidMemoryType(t string) bool {
	switch MemoryType(t) {
	case MemoryTypeEpisodic, MemoryTypeSemantic, MemoryTypeProcedural, MemoryTypeWorking:
		return true
	}
	return false
}

// NormalizeMemoryType maps model-supplied type names, including common
// synonyms, onto the closed MemoryType set.
func NormalizeMemoryType(t string) (MemoryType, bool) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "episodic", "episode", "episodes", "experience", "experiences":
		return MemoryTypeEpisodic, true
	case "semantic", "concept", "concepts", "fact", "facts":
		return MemoryTypeSemantic, true
	case "procedural", "procedure", "strategy", "strategies", "pattern", "patterns":
		return MemoryTypeProcedural, true
	case "working":
		return MemoryTypeWorking, true
	}
	return "", false
}

// VectorBackedTypes lists the memory types that have a vector collection.
// Working memory is in-process only and never hits the similarity store.
func VectorBackedTypes() []MemoryType {
	return []MemoryType{MemoryTypeEpisodic, MemoryTypeSemantic, MemoryTypeProcedural}
}

// Memory is the unified record persisted for every memory variant. The
// relational row is authoritative; the vector entry is a derived index.
type Memory struct {
	ID           uuid.UUID      `json:"id"`
	RunID        uuid.UUID      `json:"run_id,omitempty"`
	Type         MemoryType     `json:"type"`
	Content      string         `json:"content"`
	Significance Significance   `json:"significance"`
	Tags         []string       `json:"tags,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MemoryWithScore pairs a memory with a retrieval relevance score. The
// score is derived per query and is not part of the memory's identity.
type MemoryWithScore struct {
	Memory
	Score float64 `json:"score"`
}

// PhilosophicalConcept is a semantic memory payload, keyed by name.
// ExplorationLevel only ever grows (max-merge on re-insertion).
type PhilosophicalConcept struct {
	Name             string    `json:"name"`
	Definition       string    `json:"definition"`
	RelatedConcepts  []string  `json:"related_concepts,omitempty"`
	Sources          []string  `json:"sources,omitempty"`
	ExplorationLevel int       `json:"exploration_level"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ProceduralPattern is a named strategy reinforced by repeated use.
// Effectiveness stays in [0,1]; re-insertion averages it with the stored
// value and increments the usage counter.
type ProceduralPattern struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Effectiveness float64   `json:"effectiveness"`
	UsageCount    int       `json:"usage_count"`
	LastUsedAt    time.Time `json:"last_used_at"`
	CreatedAt     time.Time `json:"created_at"`
}
