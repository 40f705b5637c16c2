package domain

import (
	"time"

	"github.com/google/uuid"
)

type Significance string

const (
	SignificanceLow          Significance = "low"
	SignificanceMedium       Significance = "medium"
	SignificanceHigh         Significance = "high"
	SignificanceBreakthrough Significance = "breakthrough"
)

func ValidSignificance(s string) bool {
	switch Significance(s) {
	case SignificanceLow, SignificanceMedium, SignificanceHigh, SignificanceBreakthrough:
		return true
	}
	return false
}

// Rank orders the significance scale, low first.
func (s Significance) Rank() int {
	switch s {
	case SignificanceMedium:
		return 1
	case SignificanceHigh:
		return 2
	case SignificanceBreakthrough:
		return 3
	default:
		return 0
	}
}

// Bonus is the retrieval re-ranking bonus for this significance.
func (s Significance) Bonus() float64 {
	switch s {
	case SignificanceMedium:
		return 0.1
	case SignificanceHigh:
		return 0.2
	case SignificanceBreakthrough:
		return 0.3
	default:
		return 0
	}
}

// Insight is a derived realization. Never mutated after creation.
type Insight struct {
	ID              uuid.UUID    `json:"id"`
	RunID           uuid.UUID    `json:"run_id"`
	Content         string       `json:"content"`
	Significance    Significance `json:"significance"`
	RelatedConcepts []string     `json:"related_concepts,omitempty"`
	GeneratedBy     AgentRole    `json:"generated_by"`
	Verified        bool         `json:"verified"`
	CreatedAt       time.Time    `json:"created_at"`
}
