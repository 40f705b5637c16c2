package domain

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	// RunActive marks a run currently being stepped.
	RunActive RunStatus = "active"
	// RunPaused marks a stopped run. Runs are never completed; a paused
	// run stays resumable indefinitely.
	RunPaused RunStatus = "paused"
)

type Run struct {
	ID           uuid.UUID `json:"id"`
	Topic        string    `json:"topic"`
	Status       RunStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// IdentitySnapshot is a periodic structured summary of the system's
// apparent evolving self-model.
type IdentitySnapshot struct {
	ID        uuid.UUID `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Iteration int       `json:"iteration"`
	Summary   string    `json:"summary"`
	Traits    []string  `json:"traits,omitempty"`
	Focus     string    `json:"focus,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
