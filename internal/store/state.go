package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/domain"
)

type StateStore struct {
	db *pgxpool.Pool
}

func NewStateStore(db *pgxpool.Pool) *StateStore {
	return &StateStore{db: db}
}

// Upsert writes the full in-memory state snapshot, keyed by state id.
// Insights live in their own table; the row carries only the working
// context and question thread.
func (s *StateStore) Upsert(ctx context.Context, st *domain.DialogueState) error {
	contextJSON, err := json.Marshal(st.Context)
	if err != nil {
		return fmt.Errorf("marshal working memory: %w", err)
	}
	threadJSON, err := json.Marshal(st.Thread)
	if err != nil {
		return fmt.Errorf("marshal question thread: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO dialogue_states (id, run_id, current_agent, phase, depth, context, thread, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET current_agent = EXCLUDED.current_agent,
		     phase = EXCLUDED.phase,
		     depth = EXCLUDED.depth,
		     context = EXCLUDED.context,
		     thread = EXCLUDED.thread,
		     updated_at = NOW()`,
		st.ID, st.RunID, st.CurrentAgent, st.Phase, st.Depth, contextJSON, threadJSON,
	)
	return err
}

// LatestByRun restores the most recent persisted state. The caller is
// expected to Sanitize the result; a crash between an exchange write and
// the state write can leave this one step stale.
func (s *StateStore) LatestByRun(ctx context.Context, runID uuid.UUID) (*domain.DialogueState, error) {
	st := &domain.DialogueState{}
	var contextJSON, threadJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, run_id, current_agent, phase, depth, context, thread
		 FROM dialogue_states
		 WHERE run_id = $1
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		runID,
	).Scan(&st.ID, &st.RunID, &st.CurrentAgent, &st.Phase, &st.Depth, &contextJSON, &threadJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(contextJSON, &st.Context); err != nil {
		return nil, fmt.Errorf("unmarshal working memory: %w", err)
	}
	if err := json.Unmarshal(threadJSON, &st.Thread); err != nil {
		return nil, fmt.Errorf("unmarshal question thread: %w", err)
	}
	return st, nil
}
