package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/domain"
)

type RunStore struct {
	db *pgxpool.Pool
}

func NewRunStore(db *pgxpool.Pool) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Create(ctx context.Context, r *domain.Run) error {
	if r.Status == "" {
		r.Status = domain.RunActive
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO runs (topic, status)
		 VALUES ($1, $2)
		 RETURNING id, started_at, last_active_at`,
		r.Topic, r.Status,
	).Scan(&r.ID, &r.StartedAt, &r.LastActiveAt)
}

// MostActive returns the run with the most persisted exchanges, so a
// restart continues the richest existing dialogue instead of opening a new
// one. Runs with no exchanges yet still qualify.
func (s *RunStore) MostActive(ctx context.Context) (*domain.Run, error) {
	r := &domain.Run{}
	err := s.db.QueryRow(ctx,
		`SELECT r.id, r.topic, r.status, r.started_at, r.last_active_at
		 FROM runs r
		 LEFT JOIN dialogue_exchanges e ON e.run_id = r.id
		 GROUP BY r.id
		 ORDER BY COUNT(e.id) DESC, r.last_active_at DESC
		 LIMIT 1`,
	).Scan(&r.ID, &r.Topic, &r.Status, &r.StartedAt, &r.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *RunStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE runs SET status = $2, last_active_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RunStore) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE runs SET last_active_at = NOW() WHERE id = $1`,
		id,
	)
	return err
}
