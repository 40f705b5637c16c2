package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/domain"
)

type SnapshotStore struct {
	db *pgxpool.Pool
}

func NewSnapshotStore(db *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Create(ctx context.Context, snap *domain.IdentitySnapshot) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO identity_snapshots (id, run_id, iteration, summary, traits, focus)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		snap.ID, snap.RunID, snap.Iteration, snap.Summary, snap.Traits, snap.Focus,
	).Scan(&snap.CreatedAt)
}

func (s *SnapshotStore) LatestByRun(ctx context.Context, runID uuid.UUID) (*domain.IdentitySnapshot, error) {
	snap := &domain.IdentitySnapshot{}
	err := s.db.QueryRow(ctx,
		`SELECT id, run_id, iteration, summary, traits, focus, created_at
		 FROM identity_snapshots
		 WHERE run_id = $1
		 ORDER BY iteration DESC
		 LIMIT 1`,
		runID,
	).Scan(&snap.ID, &snap.RunID, &snap.Iteration, &snap.Summary, &snap.Traits, &snap.Focus, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return snap, nil
}
