package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/domain"
)

type ProcedureStore struct {
	db *pgxpool.Pool
}

func NewProcedureStore(db *pgxpool.Pool) *ProcedureStore {
	return &ProcedureStore{db: db}
}

// Upsert writes a pattern keyed by name. Reinforcement semantics
// (effectiveness averaging, usage increment) are applied by the caller.
func (s *ProcedureStore) Upsert(ctx context.Context, p *domain.ProceduralPattern) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO procedural_patterns (name, description, effectiveness, usage_count, last_used_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (name) DO UPDATE
		 SET description = EXCLUDED.description,
		     effectiveness = EXCLUDED.effectiveness,
		     usage_count = EXCLUDED.usage_count,
		     last_used_at = NOW()
		 RETURNING created_at, last_used_at`,
		p.Name, p.Description, p.Effectiveness, p.UsageCount,
	).Scan(&p.CreatedAt, &p.LastUsedAt)
}

func (s *ProcedureStore) GetByName(ctx context.Context, name string) (*domain.ProceduralPattern, error) {
	p := &domain.ProceduralPattern{}
	err := s.db.QueryRow(ctx,
		`SELECT name, description, effectiveness, usage_count, last_used_at, created_at
		 FROM procedural_patterns WHERE name = $1`,
		name,
	).Scan(&p.Name, &p.Description, &p.Effectiveness, &p.UsageCount, &p.LastUsedAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *ProcedureStore) RefreshUsedSince(ctx context.Context, since time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE procedural_patterns SET last_used_at = NOW() WHERE last_used_at >= $1`,
		since,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
