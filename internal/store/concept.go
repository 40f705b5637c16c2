package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/domain"
)

type ConceptStore struct {
	db *pgxpool.Pool
}

func NewConceptStore(db *pgxpool.Pool) *ConceptStore {
	return &ConceptStore{db: db}
}

// Upsert writes a concept keyed by name. Merge semantics (max-merge on
// exploration level, set union on relations and sources) are applied by
// the caller before the write; this is a plain last-write-wins upsert.
func (s *ConceptStore) Upsert(ctx context.Context, c *domain.PhilosophicalConcept) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO semantic_concepts (name, definition, related_concepts, sources, exploration_level, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (name) DO UPDATE
		 SET definition = EXCLUDED.definition,
		     related_concepts = EXCLUDED.related_concepts,
		     sources = EXCLUDED.sources,
		     exploration_level = EXCLUDED.exploration_level,
		     updated_at = NOW()
		 RETURNING updated_at`,
		c.Name, c.Definition, c.RelatedConcepts, c.Sources, c.ExplorationLevel,
	).Scan(&c.UpdatedAt)
}

func (s *ConceptStore) GetByName(ctx context.Context, name string) (*domain.PhilosophicalConcept, error) {
	c := &domain.PhilosophicalConcept{}
	err := s.db.QueryRow(ctx,
		`SELECT name, definition, related_concepts, sources, exploration_level, updated_at
		 FROM semantic_concepts WHERE name = $1`,
		name,
	).Scan(&c.Name, &c.Definition, &c.RelatedConcepts, &c.Sources, &c.ExplorationLevel, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}
