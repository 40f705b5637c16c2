package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/domain"
)

type InsightStore struct {
	db *pgxpool.Pool
}

func NewInsightStore(db *pgxpool.Pool) *InsightStore {
	return &InsightStore{db: db}
}

func (s *InsightStore) Create(ctx context.Context, i *domain.Insight) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Significance == "" {
		i.Significance = domain.SignificanceMedium
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO insights (id, run_id, content, significance, related_concepts, generated_by, verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		i.ID, i.RunID, i.Content, i.Significance, i.RelatedConcepts, i.GeneratedBy, i.Verified,
	).Scan(&i.CreatedAt)
}

func (s *InsightStore) ListRecent(ctx context.Context, runID uuid.UUID, limit int) ([]domain.Insight, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, run_id, content, significance, related_concepts, generated_by, verified, created_at
		 FROM insights
		 WHERE run_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var results []domain.Insight
	for rows.Next() {
		var i domain.Insight
		if err := rows.Scan(&i.ID, &i.RunID, &i.Content, &i.Significance, &i.RelatedConcepts, &i.GeneratedBy, &i.Verified, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan insight row: %w", err)
		}
		results = append(results, i)
	}
	return results, rows.Err()
}
