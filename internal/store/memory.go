package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/domain"
)

type MemoryStore struct {
	db *pgxpool.Pool
}

func NewMemoryStore(db *pgxpool.Pool) *MemoryStore {
	return &MemoryStore{db: db}
}

func (s *MemoryStore) Create(ctx context.Context, m *domain.Memory) error {
	if m.Significance == "" {
		m.Significance = domain.SignificanceMedium
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO memories (id, run_id, type, content, significance, tags, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		m.ID, m.RunID, m.Type, m.Content, m.Significance, m.Tags, m.Metadata,
	).Scan(&m.CreatedAt)
}

// SearchContent is the degraded retrieval path when similarity search
// yields nothing: case-insensitive substring match ordered by recency.
func (s *MemoryStore) SearchContent(ctx context.Context, query string, types []domain.MemoryType, limit int) ([]domain.Memory, error) {
	if limit <= 0 {
		limit = 5
	}

	// A nil array disables the type filter; an empty one would match nothing.
	var typeNames []string
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, run_id, type, content, significance, tags, metadata, created_at
		 FROM memories
		 WHERE content ILIKE '%' || $1 || '%'
		   AND ($2::text[] IS NULL OR type = ANY($2))
		 ORDER BY created_at DESC
		 LIMIT $3`,
		strings.TrimSpace(query), typeNames, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("content search: %w", err)
	}
	defer rows.Close()

	var results []domain.Memory
	for rows.Next() {
		var m domain.Memory
		if err := rows.Scan(&m.ID, &m.RunID, &m.Type, &m.Content, &m.Significance, &m.Tags, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *MemoryStore) DeleteLowSignificanceBefore(ctx context.Context, runID uuid.UUID, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM memories
		 WHERE run_id = $1 AND type = $2 AND significance = $3 AND created_at < $4`,
		runID, domain.MemoryTypeEpisodic, domain.SignificanceLow, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
