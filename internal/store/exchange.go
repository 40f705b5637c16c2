package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/domain"
)

type ExchangeStore struct {
	db *pgxpool.Pool
}

func NewExchangeStore(db *pgxpool.Pool) *ExchangeStore {
	return &ExchangeStore{db: db}
}

func (s *ExchangeStore) Create(ctx context.Context, ex *domain.DialogueExchange) error {
	var response []byte
	if ex.Response != nil {
		b, err := json.Marshal(ex.Response)
		if err != nil {
			return fmt.Errorf("marshal agent response: %w", err)
		}
		response = b
	}

	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO dialogue_exchanges (id, run_id, agent, type, content, depth, related_memories, response)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		ex.ID, ex.RunID, ex.Agent, ex.Type, ex.Content, ex.Depth, ex.RelatedMemories, response,
	).Scan(&ex.CreatedAt)
}

func (s *ExchangeStore) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM dialogue_exchanges WHERE run_id = $1`,
		runID,
	).Scan(&count)
	return count, err
}

func (s *ExchangeStore) ListRecent(ctx context.Context, runID uuid.UUID, limit int) ([]domain.DialogueExchange, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, run_id, agent, type, content, depth, related_memories, response, created_at
		 FROM dialogue_exchanges
		 WHERE run_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var results []domain.DialogueExchange
	for rows.Next() {
		var ex domain.DialogueExchange
		var response []byte
		if err := rows.Scan(&ex.ID, &ex.RunID, &ex.Agent, &ex.Type, &ex.Content, &ex.Depth, &ex.RelatedMemories, &response, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}
		if len(response) > 0 {
			var ar domain.AgentResponse
			if err := json.Unmarshal(response, &ar); err == nil {
				ex.Response = &ar
			}
		}
		results = append(results, ex)
	}
	return results, rows.Err()
}
