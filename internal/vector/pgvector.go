package vector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

// PgvectorStore keeps similarity collections in Postgres. Collections are
// rows in a registry table; entries share one table keyed by (collection,
// id). All collections use cosine distance and a uniform dimensionality
// fixed by the embedding column.
type PgvectorStore struct {
	db *pgxpool.Pool
}

func NewPgvectorStore(db *pgxpool.Pool) *PgvectorStore {
	return &PgvectorStore{db: db}
}

func (s *PgvectorStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT name FROM vector_collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *PgvectorStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO vector_collections (name, dimensions)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO NOTHING`,
		name, dimensions,
	)
	return err
}

func (s *PgvectorStore) Upsert(ctx context.Context, collection, id string, vec []float32, payload map[string]string) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO vector_entries (collection, id, embedding, payload)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection, id) DO UPDATE
		 SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`,
		collection, id, pgvector.NewVector(vec), payloadJSON,
	)
	return err
}

func (s *PgvectorStore) Search(ctx context.Context, collection string, vec []float32, limit int, threshold float64) ([]domain.VectorMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	v := pgvector.NewVector(vec)
	rows, err := s.db.Query(ctx,
		`SELECT id, payload, 1 - (embedding <=> $2) AS score
		 FROM vector_entries
		 WHERE collection = $1 AND 1 - (embedding <=> $2) >= $3
		 ORDER BY embedding <=> $2
		 LIMIT $4`,
		collection, v, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var matches []domain.VectorMatch
	for rows.Next() {
		var m domain.VectorMatch
		var payloadJSON []byte
		if err := rows.Scan(&m.ID, &payloadJSON, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &m.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
