package vector

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/domain"
)

// Provider constants
const (
	ProviderPgvector = "pgvector"
	ProviderChromem  = "chromem"
)

// NewStore creates a vector store based on the provider name. pgvector
// shares the relational pool; chromem persists under path (in-memory when
// path is empty).
func NewStore(provider string, db *pgxpool.Pool, path string) (domain.VectorStore, error) {
	switch provider {
	case ProviderPgvector:
		if db == nil {
			return nil, fmt.Errorf("pgvector provider requires a database pool")
		}
		return NewPgvectorStore(db), nil

	case ProviderChromem:
		return NewChromemStore(path)

	default:
		return nil, fmt.Errorf("unknown vector provider: %s (valid options: pgvector, chromem)", provider)
	}
}
