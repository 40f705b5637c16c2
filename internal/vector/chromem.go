package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/noesis-dev/noesis/internal/domain"
	chromem "github.com/philippgille/chromem-go"
)

// ChromemStore is an embedded vector store, persisted to a local directory.
// Useful for running without Postgres-side vector support; cosine
// similarity is chromem's default.
type ChromemStore struct {
	db *chromem.DB
	mu sync.RWMutex
}

func NewChromemStore(path string) (*ChromemStore, error) {
	if path == "" {
		return &ChromemStore{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &ChromemStore{db: db}, nil
}

func (s *ChromemStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.db.ListCollections() {
		names = append(names, name)
	}
	return names, nil
}

// CreateCollection is idempotent. Dimensionality is implied by the vectors
// written; chromem does not size collections up front.
func (s *ChromemStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (s *ChromemStore) Upsert(ctx context.Context, collection, id string, vec []float32, payload map[string]string) error {
	s.mu.Lock()
	col, err := s.db.GetOrCreateCollection(collection, nil, nil)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("get collection %s: %w", collection, err)
	}

	return col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   payload["content"],
		Embedding: vec,
		Metadata:  payload,
	})
}

func (s *ChromemStore) Search(ctx context.Context, collection string, vec []float32, limit int, threshold float64) ([]domain.VectorMatch, error) {
	s.mu.RLock()
	col := s.db.GetCollection(collection, nil)
	s.mu.RUnlock()
	if col == nil {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}

	// chromem rejects queries asking for more results than stored docs.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.QueryEmbedding(ctx, vec, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}

	var matches []domain.VectorMatch
	for _, r := range results {
		score := float64(r.Similarity)
		if score < threshold {
			continue
		}
		matches = append(matches, domain.VectorMatch{
			ID:      r.ID,
			Score:   score,
			Payload: r.Metadata,
		})
	}
	return matches, nil
}
