package search

import (
	"context"
	"errors"
	"testing"

	ddg "github.com/sap-nocops/duckduckgogo/client"
	"go.uber.org/zap"
)

type fakeSearcher struct {
	hits    []ddg.Result
	err     error
	queries []string
	limits  []int
}

func (f *fakeSearcher) SearchLimited(query string, limit int) ([]ddg.Result, error) {
	f.queries = append(f.queries, query)
	f.limits = append(f.limits, limit)
	return f.hits, f.err
}

func TestSearchMapsResults(t *testing.T) {
	backend := &fakeSearcher{hits: []ddg.Result{
		{
			Title:        "Consciousness",
			FormattedUrl: "https://plato.stanford.edu/entries/consciousness/",
			Snippet:      "Perhaps no aspect of mind is more familiar.",
		},
		{
			Title:        "  Memory and Experience  ",
			FormattedUrl: "https://example.org/memory",
			Snippet:      " On the persistence of remembered states. ",
		},
		{},
	}}
	c := &DuckDuckGoClient{ddg: backend, logger: zap.NewNop()}

	results := c.Search(context.Background(), "what is consciousness", 5)
	if len(results) != 2 {
		t.Fatalf("expected blank hit dropped, got %d results", len(results))
	}
	if results[0].Title != "Consciousness" || results[0].URL != "https://plato.stanford.edu/entries/consciousness/" {
		t.Errorf("first result = %+v", results[0])
	}
	if results[0].Description != "Perhaps no aspect of mind is more familiar." {
		t.Errorf("description = %q", results[0].Description)
	}
	if results[1].Title != "Memory and Experience" || results[1].Description != "On the persistence of remembered states." {
		t.Errorf("expected whitespace trimmed, got %+v", results[1])
	}
	if len(backend.queries) != 1 || backend.queries[0] != "what is consciousness" {
		t.Errorf("backend queries = %v", backend.queries)
	}
	if backend.limits[0] != 5 {
		t.Errorf("limit = %d, want 5", backend.limits[0])
	}
}

func TestSearchDefaultsCount(t *testing.T) {
	backend := &fakeSearcher{}
	c := &DuckDuckGoClient{ddg: backend, logger: zap.NewNop()}

	c.Search(context.Background(), "anything", 0)
	if backend.limits[0] != defaultResultCount {
		t.Errorf("limit = %d, want %d", backend.limits[0], defaultResultCount)
	}
}

func TestSearchDegradesOnError(t *testing.T) {
	backend := &fakeSearcher{err: errors.New("blocked")}
	c := &DuckDuckGoClient{ddg: backend, logger: zap.NewNop()}

	if results := c.Search(context.Background(), "anything", 3); results != nil {
		t.Errorf("expected nil on backend error, got %v", results)
	}
}

func TestSearchHonorsCancelledContext(t *testing.T) {
	backend := &fakeSearcher{}
	c := &DuckDuckGoClient{ddg: backend, logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if results := c.Search(ctx, "anything", 3); results != nil {
		t.Errorf("expected nil on cancelled context, got %v", results)
	}
	if len(backend.queries) != 0 {
		t.Error("backend should not be called after cancellation")
	}
}
