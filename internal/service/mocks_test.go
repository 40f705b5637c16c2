package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
	"github.com/noesis-dev/noesis/internal/store"
)

type fakeMemoryStore struct {
	created       []domain.Memory
	createErr     error
	searchQueries []string
	searchResults []domain.Memory
	searchErr     error
	deleted       int64
}

func (f *fakeMemoryStore) Create(ctx context.Context, m *domain.Memory) error {
	if f.createErr != nil {
		return f.createErr
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	f.created = append(f.created, *m)
	return nil
}

func (f *fakeMemoryStore) SearchContent(ctx context.Context, query string, types []domain.MemoryType, limit int) ([]domain.Memory, error) {
	f.searchQueries = append(f.searchQueries, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit > 0 && len(f.searchResults) > limit {
		return f.searchResults[:limit], nil
	}
	return f.searchResults, nil
}

func (f *fakeMemoryStore) DeleteLowSignificanceBefore(ctx context.Context, runID uuid.UUID, cutoff time.Time) (int64, error) {
	return f.deleted, nil
}

type fakeConceptStore struct {
	byName  map[string]domain.PhilosophicalConcept
	upserts []domain.PhilosophicalConcept
	getErr  error
}

func newFakeConceptStore() *fakeConceptStore {
	return &fakeConceptStore{byName: map[string]domain.PhilosophicalConcept{}}
}

func (f *fakeConceptStore) Upsert(ctx context.Context, c *domain.PhilosophicalConcept) error {
	f.upserts = append(f.upserts, *c)
	f.byName[c.Name] = *c
	return nil
}

func (f *fakeConceptStore) GetByName(ctx context.Context, name string) (*domain.PhilosophicalConcept, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.byName[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := c
	return &out, nil
}

type fakeProcedureStore struct {
	byName  map[string]domain.ProceduralPattern
	upserts []domain.ProceduralPattern
}

func newFakeProcedureStore() *fakeProcedureStore {
	return &fakeProcedureStore{byName: map[string]domain.ProceduralPattern{}}
}

func (f *fakeProcedureStore) Upsert(ctx context.Context, p *domain.ProceduralPattern) error {
	f.upserts = append(f.upserts, *p)
	f.byName[p.Name] = *p
	return nil
}

func (f *fakeProcedureStore) GetByName(ctx context.Context, name string) (*domain.ProceduralPattern, error) {
	p, ok := f.byName[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := p
	return &out, nil
}

func (f *fakeProcedureStore) RefreshUsedSince(ctx context.Context, since time.Time) (int64, error) {
	return 0, nil
}

type vectorUpsert struct {
	collection string
	id         string
	payload    map[string]string
}

type fakeVectorStore struct {
	collections []string
	upserts     []vectorUpsert
	matches     map[string][]domain.VectorMatch
	searchErr   error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{matches: map[string][]domain.VectorMatch{}}
}

func (f *fakeVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	return f.collections, nil
}

func (f *fakeVectorStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	f.collections = append(f.collections, name)
	return nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]string) error {
	f.upserts = append(f.upserts, vectorUpsert{collection: collection, id: id, payload: payload})
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64) ([]domain.VectorMatch, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := f.matches[collection]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeEmbedder struct {
	dims  int
	err   error
	calls []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, f.dims), nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

type fakeWebClient struct {
	results []domain.SearchResult
	queries []string
}

func (f *fakeWebClient) Search(ctx context.Context, query string, count int) []domain.SearchResult {
	f.queries = append(f.queries, query)
	if count > 0 && len(f.results) > count {
		return f.results[:count]
	}
	return f.results
}

// --- loop controller fakes ---

type fakeRunStore struct {
	runs     []domain.Run
	created  []domain.Run
	statuses map[uuid.UUID]domain.RunStatus
}

func newFakeRunStore(runs ...domain.Run) *fakeRunStore {
	return &fakeRunStore{runs: runs, statuses: map[uuid.UUID]domain.RunStatus{}}
}

func (f *fakeRunStore) Create(ctx context.Context, r *domain.Run) error {
	// Mirrors the INSERT ... RETURNING contract: the store owns the id
	// and timestamps.
	r.ID = uuid.New()
	r.StartedAt = time.Now()
	r.LastActiveAt = r.StartedAt
	f.created = append(f.created, *r)
	f.runs = append(f.runs, *r)
	return nil
}

func (f *fakeRunStore) MostActive(ctx context.Context) (*domain.Run, error) {
	if len(f.runs) == 0 {
		return nil, store.ErrNotFound
	}
	out := f.runs[0]
	return &out, nil
}

func (f *fakeRunStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error {
	f.statuses[id] = status
	return nil
}

func (f *fakeRunStore) Touch(ctx context.Context, id uuid.UUID) error { return nil }

type fakeExchangeStore struct {
	created []domain.DialogueExchange
	recent  []domain.DialogueExchange
	count   int
}

func (f *fakeExchangeStore) Create(ctx context.Context, ex *domain.DialogueExchange) error {
	f.created = append(f.created, *ex)
	return nil
}

func (f *fakeExchangeStore) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	return f.count, nil
}

func (f *fakeExchangeStore) ListRecent(ctx context.Context, runID uuid.UUID, limit int) ([]domain.DialogueExchange, error) {
	if limit > 0 && len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakeStateStore struct {
	upserts []domain.DialogueState
	latest  *domain.DialogueState
}

func (f *fakeStateStore) Upsert(ctx context.Context, s *domain.DialogueState) error {
	f.upserts = append(f.upserts, *s)
	return nil
}

func (f *fakeStateStore) LatestByRun(ctx context.Context, runID uuid.UUID) (*domain.DialogueState, error) {
	if f.latest == nil {
		return nil, store.ErrNotFound
	}
	out := f.latest.Clone()
	return &out, nil
}

type fakeInsightStore struct {
	created []domain.Insight
	recent  []domain.Insight
}

func (f *fakeInsightStore) Create(ctx context.Context, i *domain.Insight) error {
	f.created = append(f.created, *i)
	return nil
}

func (f *fakeInsightStore) ListRecent(ctx context.Context, runID uuid.UUID, limit int) ([]domain.Insight, error) {
	if limit > 0 && len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakeSnapshotStore struct {
	created []domain.IdentitySnapshot
	latest  *domain.IdentitySnapshot
}

func (f *fakeSnapshotStore) Create(ctx context.Context, s *domain.IdentitySnapshot) error {
	f.created = append(f.created, *s)
	return nil
}

func (f *fakeSnapshotStore) LatestByRun(ctx context.Context, runID uuid.UUID) (*domain.IdentitySnapshot, error) {
	if f.latest == nil {
		return nil, store.ErrNotFound
	}
	out := *f.latest
	return &out, nil
}

// fakeStepper scripts step outcomes for loop tests.
type fakeStepper struct {
	results []StepResult
	errs    []error
	calls   int
	seen    []domain.DialogueState
}

func (f *fakeStepper) Step(ctx context.Context, state domain.DialogueState) (StepResult, error) {
	f.seen = append(f.seen, state)
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return StepResult{}, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	// Default: echo the state with a trivial exchange.
	ex := domain.DialogueExchange{
		ID:      uuid.New(),
		RunID:   state.RunID,
		Agent:   state.CurrentAgent,
		Type:    domain.ExchangeResponse,
		Content: fmt.Sprintf("step %d", i),
	}
	state.Context.AppendExchange(ex)
	state.CurrentAgent = state.CurrentAgent.Opposite()
	return StepResult{State: state, Exchange: ex}, nil
}

type fakeSnapshotter struct {
	calls []int
	err   error
}

func (f *fakeSnapshotter) Build(ctx context.Context, runID uuid.UUID, iteration int) (*domain.IdentitySnapshot, error) {
	f.calls = append(f.calls, iteration)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IdentitySnapshot{ID: uuid.New(), RunID: runID, Iteration: iteration}, nil
}
