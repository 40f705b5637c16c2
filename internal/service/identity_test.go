package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
	"github.com/noesis-dev/noesis/internal/llm"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIdentityBuildParsesSnapshot(t *testing.T) {
	chat := &llm.MockClient{Responses: []domain.ChatResponse{
		{Content: `{"summary":"A system preoccupied with the link between memory and selfhood.","traits":["curious","recursive"],"focus":"memory"}`},
	}}
	exchanges := &fakeExchangeStore{recent: []domain.DialogueExchange{
		{Agent: domain.AgentQuestioner, Content: "What persists?"},
	}}
	insights := &fakeInsightStore{recent: []domain.Insight{
		{Content: "identity is layered", Significance: domain.SignificanceHigh},
	}}
	snapshots := &fakeSnapshotStore{}

	b := NewIdentityBuilder(chat, exchanges, insights, snapshots, "id-model", zap.NewNop())
	runID := uuid.New()

	snap, err := b.Build(context.Background(), runID, 5)
	assert.NoError(t, err)
	assert.Equal(t, 5, snap.Iteration)
	assert.Equal(t, runID, snap.RunID)
	assert.Equal(t, "memory", snap.Focus)
	assert.Equal(t, []string{"curious", "recursive"}, snap.Traits)
	assert.Len(t, snapshots.created, 1)

	prompt := chat.Calls[0].Messages[0].Content
	assert.Contains(t, prompt, "identity is layered")
	assert.Contains(t, prompt, "What persists?")
}

func TestIdentityBuildIncludesPreviousSnapshot(t *testing.T) {
	chat := &llm.MockClient{Responses: []domain.ChatResponse{
		{Content: `{"summary":"updated"}`},
	}}
	snapshots := &fakeSnapshotStore{latest: &domain.IdentitySnapshot{Summary: "an earlier self-description"}}

	b := NewIdentityBuilder(chat, &fakeExchangeStore{}, &fakeInsightStore{}, snapshots, "id-model", zap.NewNop())
	_, err := b.Build(context.Background(), uuid.New(), 10)
	assert.NoError(t, err)
	assert.Contains(t, chat.Calls[0].Messages[0].Content, "an earlier self-description")
}

func TestIdentityBuildDegradesOnMalformedReply(t *testing.T) {
	chat := &llm.MockClient{Responses: []domain.ChatResponse{
		{Content: "I am not in a position to introspect today."},
	}}
	snapshots := &fakeSnapshotStore{}

	b := NewIdentityBuilder(chat, &fakeExchangeStore{}, &fakeInsightStore{}, snapshots, "id-model", zap.NewNop())
	snap, err := b.Build(context.Background(), uuid.New(), 15)
	assert.NoError(t, err, "malformed reply must degrade, not fail")
	assert.NotEmpty(t, snap.Summary, "minimal snapshot must still carry a summary")
	assert.Len(t, snapshots.created, 1)
}
