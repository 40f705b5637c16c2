package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
	"github.com/noesis-dev/noesis/internal/llm"
	"github.com/noesis-dev/noesis/internal/store"
	"go.uber.org/zap"
)

const (
	identityExchangeWindow = 20
	identityInsightWindow  = 10
)

// IdentityBuilder produces periodic identity snapshots from recent dialogue
// history. A malformed model reply degrades to a minimal snapshot rather
// than failing the period.
type IdentityBuilder struct {
	chat      domain.ChatClient
	exchanges domain.ExchangeStore
	insights  domain.InsightStore
	snapshots domain.SnapshotStore
	model     string
	logger    *zap.Logger
}

func NewIdentityBuilder(
	chat domain.ChatClient,
	exchanges domain.ExchangeStore,
	insights domain.InsightStore,
	snapshots domain.SnapshotStore,
	model string,
	logger *zap.Logger,
) *IdentityBuilder {
	return &IdentityBuilder{
		chat:      chat,
		exchanges: exchanges,
		insights:  insights,
		snapshots: snapshots,
		model:     model,
		logger:    logger,
	}
}

type identityReply struct {
	Summary string   `json:"summary"`
	Traits  []string `json:"traits"`
	Focus   string   `json:"focus"`
}

// Build assembles the prompt from stored history, asks the model for an
// updated self-analysis, and persists the snapshot.
func (b *IdentityBuilder) Build(ctx context.Context, runID uuid.UUID, iteration int) (*domain.IdentitySnapshot, error) {
	previous := "(none)"
	if prev, err := b.snapshots.LatestByRun(ctx, runID); err == nil {
		previous = prev.Summary
	} else if !errors.Is(err, store.ErrNotFound) {
		b.logger.Warn("loading previous snapshot failed", zap.Error(err))
	}

	recentInsights, err := b.insights.ListRecent(ctx, runID, identityInsightWindow)
	if err != nil {
		return nil, fmt.Errorf("listing recent insights: %w", err)
	}
	recentExchanges, err := b.exchanges.ListRecent(ctx, runID, identityExchangeWindow)
	if err != nil {
		return nil, fmt.Errorf("listing recent exchanges: %w", err)
	}

	resp, err := b.chat.Complete(ctx, domain.ChatRequest{
		Model: b.model,
		Messages: []domain.ChatMessage{
			{Role: "user", Content: llm.IdentityPrompt(previous, renderInsights(recentInsights), renderExchanges(recentExchanges))},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("identity completion: %w", err)
	}

	snap := &domain.IdentitySnapshot{
		ID:        uuid.New(),
		RunID:     runID,
		Iteration: iteration,
		CreatedAt: time.Now(),
	}

	reply, err := decodeModelJSON[identityReply](resp.Content)
	if err != nil {
		b.logger.Warn("identity reply unparseable, storing minimal snapshot", zap.Error(err))
		snap.Summary = fmt.Sprintf("Snapshot at iteration %d: self-analysis unavailable.", iteration)
	} else {
		snap.Summary = strings.TrimSpace(reply.Summary)
		snap.Traits = reply.Traits
		snap.Focus = strings.TrimSpace(reply.Focus)
	}

	if err := b.snapshots.Create(ctx, snap); err != nil {
		return nil, fmt.Errorf("persisting snapshot: %w", err)
	}
	return snap, nil
}

func renderInsights(insights []domain.Insight) string {
	if len(insights) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, in := range insights {
		fmt.Fprintf(&sb, "- [%s] %s\n", in.Significance, in.Content)
	}
	return sb.String()
}

func renderExchanges(exchanges []domain.DialogueExchange) string {
	if len(exchanges) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for i := len(exchanges) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "[%s] %s\n", exchanges[i].Agent, exchanges[i].Content)
	}
	return sb.String()
}
