package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
	"github.com/noesis-dev/noesis/internal/llm"
	"go.uber.org/zap"
)

func newTestOrchestrator(chat domain.ChatClient, mems *fakeMemoryStore) *Orchestrator {
	if mems == nil {
		mems = &fakeMemoryStore{}
	}
	manager := newTestManager(mems, newFakeConceptStore(), newFakeProcedureStore(), newFakeVectorStore(), &fakeEmbedder{dims: 8}, chat)
	runner := NewToolRunner(manager, newFakeConceptStore(), &fakeWebClient{}, zap.NewNop())
	return NewOrchestrator(chat, runner, manager, "q-model", "e-model", zap.NewNop())
}

func seededState() domain.DialogueState {
	return domain.NewDialogueState(uuid.New(), "the nature of memory")
}

func TestStepQuestionerTurn(t *testing.T) {
	chat := &llm.MockClient{Responses: []domain.ChatResponse{
		{Content: "Does memory precede experience?"},
	}}
	mems := &fakeMemoryStore{}
	orch := newTestOrchestrator(chat, mems)

	state := seededState()
	result, err := orch.Step(context.Background(), state)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	ex := result.Exchange
	if ex.Type != domain.ExchangeQuestion {
		t.Errorf("Type = %q, want question", ex.Type)
	}
	if ex.Agent != domain.AgentQuestioner {
		t.Errorf("Agent = %q, want questioner", ex.Agent)
	}
	if result.State.CurrentAgent != domain.AgentExplorer {
		t.Errorf("next agent = %q, want explorer (alternation)", result.State.CurrentAgent)
	}
	if len(result.State.Thread.SubQuestions) != 1 {
		t.Errorf("SubQuestions = %v, want the new question recorded", result.State.Thread.SubQuestions)
	}
	if result.State.Depth != 0 {
		t.Errorf("Depth = %d, want 0 (question under length threshold)", result.State.Depth)
	}
	if len(result.State.Context.RecentExchanges) != 1 {
		t.Errorf("working memory = %d exchanges, want 1", len(result.State.Context.RecentExchanges))
	}
	if len(mems.created) != 1 || mems.created[0].Type != domain.MemoryTypeEpisodic {
		t.Errorf("expected one episodic record, got %+v", mems.created)
	}
	if mems.created[0].Significance != domain.SignificanceMedium {
		t.Errorf("episodic significance = %q, want fixed medium", mems.created[0].Significance)
	}

	// The caller's state value must be untouched.
	if len(state.Context.RecentExchanges) != 0 {
		t.Errorf("input state mutated")
	}

	req := chat.Calls[0]
	if req.Model != "q-model" {
		t.Errorf("model = %q, want questioner model", req.Model)
	}
	if len(req.Tools) != 2 {
		t.Errorf("questioner tools = %d, want 2", len(req.Tools))
	}
}

func TestStepExplorerRealizationBecomesInsight(t *testing.T) {
	chat := &llm.MockClient{Responses: []domain.ChatResponse{
		{Content: "I realize that memory precedes experience."},
	}}
	orch := newTestOrchestrator(chat, nil)

	state := seededState()
	state.CurrentAgent = domain.AgentExplorer
	result, err := orch.Step(context.Background(), state)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	if result.Exchange.Type != domain.ExchangeInsight {
		t.Errorf("Type = %q, want insight", result.Exchange.Type)
	}
	if len(result.NewInsights) != 1 {
		t.Fatalf("NewInsights = %d, want 1", len(result.NewInsights))
	}
	in := result.NewInsights[0]
	if in.Content != "memory precedes experience" {
		t.Errorf("insight content = %q", in.Content)
	}
	if in.Significance != domain.SignificanceMedium {
		t.Errorf("insight significance = %q, want medium", in.Significance)
	}
	if in.GeneratedBy != domain.AgentExplorer {
		t.Errorf("GeneratedBy = %q", in.GeneratedBy)
	}
	if result.State.Phase != domain.PhaseSynthesizing {
		t.Errorf("Phase = %q, want synthesizing after an insight", result.State.Phase)
	}
	if len(result.State.Insights) != 1 {
		t.Errorf("state insights = %d, want 1", len(result.State.Insights))
	}
	if chat.Calls[0].Model != "e-model" {
		t.Errorf("model = %q, want explorer model", chat.Calls[0].Model)
	}
	if len(chat.Calls[0].Tools) != 4 {
		t.Errorf("explorer tools = %d, want 4", len(chat.Calls[0].Tools))
	}
}

func TestStepHonorsNextMarker(t *testing.T) {
	chat := &llm.MockClient{Responses: []domain.ChatResponse{
		{Content: "Consider this from another angle.\nNEXT: questioner"},
	}}
	orch := newTestOrchestrator(chat, nil)

	state := seededState()
	result, err := orch.Step(context.Background(), state)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if result.State.CurrentAgent != domain.AgentQuestioner {
		t.Errorf("next agent = %q, want questioner per marker", result.State.CurrentAgent)
	}
	if strings.Contains(result.Exchange.Content, "NEXT:") {
		t.Errorf("marker not stripped: %q", result.Exchange.Content)
	}
	if result.Exchange.Response.SuggestedNext != domain.AgentQuestioner {
		t.Errorf("SuggestedNext = %q", result.Exchange.Response.SuggestedNext)
	}
}

func TestStepInvalidNextMarkerFallsBackToAlternation(t *testing.T) {
	chat := &llm.MockClient{Responses: []domain.ChatResponse{
		{Content: "Consider this from another angle.\nNEXT: moderator"},
	}}
	orch := newTestOrchestrator(chat, nil)

	result, err := orch.Step(context.Background(), seededState())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if result.State.CurrentAgent != domain.AgentExplorer {
		t.Errorf("next agent = %q, want explorer (strict alternation)", result.State.CurrentAgent)
	}
	if result.Exchange.Response.SuggestedNext != "" {
		t.Errorf("invalid marker must not be recorded as a suggestion")
	}
}

func TestStepLongQuestionIncrementsDepth(t *testing.T) {
	long := "If experience is only ever given to us through the mediation of memory, " +
		"what could it even mean for an experience to exist before it is remembered?"
	chat := &llm.MockClient{Responses: []domain.ChatResponse{{Content: long}}}
	orch := newTestOrchestrator(chat, nil)

	result, err := orch.Step(context.Background(), seededState())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if result.State.Depth != 1 {
		t.Errorf("Depth = %d, want 1 for a substantive question", result.State.Depth)
	}
	if result.Exchange.Depth != 0 {
		t.Errorf("exchange depth = %d, want the pre-increment value", result.Exchange.Depth)
	}
	if result.State.Thread.Depth != 1 {
		t.Errorf("thread depth = %d, want 1", result.State.Thread.Depth)
	}
}

func TestStepToolErrorIsIsolated(t *testing.T) {
	chat := &llm.MockClient{Responses: []domain.ChatResponse{
		{
			Content: "Let me check what we already know.",
			ToolCalls: []domain.ToolCall{
				{Name: "time_travel", Arguments: "{}"},
				{Name: "concept_lookup", Arguments: `{"name":"emergence"}`},
			},
		},
	}}
	orch := newTestOrchestrator(chat, nil)

	result, err := orch.Step(context.Background(), seededState())
	if err != nil {
		t.Fatalf("a failing tool must not fail the step: %v", err)
	}

	tools := result.Exchange.Response.Tools
	if len(tools) != 2 {
		t.Fatalf("tool audit entries = %d, want 2", len(tools))
	}
	if tools[0].Error == "" {
		t.Errorf("unknown tool should record an error")
	}
	if tools[1].Error != "" {
		t.Errorf("second tool should still run, got error %q", tools[1].Error)
	}
}

func TestStepEmptyCompletionIsError(t *testing.T) {
	chat := &llm.MockClient{Responses: []domain.ChatResponse{{Content: "   "}}}
	orch := newTestOrchestrator(chat, nil)

	if _, err := orch.Step(context.Background(), seededState()); err == nil {
		t.Fatal("expected error for empty completion")
	}
}

func TestStepFirstTurnPromptSeedsTopic(t *testing.T) {
	chat := &llm.MockClient{Responses: []domain.ChatResponse{{Content: "Why does anything matter?"}}}
	orch := newTestOrchestrator(chat, nil)

	if _, err := orch.Step(context.Background(), seededState()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	prompt := chat.Calls[0].Messages[0].Content
	if !strings.Contains(prompt, "the nature of memory") {
		t.Errorf("opening prompt missing topic: %q", prompt)
	}
	if !strings.Contains(prompt, "beginning") {
		t.Errorf("opening prompt should use the opening phrasing: %q", prompt)
	}
}

func TestParseNextAgent(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantText  string
		wantAgent domain.AgentRole
	}{
		{"no marker", "Just a reply.", "Just a reply.", ""},
		{"explorer marker", "Reply.\nNEXT: explorer", "Reply.", domain.AgentExplorer},
		{"mixed case marker target kept lowercase", "Reply.\nNEXT: Questioner", "Reply.", domain.AgentQuestioner},
		{"unknown role", "Reply.\nNEXT: judge", "Reply.", ""},
		{"marker mid-text is ignored as suggestion source", "NEXT: explorer", "", domain.AgentExplorer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, agent := parseNextAgent(tt.in)
			if text != tt.wantText || agent != tt.wantAgent {
				t.Errorf("parseNextAgent(%q) = (%q, %q), want (%q, %q)", tt.in, text, agent, tt.wantText, tt.wantAgent)
			}
		})
	}
}
