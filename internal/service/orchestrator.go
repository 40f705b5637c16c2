package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
	"github.com/noesis-dev/noesis/internal/llm"
	"go.uber.org/zap"
)

// LongQuestionThreshold is the content length past which a question counts
// as deepening the exploration thread. This is the sole depth-advancement
// rule.
const LongQuestionThreshold = 100

var nextAgentMarker = regexp.MustCompile(`(?m)^\s*NEXT:\s*(\w+)\s*$`)

// Orchestrator runs one agent turn at a time. It never holds dialogue
// state: each step takes the state by value and returns the updated value,
// with persistence of the episodic record as its one side effect.
type Orchestrator struct {
	chat            domain.ChatClient
	tools           *ToolRunner
	memories        *MemoryManager
	questionerModel string
	explorerModel   string
	logger          *zap.Logger
}

func NewOrchestrator(
	chat domain.ChatClient,
	tools *ToolRunner,
	memories *MemoryManager,
	questionerModel, explorerModel string,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		chat:            chat,
		tools:           tools,
		memories:        memories,
		questionerModel: questionerModel,
		explorerModel:   explorerModel,
		logger:          logger,
	}
}

// StepResult is the outcome of one dialogue turn.
type StepResult struct {
	State       domain.DialogueState
	Exchange    domain.DialogueExchange
	NewInsights []domain.Insight
}

// Step executes exactly one turn for the state's current agent. Tool
// failures are isolated per tool; a failed completion or a failed episodic
// write fails the whole step and is retried by the loop controller.
func (o *Orchestrator) Step(ctx context.Context, state domain.DialogueState) (StepResult, error) {
	state = state.Clone()
	role := state.CurrentAgent

	resp, err := o.chat.Complete(ctx, domain.ChatRequest{
		Model:  o.modelFor(role),
		System: llm.SystemPrompt(role),
		Messages: []domain.ChatMessage{
			{Role: "user", Content: buildTurnContext(state)},
		},
		Tools: ToolsFor(role),
	})
	if err != nil {
		return StepResult{}, fmt.Errorf("%s turn completion: %w", role, err)
	}
	if strings.TrimSpace(resp.Content) == "" && len(resp.ToolCalls) == 0 {
		return StepResult{}, fmt.Errorf("%s turn returned an empty completion", role)
	}

	content, suggested := parseNextAgent(resp.Content)
	agentResp := &domain.AgentResponse{
		Content:       content,
		SuggestedNext: suggested,
		Confidence:    scoreConfidence(content),
	}

	rc := RetrievalContext{Topic: state.Context.CurrentTopic, FocusAreas: state.Context.FocusAreas}
	var related []string
	var toolInsights []domain.Insight
	for _, call := range resp.ToolCalls {
		detail := domain.ToolDetail{Name: call.Name, Arguments: call.Arguments}
		result, err := o.tools.Execute(ctx, state.RunID, rc, call)
		if err != nil {
			detail.Error = err.Error()
			o.logger.Warn("tool execution failed", zap.String("tool", call.Name), zap.Error(err))
		} else {
			detail.Result = result.Summary
			related = append(related, result.MemoryIDs...)
			toolInsights = append(toolInsights, result.Insights...)
		}
		agentResp.Tools = append(agentResp.Tools, detail)
	}

	exType := classifyExchange(content, role)
	newInsights := append(extractInsights(state.RunID, content, role), toolInsights...)

	exchange := domain.DialogueExchange{
		ID:              uuid.New(),
		RunID:           state.RunID,
		Agent:           role,
		Type:            exType,
		Content:         content,
		Depth:           state.Depth,
		RelatedMemories: dedupe(related),
		Response:        agentResp,
		CreatedAt:       time.Now(),
	}

	state.Context.AppendExchange(exchange)
	state.Insights = append(state.Insights, newInsights...)

	if exType == domain.ExchangeQuestion {
		state.Thread.SubQuestions = append(state.Thread.SubQuestions, content)
		if state.Depth+1 > state.Thread.Depth {
			state.Thread.Depth = state.Depth + 1
		}
	}

	if domain.ValidAgentRole(string(suggested)) {
		state.CurrentAgent = suggested
	} else {
		state.CurrentAgent = role.Opposite()
	}

	phase := domain.PhaseFor(exType)
	if len(newInsights) > 0 {
		phase = domain.PhaseSynthesizing
	}
	if phase != state.Phase {
		o.logger.Info("phase change",
			zap.String("from", string(state.Phase)),
			zap.String("to", string(phase)))
		state.Phase = phase
	}

	if exType == domain.ExchangeQuestion && len(content) > LongQuestionThreshold {
		state.Depth++
	}

	// Significance is fixed to medium at storage time; there is no
	// per-exchange classifier yet.
	if _, err := o.memories.StoreEpisodic(ctx, state.RunID, exchange, domain.SignificanceMedium); err != nil {
		return StepResult{}, err
	}

	return StepResult{State: state, Exchange: exchange, NewInsights: newInsights}, nil
}

func (o *Orchestrator) modelFor(role domain.AgentRole) string {
	if role == domain.AgentExplorer {
		return o.explorerModel
	}
	return o.questionerModel
}

// buildTurnContext renders working memory into the user message for the
// turn.
func buildTurnContext(state domain.DialogueState) string {
	var sb strings.Builder

	if len(state.Context.RecentExchanges) == 0 {
		fmt.Fprintf(&sb, "We are beginning a dialogue on: %s.\nOpen the inquiry.", state.Context.CurrentTopic)
		return sb.String()
	}

	fmt.Fprintf(&sb, "Topic: %s\n\nRecent exchanges:\n", state.Context.CurrentTopic)
	for _, ex := range state.Context.RecentExchanges {
		fmt.Fprintf(&sb, "[%s] %s\n", ex.Agent, ex.Content)
	}
	if len(state.Context.FocusAreas) > 0 {
		fmt.Fprintf(&sb, "\nCurrent focus: %s\n", strings.Join(state.Context.FocusAreas, ", "))
	}
	if len(state.Context.OpenQuestions) > 0 {
		fmt.Fprintf(&sb, "Open questions: %s\n", strings.Join(state.Context.OpenQuestions, "; "))
	}
	sb.WriteString("\nContinue the dialogue.")
	return sb.String()
}

// parseNextAgent strips the optional trailing NEXT: marker and returns the
// cleaned content plus the suggested role, if any.
func parseNextAgent(content string) (string, domain.AgentRole) {
	m := nextAgentMarker.FindStringSubmatch(content)
	if m == nil {
		return strings.TrimSpace(content), ""
	}
	cleaned := strings.TrimSpace(nextAgentMarker.ReplaceAllString(content, ""))
	suggested := strings.ToLower(m[1])
	if domain.ValidAgentRole(suggested) {
		return cleaned, domain.AgentRole(suggested)
	}
	return cleaned, ""
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
