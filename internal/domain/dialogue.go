package domain

import (
	"time"

	"github.com/google/uuid"
)

type AgentRole string

const (
	AgentQuestioner AgentRole = "questioner"
	AgentExplorer   AgentRole = "explorer"
	AgentSynthesis  AgentRole = "synthesis"
)

func ValidAgentRole(r string) bool {
	switch AgentRole(r) {
	case AgentQuestioner, AgentExplorer:
		return true
	}
	return false
}

// Opposite returns the other dialogue role. Synthesis is not a dialogue
// role; it maps to the questioner so alternation never stalls.
func (r AgentRole) Opposite() AgentRole {
	if r == AgentQuestioner {
		return AgentExplorer
	}
	return AgentQuestioner
}

type Phase string

const (
	PhaseQuestioning  Phase = "questioning"
	PhaseResponding   Phase = "responding"
	PhaseReflecting   Phase = "reflecting"
	PhaseSynthesizing Phase = "synthesizing"
)

type ExchangeType string

const (
	ExchangeQuestion   ExchangeType = "question"
	ExchangeResponse   ExchangeType = "response"
	ExchangeReflection ExchangeType = "reflection"
	ExchangeInsight    ExchangeType = "insight"
)

// PhaseFor maps an exchange type to the dialogue phase it drives.
func PhaseFor(t ExchangeType) Phase {
	switch t {
	case ExchangeQuestion:
		return PhaseQuestioning
	case ExchangeReflection:
		return PhaseReflecting
	case ExchangeInsight:
		return PhaseSynthesizing
	default:
		return PhaseResponding
	}
}

const (
	// MaxDepth bounds exploration thread depth. A restored depth above it
	// is treated as corrupted and clamped to zero.
	MaxDepth = 10
	// RecentExchangeCap bounds working memory history.
	RecentExchangeCap = 10
)

// ToolDetail is the audit record of a single tool invocation within a turn.
type ToolDetail struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AgentResponse is the full capability payload kept for audit. It is owned
// by and embedded inside its DialogueExchange, never the reverse.
type AgentResponse struct {
	Content       string       `json:"content"`
	SuggestedNext AgentRole    `json:"suggested_next,omitempty"`
	Confidence    float64      `json:"confidence"`
	Tools         []ToolDetail `json:"tools,omitempty"`
}

// DialogueExchange is one agent turn. Immutable once created.
type DialogueExchange struct {
	ID              uuid.UUID      `json:"id"`
	RunID           uuid.UUID      `json:"run_id"`
	Agent           AgentRole      `json:"agent"`
	Type            ExchangeType   `json:"type"`
	Content         string         `json:"content"`
	Depth           int            `json:"depth"`
	RelatedMemories []string       `json:"related_memories,omitempty"`
	Response        *AgentResponse `json:"response,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// WorkingMemory is the orchestrator's current-turn context.
type WorkingMemory struct {
	RecentExchanges []DialogueExchange `json:"recent_exchanges"`
	CurrentTopic    string             `json:"current_topic"`
	FocusAreas      []string           `json:"focus_areas"`
	Assumptions     []string           `json:"assumptions"`
	Contradictions  []string           `json:"contradictions"`
	OpenQuestions   []string           `json:"open_questions"`
}

// AppendExchange appends most-recent-last, evicting the oldest entry past
// the cap.
func (w *WorkingMemory) AppendExchange(ex DialogueExchange) {
	w.RecentExchanges = append(w.RecentExchanges, ex)
	if len(w.RecentExchanges) > RecentExchangeCap {
		w.RecentExchanges = w.RecentExchanges[len(w.RecentExchanges)-RecentExchangeCap:]
	}
}

// QuestionThread is the lineage of sub-questions under one root question.
type QuestionThread struct {
	RootQuestion      string   `json:"root_question"`
	SubQuestions      []string `json:"sub_questions"`
	ExploredAspects   []string `json:"explored_aspects"`
	UnexploredAspects []string `json:"unexplored_aspects"`
	Depth             int      `json:"depth"`
}

// DialogueState is the single mutable state of a run. The loop controller
// holds the authoritative copy; step functions take it by value and return
// the updated value.
type DialogueState struct {
	ID           uuid.UUID      `json:"id"`
	RunID        uuid.UUID      `json:"run_id"`
	CurrentAgent AgentRole      `json:"current_agent"`
	Phase        Phase          `json:"phase"`
	Depth        int            `json:"depth"`
	Context      WorkingMemory  `json:"context"`
	Thread       QuestionThread `json:"thread"`
	Insights     []Insight      `json:"insights"`
}

// NewDialogueState seeds an initial state for a run.
func NewDialogueState(runID uuid.UUID, topic string) DialogueState {
	s := DialogueState{
		ID:           uuid.New(),
		RunID:        runID,
		CurrentAgent: AgentQuestioner,
		Phase:        PhaseQuestioning,
		Context:      WorkingMemory{CurrentTopic: topic},
		Thread:       QuestionThread{RootQuestion: topic},
	}
	s.Sanitize()
	return s
}

// Sanitize repairs a state restored from storage: required collections
// become non-nil, invalid roles and phases fall back to defaults, and an
// implausible depth (> MaxDepth) is clamped to zero.
func (s *DialogueState) Sanitize() {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if !ValidAgentRole(string(s.CurrentAgent)) {
		s.CurrentAgent = AgentQuestioner
	}
	switch s.Phase {
	case PhaseQuestioning, PhaseResponding, PhaseReflecting, PhaseSynthesizing:
	default:
		s.Phase = PhaseQuestioning
	}
	if s.Depth < 0 || s.Depth > MaxDepth {
		s.Depth = 0
	}
	if s.Context.RecentExchanges == nil {
		s.Context.RecentExchanges = []DialogueExchange{}
	}
	if s.Context.FocusAreas == nil {
		s.Context.FocusAreas = []string{}
	}
	if s.Context.Assumptions == nil {
		s.Context.Assumptions = []string{}
	}
	if s.Context.Contradictions == nil {
		s.Context.Contradictions = []string{}
	}
	if s.Context.OpenQuestions == nil {
		s.Context.OpenQuestions = []string{}
	}
	if s.Thread.SubQuestions == nil {
		s.Thread.SubQuestions = []string{}
	}
	if s.Thread.ExploredAspects == nil {
		s.Thread.ExploredAspects = []string{}
	}
	if s.Thread.UnexploredAspects == nil {
		s.Thread.UnexploredAspects = []string{}
	}
	if s.Insights == nil {
		s.Insights = []Insight{}
	}
}

// Clone returns a deep copy so callers can hand out state without aliasing
// the authoritative value.
func (s DialogueState) Clone() DialogueState {
	out := s
	out.Context.RecentExchanges = append([]DialogueExchange(nil), s.Context.RecentExchanges...)
	out.Context.FocusAreas = append([]string(nil), s.Context.FocusAreas...)
	out.Context.Assumptions = append([]string(nil), s.Context.Assumptions...)
	out.Context.Contradictions = append([]string(nil), s.Context.Contradictions...)
	out.Context.OpenQuestions = append([]string(nil), s.Context.OpenQuestions...)
	out.Thread.SubQuestions = append([]string(nil), s.Thread.SubQuestions...)
	out.Thread.ExploredAspects = append([]string(nil), s.Thread.ExploredAspects...)
	out.Thread.UnexploredAspects = append([]string(nil), s.Thread.UnexploredAspects...)
	out.Insights = append([]Insight(nil), s.Insights...)
	return out
}
