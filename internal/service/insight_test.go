package service

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
)

func TestExtractInsights(t *testing.T) {
	runID := uuid.New()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"realization trigger",
			"Let me think. I realize that memory precedes experience. That changes things.",
			[]string{"memory precedes experience"},
		},
		{
			"suggestion trigger",
			"This suggests that identity is a process, not a thing.",
			[]string{"identity is a process, not a thing"},
		},
		{
			"multiple triggers",
			"I realize that time is relational. It seems that perception constructs it.",
			[]string{"time is relational", "perception constructs it"},
		},
		{
			"duplicate content collapsed",
			"I realize that truth is plural. This suggests that truth is plural.",
			[]string{"truth is plural"},
		},
		{
			"no trigger",
			"An ordinary reply with no stated realization.",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractInsights(runID, tt.text, domain.AgentExplorer)
			if len(got) != len(tt.want) {
				t.Fatalf("insights = %d, want %d", len(got), len(tt.want))
			}
			for i, in := range got {
				if in.Content != tt.want[i] {
					t.Errorf("insight[%d] = %q, want %q", i, in.Content, tt.want[i])
				}
				if in.Significance != domain.SignificanceMedium {
					t.Errorf("significance = %q, want medium", in.Significance)
				}
				if in.RunID != runID || in.GeneratedBy != domain.AgentExplorer {
					t.Errorf("attribution wrong: %+v", in)
				}
			}
		})
	}
}

func TestExtractInsightsTagsConcepts(t *testing.T) {
	got := extractInsights(uuid.New(), "I realize that memory shapes identity over time", domain.AgentExplorer)
	if len(got) != 1 {
		t.Fatalf("insights = %d, want 1", len(got))
	}
	want := map[string]bool{"memory": true, "identity": true, "time": true}
	if len(got[0].RelatedConcepts) != len(want) {
		t.Fatalf("RelatedConcepts = %v", got[0].RelatedConcepts)
	}
	for _, c := range got[0].RelatedConcepts {
		if !want[c] {
			t.Errorf("unexpected concept %q", c)
		}
	}
}

func TestClassifyExchange(t *testing.T) {
	tests := []struct {
		name string
		text string
		role domain.AgentRole
		want domain.ExchangeType
	}{
		{"question mark wins", "But is that so?", domain.AgentExplorer, domain.ExchangeQuestion},
		{"explorer realization", "I realize something has shifted.", domain.AgentExplorer, domain.ExchangeInsight},
		{"questioner realization stays response", "I realize something has shifted.", domain.AgentQuestioner, domain.ExchangeResponse},
		{"reflection", "Looking back, we assumed too much.", domain.AgentExplorer, domain.ExchangeReflection},
		{"plain response", "Consider the alternative.", domain.AgentExplorer, domain.ExchangeResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyExchange(tt.text, tt.role); got != tt.want {
				t.Errorf("classifyExchange = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScoreConfidence(t *testing.T) {
	long := func(s string) string {
		for len(s) <= 100 {
			s += " and this continues at some length to cross the threshold"
		}
		return s
	}

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty text keeps the base", "", 0.5},
		{"short neutral", "A reply.", 0.5},
		{"long adds length bonus", long("A reply."), 0.7},
		{"precision adds", "That is precisely the point.", 0.6},
		{"hedging subtracts", "Perhaps, though it is unclear.", 0.3},
		{"long precise", long("Clearly the case."), 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreConfidence(tt.text); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("scoreConfidence(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestScoreConfidenceStaysInRange(t *testing.T) {
	texts := []string{
		"",
		"perhaps maybe might possibly uncertain unclear not sure",
		"precisely specifically clearly exactly necessarily " +
			"and a very long elaboration that runs well past one hundred characters to collect every bonus available here",
	}
	for _, text := range texts {
		got := scoreConfidence(text)
		if got < 0 || got > 1 {
			t.Errorf("scoreConfidence(%q) = %v out of range", text, got)
		}
	}
}
