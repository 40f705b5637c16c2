package service

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
)

// Linguistic triggers marking a stated realization. The capture runs to the
// end of the sentence.
var insightTriggers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)I realize that\s+([^.!?\n]+)`),
	regexp.MustCompile(`(?i)This suggests that\s+([^.!?\n]+)`),
	regexp.MustCompile(`(?i)It seems (?:that\s+)?([^.!?\n]+)`),
}

// conceptVocabulary is the fixed vocabulary substring-matched against
// generated text to tag related concepts.
var conceptVocabulary = []string{
	"consciousness", "awareness", "memory", "experience", "identity",
	"perception", "time", "self", "knowledge", "meaning", "existence",
	"mind", "language", "truth", "reality", "emergence", "intention",
	"understanding",
}

var (
	realizationPhrases = []string{"i realize", "i am beginning to", "i understand now", "i notice that i"}
	reflectivePhrases  = []string{"reflecting on", "on reflection", "looking back", "thinking about this", "in retrospect"}
	precisionTerms     = []string{"precisely", "specifically", "clearly", "exactly", "necessarily"}
	uncertaintyTerms   = []string{"perhaps", "maybe", "might", "possibly", "uncertain", "unclear", "not sure"}
)

// extractInsights derives insights from generated text. Every match gets a
// fixed medium significance; there is no classifier for insight weight yet.
func extractInsights(runID uuid.UUID, text string, by domain.AgentRole) []domain.Insight {
	var insights []domain.Insight
	seen := make(map[string]bool)

	for _, trigger := range insightTriggers {
		for _, m := range trigger.FindAllStringSubmatch(text, -1) {
			content := strings.TrimSpace(m[1])
			if content == "" || seen[content] {
				continue
			}
			seen[content] = true
			insights = append(insights, domain.Insight{
				ID:              uuid.New(),
				RunID:           runID,
				Content:         content,
				Significance:    domain.SignificanceMedium,
				RelatedConcepts: extractConcepts(content),
				GeneratedBy:     by,
			})
		}
	}
	return insights
}

func extractConcepts(text string) []string {
	lower := strings.ToLower(text)
	var concepts []string
	for _, c := range conceptVocabulary {
		if strings.Contains(lower, c) {
			concepts = append(concepts, c)
		}
	}
	return concepts
}

// classifyExchange types a turn from its surface form. Only the explorer
// produces insight-typed exchanges.
func classifyExchange(text string, role domain.AgentRole) domain.ExchangeType {
	if strings.Contains(text, "?") {
		return domain.ExchangeQuestion
	}
	lower := strings.ToLower(text)
	if role == domain.AgentExplorer && containsAny(lower, realizationPhrases) {
		return domain.ExchangeInsight
	}
	if containsAny(lower, reflectivePhrases) {
		return domain.ExchangeReflection
	}
	return domain.ExchangeResponse
}

// scoreConfidence scores generated text in [0,1]: base 0.5, rewarded for
// length and precision language, penalized for hedging.
func scoreConfidence(text string) float64 {
	score := 0.5
	if len(text) > 100 {
		score += 0.2
	}
	lower := strings.ToLower(text)
	if containsAny(lower, precisionTerms) {
		score += 0.1
	}
	if containsAny(lower, uncertaintyTerms) {
		score -= 0.2
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
