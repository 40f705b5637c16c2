package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noesis-dev/noesis/internal/domain"
)

// Re-ranking constants
const (
	TopicTagBonus     = 0.2
	FocusTagBonus     = 0.15
	RecencyBonusMax   = 0.1
	RecencyWindowHrs  = 10.0
	MaxRelevanceScore = 1.0
)

// RetrievalContext carries the dialogue context used to re-rank retrieved
// candidates. It never scores absolute relevance on its own.
type RetrievalContext struct {
	Topic      string
	FocusAreas []string
}

// contextualScore adjusts a raw similarity score for the current dialogue
// context: topic and focus tag overlap, recency for episodic memories, and
// stored significance, clamped to 1.0.
func contextualScore(m domain.MemoryWithScore, rc RetrievalContext, now time.Time) float64 {
	score := m.Score

	topic := strings.ToLower(rc.Topic)
	for _, tag := range m.Tags {
		if tag != "" && strings.Contains(topic, strings.ToLower(tag)) {
			score += TopicTagBonus
			break
		}
	}

focus:
	for _, tag := range m.Tags {
		for _, focus := range rc.FocusAreas {
			if strings.EqualFold(tag, focus) {
				score += FocusTagBonus
				break focus
			}
		}
	}

	if m.Type == domain.MemoryTypeEpisodic {
		ageHours := now.Sub(m.CreatedAt).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		if ageHours < RecencyWindowHrs {
			score += RecencyBonusMax * (1 - ageHours/RecencyWindowHrs)
		}
	}

	score += m.Significance.Bonus()

	if score > MaxRelevanceScore {
		score = MaxRelevanceScore
	}
	return score
}

// rankByContext re-scores and orders candidates, best first. The sort is
// stable so ties keep their original retrieval order.
func rankByContext(memories []domain.MemoryWithScore, rc RetrievalContext, now time.Time) []domain.MemoryWithScore {
	ranked := make([]domain.MemoryWithScore, len(memories))
	for i, m := range memories {
		m.Score = contextualScore(m, rc, now)
		ranked[i] = m
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
