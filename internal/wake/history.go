package wake

import (
	"context"
	"fmt"
	"time"
)

// HistorySummary aggregates a slice of completions.
type HistorySummary struct {
	Count           int
	AverageScore    float64
	AverageReaction time.Duration
	BestScore       int
}

// History is the result of GetHistory.
type History struct {
	Completions []*AlarmCompletion
	Summary     HistorySummary
}

// GetHistory returns up to limit completions, newest first, with a summary
// over the returned records. limit <= 0 returns everything.
func (s *WakeService) GetHistory(ctx context.Context, limit int) (*History, error) {
	completions, err := s.repo.ListCompletions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing completions: %w", err)
	}
	return &History{Completions: completions, Summary: Summarize(completions)}, nil
}

// Summarize computes averages. An empty input gives a zero summary.
func Summarize(completions []*AlarmCompletion) HistorySummary {
	var sum HistorySummary
	if len(completions) == 0 {
		return sum
	}
	var scores int
	var reaction time.Duration
	for _, c := range completions {
		scores += c.CognitiveScore
		reaction += c.ReactionTime
		if c.CognitiveScore > sum.BestScore {
			sum.BestScore = c.CognitiveScore
		}
	}
	sum.Count = len(completions)
	sum.AverageScore = float64(scores) / float64(sum.Count)
	sum.AverageReaction = reaction / time.Duration(sum.Count)
	return sum
}
