package app

import (
	"math"

	"live-quiz-service/internal/domain"
)

// ScoreResult is the outcome of scoring one submission.
type ScoreResult struct {
	Correct    bool
	Score      int
	TimeFactor float64
	// OptionIDs is the selection with duplicates removed, in submission order.
	OptionIDs []string
}

// Score computes the points for optionIDs answered after responseTime seconds.
// It is deterministic and has no side effects.
func Score(q domain.Question, optionIDs []string, responseTime float64) (ScoreResult, error) {
	if math.IsNaN(responseTime) || math.IsInf(responseTime, 0) || responseTime < 0 {
		return ScoreResult{}, domain.ErrInvalidResponseTime
	}

	selected := dedupe(optionIDs)
	for _, id := range selected {
		if _, ok := q.Option(id); !ok {
			return ScoreResult{}, domain.ErrOptionNotFound
		}
	}

	tf := TimeFactor(responseTime, q.TimeLimit)
	res := ScoreResult{TimeFactor: tf, OptionIDs: selected}

	switch q.Type {
	case domain.QuestionMultiple:
		if len(selected) == 0 {
			return ScoreResult{}, domain.ErrInvalidSelectionCount
		}
		correctCount, correctSelected, incorrectSelected := 0, 0, 0
		for _, opt := range q.Options {
			if opt.Correct {
				correctCount++
			}
		}
		for _, id := range selected {
			opt, _ := q.Option(id)
			if opt.Correct {
				correctSelected++
			} else {
				incorrectSelected++
			}
		}
		correctPct := 0.0
		if correctCount > 0 {
			correctPct = float64(correctSelected) / float64(correctCount)
		}
		penalty := 0.0
		if len(q.Options) > 0 {
			penalty = float64(incorrectSelected) / float64(len(q.Options))
		}
		res.Correct = correctCount > 0 && correctSelected == correctCount && incorrectSelected == 0
		res.Score = roundScore(float64(q.Points) * math.Max(0, correctPct-penalty) * tf)
	default:
		// single and boolean share one rule.
		if len(selected) != 1 {
			return ScoreResult{}, domain.ErrInvalidSelectionCount
		}
		opt, _ := q.Option(selected[0])
		res.Correct = opt.Correct
		if opt.Correct {
			res.Score = roundScore(float64(q.Points) * tf)
		}
	}
	return res, nil
}

// TimeFactor is clamp(1 - responseTime/timeLimit, 0, 1). Answers at or past the limit get 0.
func TimeFactor(responseTime float64, timeLimit int) float64 {
	if timeLimit <= 0 || responseTime >= float64(timeLimit) {
		return 0
	}
	f := 1 - responseTime/float64(timeLimit)
	return math.Max(0, math.Min(1, f))
}

func roundScore(v float64) int {
	return int(math.Round(v))
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
