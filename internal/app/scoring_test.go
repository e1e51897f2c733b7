package app_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func singleQuestion() domain.Question {
	return domain.Question{
		ID:        "q1",
		Type:      domain.QuestionSingle,
		TimeLimit: 30,
		Points:    100,
		Options: []domain.AnswerOption{
			{ID: "A", Correct: true},
			{ID: "B"},
		},
	}
}

func multipleQuestion() domain.Question {
	return domain.Question{
		ID:        "q2",
		Type:      domain.QuestionMultiple,
		TimeLimit: 20,
		Points:    100,
		Options: []domain.AnswerOption{
			{ID: "a", Correct: true},
			{ID: "b", Correct: true},
			{ID: "c"},
			{ID: "d"},
		},
	}
}

func TestScoreSingle(t *testing.T) {
	tests := []struct {
		name      string
		options   []string
		rt        float64
		wantScore int
		correct   bool
		err       error
	}{
		{name: "half time", options: []string{"A"}, rt: 15, wantScore: 50, correct: true},
		{name: "instant", options: []string{"A"}, rt: 0, wantScore: 100, correct: true},
		{name: "rounds to nearest", options: []string{"A"}, rt: 10, wantScore: 67, correct: true},
		{name: "wrong option", options: []string{"B"}, rt: 1, wantScore: 0},
		{name: "at the limit", options: []string{"A"}, rt: 30, wantScore: 0, correct: true},
		{name: "past the limit", options: []string{"A"}, rt: 45, wantScore: 0, correct: true},
		{name: "duplicate selection collapses", options: []string{"A", "A"}, rt: 15, wantScore: 50, correct: true},
		{name: "two options", options: []string{"A", "B"}, rt: 1, err: domain.ErrInvalidSelectionCount},
		{name: "no options", options: nil, rt: 1, err: domain.ErrInvalidSelectionCount},
		{name: "unknown option", options: []string{"Z"}, rt: 1, err: domain.ErrOptionNotFound},
		{name: "negative time", options: []string{"A"}, rt: -1, err: domain.ErrInvalidResponseTime},
		{name: "nan time", options: []string{"A"}, rt: math.NaN(), err: domain.ErrInvalidResponseTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := app.Score(singleQuestion(), tt.options, tt.rt)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, res.Score)
			assert.Equal(t, tt.correct, res.Correct)
		})
	}
}

func TestScoreMultiple(t *testing.T) {
	tests := []struct {
		name      string
		options   []string
		rt        float64
		wantScore int
		correct   bool
		err       error
	}{
		{name: "exact set", options: []string{"a", "b"}, rt: 0, wantScore: 100, correct: true},
		{name: "exact set half time", options: []string{"b", "a"}, rt: 10, wantScore: 50, correct: true},
		{name: "partial", options: []string{"a"}, rt: 0, wantScore: 50},
		{name: "one extra", options: []string{"a", "b", "c"}, rt: 0, wantScore: 75},
		{name: "all wrong floors at zero", options: []string{"c", "d"}, rt: 0, wantScore: 0},
		{name: "everything selected", options: []string{"a", "b", "c", "d"}, rt: 0, wantScore: 50},
		{name: "at the limit", options: []string{"a", "b"}, rt: 20, wantScore: 0, correct: true},
		{name: "duplicates collapse", options: []string{"a", "a", "b"}, rt: 0, wantScore: 100, correct: true},
		{name: "empty", options: []string{}, rt: 0, err: domain.ErrInvalidSelectionCount},
		{name: "unknown", options: []string{"a", "x"}, rt: 0, err: domain.ErrOptionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := app.Score(multipleQuestion(), tt.options, tt.rt)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, res.Score)
			assert.Equal(t, tt.correct, res.Correct)
		})
	}
}

func TestScoreBoundedByPoints(t *testing.T) {
	q := multipleQuestion()
	selections := [][]string{{"a"}, {"b"}, {"a", "b"}, {"a", "c"}, {"c"}, {"a", "b", "c", "d"}}
	for _, sel := range selections {
		for rt := 0.0; rt <= 25; rt += 2.5 {
			res, err := app.Score(q, sel, rt)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.Score, 0)
			assert.LessOrEqual(t, res.Score, q.Points)
			if rt >= float64(q.TimeLimit) {
				assert.Zero(t, res.Score)
			}
		}
	}
}

func TestTimeFactor(t *testing.T) {
	assert.Equal(t, 1.0, app.TimeFactor(0, 30))
	assert.Equal(t, 0.5, app.TimeFactor(15, 30))
	assert.Equal(t, 0.0, app.TimeFactor(30, 30))
	assert.Equal(t, 0.0, app.TimeFactor(31, 30))
	assert.Equal(t, 0.0, app.TimeFactor(1, 0))
}
