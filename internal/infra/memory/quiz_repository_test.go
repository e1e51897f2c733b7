package memory

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestQuizRepositoryAccessCodeSharesCache(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()}),
	}
	repo := NewQuizRepository(loader, time.Minute)
	ctx := context.Background()

	quiz, err := repo.GetQuizByAccessCode(ctx, "ABC123")
	require.NoError(t, err)
	require.Equal(t, "quiz-1", quiz.ID)
	require.EqualValues(t, 1, loader.codeCalls.Load())

	_, err = repo.GetQuiz(ctx, "quiz-1")
	require.NoError(t, err)
	_, err = repo.GetQuizByAccessCode(ctx, "ABC123")
	require.NoError(t, err)
	require.EqualValues(t, 0, loader.calls.Load())
	require.EqualValues(t, 1, loader.codeCalls.Load())

	_, err = repo.GetQuizByAccessCode(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()}),
	}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, err := repo.GetQuiz(context.Background(), "quiz-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = repo.GetQuiz(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, loader.calls.Load())
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	doc := `quizzes:
  - id: quiz-1
    title: Capitals
    access_code: CAP001
    questions:
      - id: q1
        type: single
        text: Capital of France?
        time_limit: 30
        points: 100
        options:
          - { id: a, text: Paris, correct: true }
          - { id: b, text: Lyon }
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	loader, err := LoadFixtures(path)
	require.NoError(t, err)

	quiz, err := loader.LoadQuizByAccessCode(context.Background(), "CAP001")
	require.NoError(t, err)
	require.Equal(t, "Capitals", quiz.Title)
	require.Len(t, quiz.Questions, 1)
	require.Equal(t, 30, quiz.Questions[0].TimeLimit)
	require.True(t, quiz.Questions[0].Options[0].Correct)
}

func TestLoadFixturesRejectsInvalidQuiz(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	doc := `quizzes:
  - id: broken
    questions:
      - id: q1
        type: single
        time_limit: 30
        points: 10
        options:
          - { id: a, correct: true }
          - { id: b, correct: true }
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := LoadFixtures(path)
	require.ErrorIs(t, err, domain.ErrInvalidQuiz)
}

type countingLoader struct {
	QuizLoader
	calls     atomic.Int32
	codeCalls atomic.Int32
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls.Add(1)
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) LoadQuizByAccessCode(ctx context.Context, code string) (domain.Quiz, error) {
	l.codeCalls.Add(1)
	return l.QuizLoader.LoadQuizByAccessCode(ctx, code)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:         "quiz-1",
		OwnerID:    "host-1",
		AccessCode: "ABC123",
		Questions: []domain.Question{
			{
				ID:        "q1",
				Type:      domain.QuestionSingle,
				Text:      "What is 2 + 2?",
				TimeLimit: 30,
				Points:    100,
				Options: []domain.AnswerOption{
					{ID: "o1", Text: "3", Correct: false},
					{ID: "o2", Text: "4", Correct: true},
				},
			},
		},
	}
}
