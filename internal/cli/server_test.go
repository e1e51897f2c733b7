package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/sqlstore"
	"live-quiz-service/internal/logger"
)

const fixtureDoc = `quizzes:
  - id: geo
    owner_id: host-1
    title: Geography
    access_code: GEO001
    questions:
      - id: q1
        type: boolean
        text: Is Lisbon west of Madrid?
        time_limit: 15
        points: 50
        options:
          - { id: yes, text: "Yes", correct: true }
          - { id: no, text: "No" }
`

func writeFixtures(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureDoc), 0o600))
	return path
}

func TestQuizLoaderFallsBackToDemoQuiz(t *testing.T) {
	loader, closeFn, err := quizLoader(context.Background(), config.Config{}, nil, logger.Discard())
	require.NoError(t, err)
	defer closeFn()

	quiz, err := loader.LoadQuizByAccessCode(context.Background(), "DEMO01")
	require.NoError(t, err)
	require.NoError(t, domain.ValidateQuiz(quiz))
}

func TestQuizLoaderSeedsSQLiteCatalog(t *testing.T) {
	ctx := context.Background()
	db, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "quiz.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, runMigrations(ctx, db, logger.Discard()))

	cfg := config.Config{}
	cfg.Quiz.Fixtures = writeFixtures(t)
	loader, closeFn, err := quizLoader(ctx, cfg, db, logger.Discard())
	require.NoError(t, err)
	defer closeFn()

	quiz, err := loader.LoadQuiz(ctx, "geo")
	require.NoError(t, err)
	require.Equal(t, "GEO001", quiz.AccessCode)
	require.Equal(t, domain.QuestionBoolean, quiz.Questions[0].Type)
}

func TestQuizLoaderReadsFixtures(t *testing.T) {
	cfg := config.Config{}
	cfg.Quiz.Fixtures = writeFixtures(t)
	loader, _, err := quizLoader(context.Background(), cfg, nil, logger.Discard())
	require.NoError(t, err)

	_, err = loader.LoadQuizByAccessCode(context.Background(), "GEO001")
	require.NoError(t, err)
}
