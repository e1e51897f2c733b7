package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

const selectQuiz = `SELECT id, owner_id, title, COALESCE(access_code, ''), data FROM quizzes`

// QuizLoader reads catalog rows written by sqlstore.Catalog. The indexed columns win over the
// copies inside the data document.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return l.load(ctx, selectQuiz+` WHERE id = $1`, quizID)
}

func (l *QuizLoader) LoadQuizByAccessCode(ctx context.Context, code string) (domain.Quiz, error) {
	if code == "" {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return l.load(ctx, selectQuiz+` WHERE access_code = $1`, code)
}

func (l *QuizLoader) load(ctx context.Context, query, arg string) (domain.Quiz, error) {
	var (
		id, ownerID, title, code string
		raw                      []byte
	)
	err := l.pool.QueryRow(ctx, query, arg).Scan(&id, &ownerID, &title, &code, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz %s: %w", id, err)
	}
	quiz.ID = id
	quiz.OwnerID = ownerID
	quiz.Title = title
	quiz.AccessCode = code
	if err := domain.ValidateQuiz(quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}
