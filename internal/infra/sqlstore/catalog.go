package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

// Catalog reads and seeds the quizzes table through bun. It serves as the quiz loader when the
// service runs on SQLite; with Postgres the pgx loader reads the same table.
type Catalog struct {
	db *bun.DB
}

func NewCatalog(db *bun.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return c.load(ctx, "id = ?", quizID)
}

func (c *Catalog) LoadQuizByAccessCode(ctx context.Context, code string) (domain.Quiz, error) {
	return c.load(ctx, "access_code = ?", code)
}

func (c *Catalog) load(ctx context.Context, where string, arg interface{}) (domain.Quiz, error) {
	m := new(quizModel)
	if err := c.db.NewSelect().Model(m).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(m.Data, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

// SaveQuiz upserts a catalog entry.
func (c *Catalog) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = c.db.NewInsert().
		Model(&quizModel{
			ID:         quiz.ID,
			OwnerID:    quiz.OwnerID,
			Title:      quiz.Title,
			AccessCode: quiz.AccessCode,
			Data:       data,
		}).
		On("CONFLICT (id) DO UPDATE").
		Set("owner_id = EXCLUDED.owner_id").
		Set("title = EXCLUDED.title").
		Set("access_code = EXCLUDED.access_code").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save quiz %s: %w", quiz.ID, err)
	}
	return nil
}
