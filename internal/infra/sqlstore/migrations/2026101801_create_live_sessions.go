package migrations

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type session20261018 struct {
	bun.BaseModel `bun:"table:sessions"`

	ID                string    `bun:"id,pk"`
	QuizID            string    `bun:"quiz_id,notnull"`
	OwnerID           string    `bun:"owner_id,notnull"`
	Status            string    `bun:"status,notnull"`
	CurrentQuestionID string    `bun:"current_question_id,nullzero"`
	Revealed          bool      `bun:"revealed,notnull,default:false"`
	StartTime         time.Time `bun:"start_time,nullzero"`
	EndTime           time.Time `bun:"end_time,nullzero"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
}

type participant20261018 struct {
	bun.BaseModel `bun:"table:participants"`

	ID         string    `bun:"id,pk"`
	SessionID  string    `bun:"session_id,notnull"`
	Nickname   string    `bun:"nickname,notnull"`
	TotalScore int       `bun:"total_score,notnull,default:0"`
	JoinedAt   time.Time `bun:"joined_at,notnull"`
}

type answer20261018 struct {
	bun.BaseModel `bun:"table:participant_answers"`

	ParticipantID string    `bun:"participant_id,pk"`
	QuestionID    string    `bun:"question_id,pk"`
	SessionID     string    `bun:"session_id,notnull"`
	OptionIDs     []string  `bun:"option_ids,type:jsonb,notnull"`
	ResponseTime  float64   `bun:"response_time,notnull"`
	Score         int       `bun:"score,notnull"`
	Correct       bool      `bun:"correct,notnull"`
	AnsweredAt    time.Time `bun:"answered_at,notnull"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				if _, err := tx.NewCreateTable().
					Model((*session20261018)(nil)).
					IfNotExists().
					Exec(ctx); err != nil {
					return err
				}
				if _, err := tx.NewCreateTable().
					Model((*participant20261018)(nil)).
					IfNotExists().
					ForeignKey(`("session_id") REFERENCES "sessions" ("id") ON DELETE CASCADE`).
					Exec(ctx); err != nil {
					return err
				}
				if _, err := tx.NewCreateIndex().
					Model((*participant20261018)(nil)).
					Index("participants_session_nickname_idx").
					Unique().
					Column("session_id", "nickname").
					IfNotExists().
					Exec(ctx); err != nil {
					return err
				}
				if _, err := tx.NewCreateTable().
					Model((*answer20261018)(nil)).
					IfNotExists().
					ForeignKey(`("participant_id") REFERENCES "participants" ("id") ON DELETE CASCADE`).
					ForeignKey(`("session_id") REFERENCES "sessions" ("id") ON DELETE CASCADE`).
					Exec(ctx); err != nil {
					return err
				}
				_, err := tx.NewCreateIndex().
					Model((*answer20261018)(nil)).
					Index("participant_answers_session_question_idx").
					Column("session_id", "question_id").
					IfNotExists().
					Exec(ctx)
				return err
			})
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, model := range []interface{}{
				(*answer20261018)(nil),
				(*participant20261018)(nil),
				(*session20261018)(nil),
			} {
				if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
