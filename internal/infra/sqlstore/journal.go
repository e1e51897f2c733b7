package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

// Journal is the durable record of sessions, participants and answers. The composite primary key
// on participant_answers is what makes "one answer per question" hold across processes.
type Journal struct {
	db *bun.DB
}

func NewJournal(db *bun.DB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) SaveSession(ctx context.Context, s domain.Session) error {
	_, err := j.db.NewInsert().
		Model(newSessionModel(s)).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("current_question_id = EXCLUDED.current_question_id").
		Set("revealed = EXCLUDED.revealed").
		Set("start_time = EXCLUDED.start_time").
		Set("end_time = EXCLUDED.end_time").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

func (j *Journal) AddParticipant(ctx context.Context, p domain.Participant) error {
	_, err := j.db.NewInsert().
		Model(&participantModel{
			ID:         p.ID,
			SessionID:  p.SessionID,
			Nickname:   p.Nickname,
			TotalScore: p.TotalScore,
			JoinedAt:   p.JoinedAt,
		}).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrNicknameTaken
		}
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// RecordAnswer inserts the answer and recomputes the participant total in one transaction.
func (j *Journal) RecordAnswer(ctx context.Context, a domain.ParticipantAnswer) error {
	return j.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		optionIDs := a.OptionIDs
		if optionIDs == nil {
			optionIDs = []string{}
		}
		_, err := tx.NewInsert().
			Model(&answerModel{
				ParticipantID: a.ParticipantID,
				QuestionID:    a.QuestionID,
				SessionID:     a.SessionID,
				OptionIDs:     optionIDs,
				ResponseTime:  a.ResponseTime,
				Score:         a.Score,
				Correct:       a.Correct,
				AnsweredAt:    a.AnsweredAt,
			}).
			Exec(ctx)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyAnswered
			}
			return fmt.Errorf("insert answer: %w", err)
		}

		res, err := tx.NewUpdate().
			Model((*participantModel)(nil)).
			Set("total_score = (SELECT COALESCE(SUM(score), 0) FROM participant_answers WHERE participant_id = ?)", a.ParticipantID).
			Where("id = ?", a.ParticipantID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update total score: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrParticipantNotFound
		}
		return nil
	})
}

// Session loads a journaled session.
func (j *Journal) Session(ctx context.Context, id string) (domain.Session, error) {
	m := new(sessionModel)
	if err := j.db.NewSelect().Model(m).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	return m.toDomain(), nil
}

// Participants lists a session's participants in join order.
func (j *Journal) Participants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	var rows []participantModel
	err := j.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Order("joined_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	out := make([]domain.Participant, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// Answers lists the answers recorded for a session.
func (j *Journal) Answers(ctx context.Context, sessionID string) ([]domain.ParticipantAnswer, error) {
	var rows []answerModel
	err := j.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Order("answered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]domain.ParticipantAnswer, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}
