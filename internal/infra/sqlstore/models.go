package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

type sessionModel struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID                string    `bun:"id,pk"`
	QuizID            string    `bun:"quiz_id,notnull"`
	OwnerID           string    `bun:"owner_id,notnull"`
	Status            string    `bun:"status,notnull"`
	CurrentQuestionID string    `bun:"current_question_id,nullzero"`
	Revealed          bool      `bun:"revealed,notnull"`
	StartTime         time.Time `bun:"start_time,nullzero"`
	EndTime           time.Time `bun:"end_time,nullzero"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
}

func newSessionModel(s domain.Session) *sessionModel {
	return &sessionModel{
		ID:                s.ID,
		QuizID:            s.QuizID,
		OwnerID:           s.OwnerID,
		Status:            string(s.Status),
		CurrentQuestionID: s.CurrentQuestionID,
		Revealed:          s.Revealed,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		CreatedAt:         s.CreatedAt,
	}
}

func (m *sessionModel) toDomain() domain.Session {
	return domain.Session{
		ID:                m.ID,
		QuizID:            m.QuizID,
		OwnerID:           m.OwnerID,
		Status:            domain.SessionStatus(m.Status),
		CurrentQuestionID: m.CurrentQuestionID,
		Revealed:          m.Revealed,
		StartTime:         m.StartTime,
		EndTime:           m.EndTime,
		CreatedAt:         m.CreatedAt,
	}
}

type participantModel struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID         string    `bun:"id,pk"`
	SessionID  string    `bun:"session_id,notnull"`
	Nickname   string    `bun:"nickname,notnull"`
	TotalScore int       `bun:"total_score,notnull"`
	JoinedAt   time.Time `bun:"joined_at,notnull"`
}

func (m *participantModel) toDomain() domain.Participant {
	return domain.Participant{
		ID:         m.ID,
		SessionID:  m.SessionID,
		Nickname:   m.Nickname,
		TotalScore: m.TotalScore,
		JoinedAt:   m.JoinedAt,
	}
}

// answerModel keeps a multiple-choice selection in one row so the (participant, question)
// primary key guards the whole submission.
type answerModel struct {
	bun.BaseModel `bun:"table:participant_answers,alias:pa"`

	ParticipantID string    `bun:"participant_id,pk"`
	QuestionID    string    `bun:"question_id,pk"`
	SessionID     string    `bun:"session_id,notnull"`
	OptionIDs     []string  `bun:"option_ids,type:jsonb,notnull"`
	ResponseTime  float64   `bun:"response_time,notnull"`
	Score         int       `bun:"score,notnull"`
	Correct       bool      `bun:"correct,notnull"`
	AnsweredAt    time.Time `bun:"answered_at,notnull"`
}

func (m *answerModel) toDomain() domain.ParticipantAnswer {
	return domain.ParticipantAnswer{
		ParticipantID: m.ParticipantID,
		SessionID:     m.SessionID,
		QuestionID:    m.QuestionID,
		OptionIDs:     m.OptionIDs,
		ResponseTime:  m.ResponseTime,
		Score:         m.Score,
		Correct:       m.Correct,
		AnsweredAt:    m.AnsweredAt,
	}
}

type quizModel struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID         string          `bun:"id,pk"`
	OwnerID    string          `bun:"owner_id,notnull"`
	Title      string          `bun:"title,notnull"`
	AccessCode string          `bun:"access_code,nullzero"`
	Data       json.RawMessage `bun:"data,type:jsonb,notnull"`
}
