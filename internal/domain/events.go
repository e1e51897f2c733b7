package domain

import "time"

// EventType names a session event on the wire.
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventSessionEnded        EventType = "session_ended"
	EventQuestionChanged     EventType = "question_changed"
	EventShowAnswers         EventType = "show_answers"
	EventParticipantJoined   EventType = "participant_joined"
	EventParticipantAnswered EventType = "participant_answered"
)

// Event is fanned out to every subscriber of a session. Seq increases by one per event within a session.
type Event struct {
	Type        EventType           `json:"type"`
	SessionID   string              `json:"sessionId"`
	Seq         uint64              `json:"seq"`
	At          time.Time           `json:"at"`
	QuizID      string              `json:"quizId,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Question    *QuestionPayload    `json:"question,omitempty"`
	Reveal      *RevealPayload      `json:"reveal,omitempty"`
	Participant *ParticipantPayload `json:"participant,omitempty"`
	Answer      *AnswerPayload      `json:"answer,omitempty"`
}

// QuestionPayload is a question as shown to participants, without correctness flags.
type QuestionPayload struct {
	ID        string          `json:"id"`
	Type      QuestionType    `json:"type"`
	Text      string          `json:"text"`
	TimeLimit int             `json:"timeLimit"`
	Points    int             `json:"points"`
	Options   []OptionPayload `json:"options"`
}

type OptionPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RevealPayload discloses correctness and how the room answered.
type RevealPayload struct {
	QuestionID string        `json:"questionId"`
	Options    []OptionStats `json:"options"`
}

type OptionStats struct {
	ID                  string  `json:"id"`
	Text                string  `json:"text"`
	Correct             bool    `json:"correct"`
	AnswerCount         int     `json:"answerCount"`
	AverageResponseTime float64 `json:"averageResponseTime"`
}

type ParticipantPayload struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

type AnswerPayload struct {
	ParticipantID string  `json:"participantId"`
	Nickname      string  `json:"nickname"`
	QuestionID    string  `json:"questionId"`
	ResponseTime  float64 `json:"responseTime"`
	ScoreDelta    int     `json:"scoreDelta"`
	TotalScore    int     `json:"totalScore"`
}

// NewQuestionPayload strips correctness from q.
func NewQuestionPayload(q Question) *QuestionPayload {
	opts := make([]OptionPayload, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, OptionPayload{ID: o.ID, Text: o.Text})
	}
	return &QuestionPayload{
		ID:        q.ID,
		Type:      q.Type,
		Text:      q.Text,
		TimeLimit: q.TimeLimit,
		Points:    q.Points,
		Options:   opts,
	}
}
