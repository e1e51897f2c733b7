package domain

import "time"

// QuestionType selects the scoring rule of a question.
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionBoolean  QuestionType = "boolean"
)

// SessionStatus is the lifecycle state of a live session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// AnswerOption is a possible answer for a question.
type AnswerOption struct {
	ID       string `json:"id" yaml:"id" validate:"required"`
	Text     string `json:"text" yaml:"text"`
	Correct  bool   `json:"correct" yaml:"correct"`
	Position int    `json:"position" yaml:"position"`
}

// Question is one timed question of a quiz.
type Question struct {
	ID        string         `json:"id" yaml:"id" validate:"required"`
	Position  int            `json:"position" yaml:"position"`
	Type      QuestionType   `json:"type" yaml:"type" validate:"oneof=single multiple boolean"`
	Text      string         `json:"text" yaml:"text"`
	TimeLimit int            `json:"timeLimit" yaml:"time_limit" validate:"min=5,max=300"`
	Points    int            `json:"points" yaml:"points" validate:"min=1,max=1000"`
	Options   []AnswerOption `json:"options" yaml:"options" validate:"min=2,dive"`
}

// Option returns the option with the given id.
func (q Question) Option(id string) (AnswerOption, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return AnswerOption{}, false
}

// Quiz is the read-only catalog entry a session runs.
type Quiz struct {
	ID         string     `json:"id" yaml:"id" validate:"required"`
	OwnerID    string     `json:"ownerId" yaml:"owner_id"`
	Title      string     `json:"title" yaml:"title"`
	AccessCode string     `json:"accessCode" yaml:"access_code"`
	Questions  []Question `json:"questions" yaml:"questions" validate:"dive"`
}

// Session is a snapshot of one live run of a quiz.
type Session struct {
	ID                string        `json:"id"`
	QuizID            string        `json:"quizId"`
	OwnerID           string        `json:"ownerId"`
	Status            SessionStatus `json:"status"`
	CurrentQuestionID string        `json:"currentQuestionId,omitempty"`
	Revealed          bool          `json:"revealed"`
	StartTime         time.Time     `json:"startTime,omitempty"`
	EndTime           time.Time     `json:"endTime,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// Participant is a joined player of a session.
type Participant struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Nickname   string    `json:"nickname"`
	TotalScore int       `json:"totalScore"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// ParticipantAnswer is the append-only record of one scored submission.
type ParticipantAnswer struct {
	ParticipantID string    `json:"participantId"`
	SessionID     string    `json:"sessionId"`
	QuestionID    string    `json:"questionId"`
	OptionIDs     []string  `json:"optionIds"`
	ResponseTime  float64   `json:"responseTime"`
	Score         int       `json:"score"`
	Correct       bool      `json:"correct"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

// AnswerResult summarizes the outcome of a submission for a single participant.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
}

// RankingEntry is one row of a session ranking.
type RankingEntry struct {
	Position            int     `json:"position"`
	ParticipantID       string  `json:"participantId"`
	Nickname            string  `json:"nickname"`
	TotalScore          int     `json:"totalScore"`
	AnswersCount        int     `json:"answersCount"`
	AverageResponseTime float64 `json:"averageResponseTime"`
}

// Ranking is the ordered scoreboard plus the rank of the requesting participant.
type Ranking struct {
	SessionID string         `json:"sessionId"`
	Entries   []RankingEntry `json:"entries"`
	Position  int            `json:"position,omitempty"`
	Total     int            `json:"total"`
}

// Results aggregates a session for the results screen.
type Results struct {
	SessionID           string        `json:"sessionId"`
	Status              SessionStatus `json:"status"`
	ParticipantsCount   int           `json:"participantsCount"`
	QuestionsCount      int           `json:"questionsCount"`
	AverageScore        float64       `json:"averageScore"`
	AverageResponseTime float64       `json:"averageResponseTime"`
	CorrectPercentage   float64       `json:"correctPercentage"`
}

// QuestionOutcome is one participant's answer to one question. CorrectOptionIDs stays empty
// until the question's answers have been shown.
type QuestionOutcome struct {
	QuestionID       string   `json:"questionId"`
	Number           int      `json:"number"`
	Text             string   `json:"text"`
	Answered         bool     `json:"answered"`
	OptionIDs        []string `json:"optionIds,omitempty"`
	Correct          bool     `json:"correct"`
	Score            int      `json:"score"`
	ResponseTime     float64  `json:"responseTime"`
	CorrectOptionIDs []string `json:"correctOptionIds,omitempty"`
}

// ParticipantResults is the per-question breakdown of one participant plus their place.
type ParticipantResults struct {
	SessionID   string            `json:"sessionId"`
	Status      SessionStatus     `json:"status"`
	Participant Participant       `json:"participant"`
	Position    int               `json:"position"`
	Total       int               `json:"total"`
	Questions   []QuestionOutcome `json:"questions"`
}

// SessionState is what a client receives when it connects mid-session. Reveal is set once the
// host has shown the answers of the current question.
type SessionState struct {
	Session          Session          `json:"session"`
	QuizTitle        string           `json:"quizTitle"`
	QuestionsCount   int              `json:"questionsCount"`
	QuestionNumber   int              `json:"questionNumber,omitempty"`
	CurrentQuestion  *QuestionPayload `json:"currentQuestion,omitempty"`
	Reveal           *RevealPayload   `json:"reveal,omitempty"`
	ParticipantCount int              `json:"participantCount"`
	LastSeq          uint64           `json:"lastSeq"`
}

// Caller identifies who issues a host command. Authentication happens outside the service.
type Caller struct {
	UserID string
}
