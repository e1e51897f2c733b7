package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a live session does not exist.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionNotActive is returned when joining or answering a session that is not running.
	ErrSessionNotActive = errors.New("quiz session not active")
	// ErrNotActive is returned when a host command needs a running session.
	ErrNotActive = errors.New("session is not active")
	// ErrAlreadyStarted is returned when starting a session that left the pending state.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrAlreadyEnded is returned when ending a completed session.
	ErrAlreadyEnded = errors.New("session already ended")
	// ErrNoQuestionsInQuiz is returned when starting a session for an empty quiz.
	ErrNoQuestionsInQuiz = errors.New("quiz has no questions")
	// ErrQuizAlreadyLive is returned when another session of the same quiz is active.
	ErrQuizAlreadyLive = errors.New("quiz already has an active session")
	// ErrNoCurrentQuestion is returned when revealing answers without a current question.
	ErrNoCurrentQuestion = errors.New("session has no current question")
	// ErrQuestionNotCurrent is returned for answers targeting a question that is not open.
	ErrQuestionNotCurrent = errors.New("question is not the current question")
	// ErrAlreadyAnswered is returned for a second submission of the same participant and question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrInvalidSelectionCount is returned when the number of selected options is not allowed.
	ErrInvalidSelectionCount = errors.New("invalid number of selected options")
	// ErrInvalidResponseTime is returned for negative or non-numeric response times.
	ErrInvalidResponseTime = errors.New("invalid response time")
	// ErrNicknameTaken is returned when a nickname is already used in the session.
	ErrNicknameTaken = errors.New("nickname already taken")
	// ErrInvalidNickname is returned when a nickname is outside the allowed length.
	ErrInvalidNickname = errors.New("nickname must be 3-20 characters")
	// ErrNotOwner is returned when a host command comes from someone other than the quiz owner.
	ErrNotOwner = errors.New("caller does not own the quiz")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz indicates the quiz content breaks catalog rules.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrStorage matches every StorageError.
	ErrStorage = errors.New("storage failure")
)

// StorageError wraps a transient persistence failure. Callers may retry.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

var kinds = []struct {
	err  error
	kind string
}{
	{ErrSessionNotFound, "session_not_found"},
	{ErrSessionNotActive, "session_not_active"},
	{ErrNotActive, "not_active"},
	{ErrAlreadyStarted, "already_started"},
	{ErrAlreadyEnded, "already_ended"},
	{ErrNoQuestionsInQuiz, "no_questions_in_quiz"},
	{ErrQuizAlreadyLive, "quiz_already_live"},
	{ErrNoCurrentQuestion, "no_current_question"},
	{ErrQuestionNotCurrent, "question_not_current"},
	{ErrAlreadyAnswered, "already_answered"},
	{ErrInvalidSelectionCount, "invalid_selection_count"},
	{ErrInvalidResponseTime, "invalid_response_time"},
	{ErrNicknameTaken, "nickname_taken"},
	{ErrInvalidNickname, "invalid_nickname"},
	{ErrNotOwner, "not_owner"},
	{ErrParticipantNotFound, "participant_not_found"},
	{ErrQuizNotFound, "quiz_not_found"},
	{ErrInvalidQuiz, "invalid_quiz"},
	{ErrOptionNotFound, "option_not_found"},
	{ErrStorage, "storage_error"},
}

// KindOf returns a stable code for err, "ok" for nil and "internal" for unknown errors.
func KindOf(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
