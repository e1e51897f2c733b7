package app

import (
	"context"

	"live-quiz-service/internal/domain"
)

// QuizCatalog loads quiz content (from cache/backing store). It is read-only to the engine.
type QuizCatalog interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuizByAccessCode(ctx context.Context, code string) (domain.Quiz, error)
}

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-backed, etc).
type SessionRepository interface {
	Add(session *Session)
	Get(sessionID string) (*Session, bool)
	List() []*Session
	Delete(sessionID string)
	// Save publishes a snapshot of the session for readers outside this process. Best effort.
	Save(ctx context.Context, snapshot domain.Session) error
}

// Journal persists session facts. Writes happen before the in-memory state changes, so a failed
// write leaves the session untouched.
type Journal interface {
	SaveSession(ctx context.Context, session domain.Session) error
	// AddParticipant fails with domain.ErrNicknameTaken on a duplicate nickname.
	AddParticipant(ctx context.Context, participant domain.Participant) error
	// RecordAnswer stores the answer and recomputes the participant total. It fails with
	// domain.ErrAlreadyAnswered if the (participant, question) pair already exists.
	RecordAnswer(ctx context.Context, answer domain.ParticipantAnswer) error
}

// JournalReader reads back what a Journal recorded. Ranking and results fall back to it once a
// session has left memory.
type JournalReader interface {
	// Session fails with domain.ErrSessionNotFound for unknown ids.
	Session(ctx context.Context, sessionID string) (domain.Session, error)
	// Participants returns the session's participants in join order.
	Participants(ctx context.Context, sessionID string) ([]domain.Participant, error)
	Answers(ctx context.Context, sessionID string) ([]domain.ParticipantAnswer, error)
}

// Broadcaster fans events out to every subscriber of a session.
type Broadcaster interface {
	Publish(ctx context.Context, sessionID string, event domain.Event) error
	// Subscribe returns a stream of events published after the call. The caller must invoke
	// the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, sessionID string) (<-chan domain.Event, func(), error)
}

// Authorizer decides whether caller may drive the session. Identity comes from outside.
type Authorizer interface {
	AuthorizeHost(ctx context.Context, caller domain.Caller, session domain.Session) error
}

// OwnerAuthorizer allows only the user who created the session.
type OwnerAuthorizer struct{}

func (OwnerAuthorizer) AuthorizeHost(_ context.Context, caller domain.Caller, session domain.Session) error {
	if caller.UserID == "" || caller.UserID != session.OwnerID {
		return domain.ErrNotOwner
	}
	return nil
}
