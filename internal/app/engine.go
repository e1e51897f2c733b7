package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
)

const (
	endReasonCompleted = "completed"
	endReasonHost      = "ended_by_host"
)

// Start moves a pending session to active and opens its first question.
func (s *LiveService) Start(ctx context.Context, caller domain.Caller, sessionID string) (domain.Event, error) {
	started := time.Now()
	ev, err := s.start(ctx, caller, sessionID)
	s.metrics.ObserveCommand("start", domain.KindOf(err), started)
	return ev, err
}

func (s *LiveService) start(ctx context.Context, caller domain.Caller, sessionID string) (domain.Event, error) {
	session, err := s.hostSession(ctx, caller, sessionID)
	if err != nil {
		return domain.Event{}, err
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state.Status != domain.StatusPending {
		return domain.Event{}, domain.ErrAlreadyStarted
	}
	if len(session.questions) == 0 {
		return domain.Event{}, domain.ErrNoQuestionsInQuiz
	}
	if other := s.activeSession(session.quiz.ID); other != nil && other != session {
		return domain.Event{}, domain.ErrQuizAlreadyLive
	}

	now := s.now()
	first := session.questions[0]
	next := session.state
	next.Status = domain.StatusActive
	next.StartTime = now
	next.CurrentQuestionID = first.ID
	next.Revealed = false
	if err := s.journal.SaveSession(ctx, next); err != nil {
		return domain.Event{}, storageErr("start session", err)
	}

	session.state = next
	session.current = 0
	session.openedAt = now
	ev := session.eventLocked(domain.EventSessionStarted, now)
	ev.Question = domain.NewQuestionPayload(first)
	session.refreshLocked()
	s.publishLocked(ctx, session, ev)
	s.saveSnapshot(ctx, next)

	s.log.WithFields(logrus.Fields{"session_id": session.id, "question_id": first.ID}).Info("session started")
	return ev, nil
}

// Advance opens the question after the current one, or ends the session after the last question.
func (s *LiveService) Advance(ctx context.Context, caller domain.Caller, sessionID string) (domain.Event, error) {
	started := time.Now()
	ev, err := s.advance(ctx, caller, sessionID)
	s.metrics.ObserveCommand("advance", domain.KindOf(err), started)
	return ev, err
}

func (s *LiveService) advance(ctx context.Context, caller domain.Caller, sessionID string) (domain.Event, error) {
	session, err := s.hostSession(ctx, caller, sessionID)
	if err != nil {
		return domain.Event{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state.Status != domain.StatusActive {
		return domain.Event{}, domain.ErrNotActive
	}

	nextIndex := session.current + 1
	if nextIndex >= len(session.questions) {
		return s.endLocked(ctx, session, endReasonCompleted)
	}

	now := s.now()
	q := session.questions[nextIndex]
	next := session.state
	next.CurrentQuestionID = q.ID
	next.Revealed = false
	if err := s.journal.SaveSession(ctx, next); err != nil {
		return domain.Event{}, storageErr("advance session", err)
	}

	session.state = next
	session.current = nextIndex
	session.openedAt = now
	ev := session.eventLocked(domain.EventQuestionChanged, now)
	ev.Question = domain.NewQuestionPayload(q)
	session.refreshLocked()
	s.publishLocked(ctx, session, ev)
	s.saveSnapshot(ctx, next)

	s.log.WithFields(logrus.Fields{
		"session_id":  session.id,
		"question_id": q.ID,
		"number":      nextIndex + 1,
	}).Info("question changed")
	return ev, nil
}

// ShowAnswers reveals correctness of the current question together with how the room answered.
func (s *LiveService) ShowAnswers(ctx context.Context, caller domain.Caller, sessionID string) (domain.Event, error) {
	started := time.Now()
	ev, err := s.showAnswers(ctx, caller, sessionID)
	s.metrics.ObserveCommand("show_answers", domain.KindOf(err), started)
	return ev, err
}

func (s *LiveService) showAnswers(ctx context.Context, caller domain.Caller, sessionID string) (domain.Event, error) {
	session, err := s.hostSession(ctx, caller, sessionID)
	if err != nil {
		return domain.Event{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	q, ok := session.currentLocked()
	if !ok {
		return domain.Event{}, domain.ErrNoCurrentQuestion
	}

	next := session.state
	next.Revealed = true
	if err := s.journal.SaveSession(ctx, next); err != nil {
		return domain.Event{}, storageErr("show answers", err)
	}

	session.state = next
	ev := session.eventLocked(domain.EventShowAnswers, s.now())
	ev.Reveal = session.revealLocked(q)
	session.refreshLocked()
	s.publishLocked(ctx, session, ev)
	s.saveSnapshot(ctx, next)
	return ev, nil
}

// End completes an active session. Answers arriving afterwards are rejected.
func (s *LiveService) End(ctx context.Context, caller domain.Caller, sessionID string) (domain.Event, error) {
	started := time.Now()
	ev, err := s.end(ctx, caller, sessionID)
	s.metrics.ObserveCommand("end", domain.KindOf(err), started)
	return ev, err
}

func (s *LiveService) end(ctx context.Context, caller domain.Caller, sessionID string) (domain.Event, error) {
	session, err := s.hostSession(ctx, caller, sessionID)
	if err != nil {
		return domain.Event{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	switch session.state.Status {
	case domain.StatusCompleted:
		return domain.Event{}, domain.ErrAlreadyEnded
	case domain.StatusPending:
		return domain.Event{}, domain.ErrNotActive
	}
	return s.endLocked(ctx, session, endReasonHost)
}

func (s *LiveService) endLocked(ctx context.Context, session *Session, reason string) (domain.Event, error) {
	now := s.now()
	next := session.state
	next.Status = domain.StatusCompleted
	next.EndTime = now
	next.CurrentQuestionID = ""
	next.Revealed = false
	if err := s.journal.SaveSession(ctx, next); err != nil {
		return domain.Event{}, storageErr("end session", err)
	}

	session.state = next
	session.current = -1
	ev := session.eventLocked(domain.EventSessionEnded, now)
	ev.Reason = reason
	session.refreshLocked()
	s.publishLocked(ctx, session, ev)
	s.saveSnapshot(ctx, next)

	s.log.WithFields(logrus.Fields{
		"session_id":   session.id,
		"reason":       reason,
		"participants": len(session.participants),
	}).Info("session ended")
	return ev, nil
}

// CurrentQuestion returns the open question of a session. It does not take the session lock.
func (s *LiveService) CurrentQuestion(_ context.Context, sessionID string) (domain.Question, bool, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Question{}, false, err
	}
	q, ok := session.CurrentQuestion()
	return q, ok, nil
}

// SnapshotReader is implemented by session repositories that can serve sessions owned by
// another process.
type SnapshotReader interface {
	Snapshot(ctx context.Context, sessionID string) (domain.Session, bool, error)
}

// State is what a client should load when it connects, since events are never replayed.
func (s *LiveService) State(ctx context.Context, sessionID string) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		if reader, ok := s.sessions.(SnapshotReader); ok {
			snap, found, err := reader.Snapshot(ctx, sessionID)
			if err != nil {
				return domain.SessionState{}, storageErr("read snapshot", err)
			}
			if found {
				return domain.SessionState{Session: snap}, nil
			}
		}
		return domain.SessionState{}, domain.ErrSessionNotFound
	}

	v := session.view.Load()
	state := domain.SessionState{
		Session:          v.state,
		QuizTitle:        session.quiz.Title,
		QuestionsCount:   len(session.questions),
		ParticipantCount: len(v.participants),
		LastSeq:          v.seq,
	}
	if v.questionIndex >= 0 && v.questionIndex < len(session.questions) {
		state.QuestionNumber = v.questionIndex + 1
		state.CurrentQuestion = domain.NewQuestionPayload(session.questions[v.questionIndex])
		state.Reveal = v.reveal
	}
	return state, nil
}

// hostSession resolves the session and checks the caller may drive it.
func (s *LiveService) hostSession(ctx context.Context, caller domain.Caller, sessionID string) (*Session, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.AuthorizeHost(ctx, caller, session.Snapshot()); err != nil {
		return nil, err
	}
	return session, nil
}
