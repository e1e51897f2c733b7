package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/logger"
	"live-quiz-service/internal/metrics"
)

// LiveService is the command surface of the live session engine.
type LiveService struct {
	sessions SessionRepository
	quizzes  QuizCatalog
	journal  Journal
	events   Broadcaster
	auth     Authorizer

	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
	retention time.Duration

	// startMu serializes Start so "one active session per quiz" cannot race.
	startMu sync.Mutex
}

// Option customizes a LiveService.
type Option func(*LiveService)

func WithAuthorizer(a Authorizer) Option { return func(s *LiveService) { s.auth = a } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *LiveService) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *LiveService) { s.metrics = m } }

// WithClock is meant for tests that need deterministic timestamps.
func WithClock(now func() time.Time) Option { return func(s *LiveService) { s.now = now } }

func WithIDGenerator(f func() string) Option { return func(s *LiveService) { s.newID = f } }

// WithRetention sets how long completed sessions stay in memory before Sweep drops them.
func WithRetention(d time.Duration) Option { return func(s *LiveService) { s.retention = d } }

func NewLiveService(sessions SessionRepository, quizzes QuizCatalog, journal Journal, events Broadcaster, opts ...Option) *LiveService {
	s := &LiveService{
		sessions:  sessions,
		quizzes:   quizzes,
		journal:   journal,
		events:    events,
		auth:      OwnerAuthorizer{},
		now:       time.Now,
		newID:     uuid.NewString,
		retention: 30 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	return s
}

// CreateSession opens a pending session of quizID owned by caller.
func (s *LiveService) CreateSession(ctx context.Context, caller domain.Caller, quizID string) (domain.Session, error) {
	started := time.Now()
	snap, err := s.createSession(ctx, caller, quizID)
	s.metrics.ObserveCommand("create_session", domain.KindOf(err), started)
	return snap, err
}

func (s *LiveService) createSession(ctx context.Context, caller domain.Caller, quizID string) (domain.Session, error) {
	if caller.UserID == "" {
		return domain.Session{}, domain.ErrNotOwner
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Session{}, err
	}
	if quiz.OwnerID != "" && quiz.OwnerID != caller.UserID {
		return domain.Session{}, domain.ErrNotOwner
	}
	if err := domain.ValidateQuiz(quiz); err != nil {
		return domain.Session{}, err
	}

	session := NewSession(s.newID(), quiz, caller.UserID, s.now)
	snap := session.Snapshot()
	if err := s.journal.SaveSession(ctx, snap); err != nil {
		return domain.Session{}, storageErr("save session", err)
	}
	s.sessions.Add(session)
	s.saveSnapshot(ctx, snap)
	s.metrics.LiveSessions.Set(float64(len(s.sessions.List())))

	s.log.WithFields(logrus.Fields{
		"session_id": snap.ID,
		"quiz_id":    quiz.ID,
		"owner_id":   caller.UserID,
	}).Info("session created")
	return snap, nil
}

// Subscribe returns a channel that receives the events of a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LiveService) Subscribe(ctx context.Context, sessionID string) (<-chan domain.Event, func(), error) {
	if _, ok := s.sessions.Get(sessionID); !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel, err := s.events.Subscribe(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.Subscribers.Inc()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			cancel()
			s.metrics.Subscribers.Dec()
		})
	}, nil
}

// Sweep drops completed sessions that ended more than the retention period ago.
func (s *LiveService) Sweep(_ context.Context) int {
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, session := range s.sessions.List() {
		snap := session.Snapshot()
		if snap.Status == domain.StatusCompleted && snap.EndTime.Before(cutoff) {
			s.sessions.Delete(snap.ID)
			removed++
		}
	}
	s.metrics.LiveSessions.Set(float64(len(s.sessions.List())))
	if removed > 0 {
		s.log.WithField("removed", removed).Debug("swept completed sessions")
	}
	return removed
}

func (s *LiveService) session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// activeSession finds the running session of quizID, if any.
func (s *LiveService) activeSession(quizID string) *Session {
	var found *Session
	for _, session := range s.sessions.List() {
		snap := session.Snapshot()
		if snap.QuizID != quizID || snap.Status != domain.StatusActive {
			continue
		}
		if found == nil || snap.StartTime.After(found.Snapshot().StartTime) {
			found = session
		}
	}
	return found
}

// publishLocked must run while the session lock is held so subscribers observe production order.
func (s *LiveService) publishLocked(ctx context.Context, session *Session, ev domain.Event) {
	s.metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	if err := s.events.Publish(ctx, session.id, ev); err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": session.id,
			"event":      ev.Type,
			"seq":        ev.Seq,
		}).WithError(err).Warn("event publish failed")
	}
}

func (s *LiveService) saveSnapshot(ctx context.Context, snap domain.Session) {
	if err := s.sessions.Save(ctx, snap); err != nil {
		s.log.WithField("session_id", snap.ID).WithError(err).Warn("session snapshot not saved")
	}
}

// storageErr keeps domain errors intact and wraps everything else as a retryable StorageError.
func storageErr(op string, err error) error {
	if domain.KindOf(err) != "internal" {
		return err
	}
	return domain.NewStorageError(op, err)
}
