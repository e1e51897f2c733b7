package app

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"live-quiz-service/internal/domain"
)

// Session is the in-memory runtime of one live quiz run. All mutations happen under mu;
// readers use the immutable view published at the end of every mutation.
type Session struct {
	id        string
	quiz      domain.Quiz
	questions []domain.Question
	now       func() time.Time

	mu           sync.Mutex
	state        domain.Session
	current      int
	openedAt     time.Time
	participants map[string]*participantState
	nicknames    map[string]string
	answered     map[answerKey]struct{}
	tallies      map[string]map[string]*optionTally
	seq          uint64

	view atomic.Pointer[sessionView]
}

type answerKey struct {
	participantID string
	questionID    string
}

type participantState struct {
	participant    domain.Participant
	order          int
	questionScores map[string]int
	responseTotal  float64
	correct        int
}

type optionTally struct {
	count         int
	responseTotal float64
}

type participantView struct {
	participant   domain.Participant
	order         int
	answers       int
	responseTotal float64
	correct       int
}

type sessionView struct {
	state         domain.Session
	questionIndex int
	participants  []participantView
	reveal        *domain.RevealPayload
	seq           uint64
}

// NewSession builds a pending session for quiz. Questions are ordered by position once, here.
func NewSession(id string, quiz domain.Quiz, ownerID string, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	s := &Session{
		id:           id,
		quiz:         quiz,
		questions:    domain.OrderedQuestions(quiz),
		now:          now,
		current:      -1,
		participants: make(map[string]*participantState),
		nicknames:    make(map[string]string),
		answered:     make(map[answerKey]struct{}),
		tallies:      make(map[string]map[string]*optionTally),
	}
	s.state = domain.Session{
		ID:        id,
		QuizID:    quiz.ID,
		OwnerID:   ownerID,
		Status:    domain.StatusPending,
		CreatedAt: now(),
	}
	s.refreshLocked()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// QuizID returns the id of the quiz being run.
func (s *Session) QuizID() string { return s.quiz.ID }

// Snapshot returns the latest published state without locking.
func (s *Session) Snapshot() domain.Session {
	return s.view.Load().state
}

// CurrentQuestion returns the open question, if any, without locking.
func (s *Session) CurrentQuestion() (domain.Question, bool) {
	v := s.view.Load()
	if v.questionIndex < 0 || v.questionIndex >= len(s.questions) {
		return domain.Question{}, false
	}
	return s.questions[v.questionIndex], true
}

func (s *Session) currentLocked() (domain.Question, bool) {
	if s.current < 0 || s.current >= len(s.questions) {
		return domain.Question{}, false
	}
	return s.questions[s.current], true
}

func (s *Session) eventLocked(typ domain.EventType, at time.Time) domain.Event {
	s.seq++
	return domain.Event{
		Type:      typ,
		SessionID: s.id,
		Seq:       s.seq,
		At:        at,
		QuizID:    s.quiz.ID,
	}
}

// refreshLocked publishes a new read view. Call it after every mutation.
func (s *Session) refreshLocked() {
	parts := make([]participantView, 0, len(s.participants))
	for _, p := range s.participants {
		parts = append(parts, participantView{
			participant:   p.participant,
			order:         p.order,
			answers:       len(p.questionScores),
			responseTotal: p.responseTotal,
			correct:       p.correct,
		})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].order < parts[j].order })
	var reveal *domain.RevealPayload
	if q, ok := s.currentLocked(); ok && s.state.Revealed {
		reveal = s.revealLocked(q)
	}
	s.view.Store(&sessionView{
		state:         s.state,
		questionIndex: s.current,
		participants:  parts,
		reveal:        reveal,
		seq:           s.seq,
	})
}

func (s *Session) revealLocked(q domain.Question) *domain.RevealPayload {
	reveal := &domain.RevealPayload{QuestionID: q.ID, Options: make([]domain.OptionStats, 0, len(q.Options))}
	tallies := s.tallies[q.ID]
	for _, opt := range q.Options {
		stats := domain.OptionStats{ID: opt.ID, Text: opt.Text, Correct: opt.Correct}
		if t, ok := tallies[opt.ID]; ok && t.count > 0 {
			stats.AnswerCount = t.count
			stats.AverageResponseTime = t.responseTotal / float64(t.count)
		}
		reveal.Options = append(reveal.Options, stats)
	}
	return reveal
}
