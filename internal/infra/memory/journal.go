package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// Journal keeps session facts in maps. It enforces the same uniqueness rules as the SQL journal.
type Journal struct {
	mu           sync.Mutex
	sessions     map[string]domain.Session
	participants map[string]domain.Participant
	joined       map[string][]string
	nicknames    map[string]struct{}
	answered     map[answerRow]struct{}
	answers      map[string][]domain.ParticipantAnswer
}

type answerRow struct {
	participantID string
	questionID    string
}

func NewJournal() *Journal {
	return &Journal{
		sessions:     make(map[string]domain.Session),
		participants: make(map[string]domain.Participant),
		joined:       make(map[string][]string),
		nicknames:    make(map[string]struct{}),
		answered:     make(map[answerRow]struct{}),
		answers:      make(map[string][]domain.ParticipantAnswer),
	}
}

func (j *Journal) SaveSession(_ context.Context, session domain.Session) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessions[session.ID] = session
	return nil
}

func (j *Journal) AddParticipant(_ context.Context, p domain.Participant) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	key := p.SessionID + "\x00" + p.Nickname
	if _, taken := j.nicknames[key]; taken {
		return domain.ErrNicknameTaken
	}
	j.nicknames[key] = struct{}{}
	j.participants[p.ID] = p
	j.joined[p.SessionID] = append(j.joined[p.SessionID], p.ID)
	return nil
}

func (j *Journal) RecordAnswer(_ context.Context, a domain.ParticipantAnswer) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	p, ok := j.participants[a.ParticipantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	row := answerRow{participantID: a.ParticipantID, questionID: a.QuestionID}
	if _, dup := j.answered[row]; dup {
		return domain.ErrAlreadyAnswered
	}
	j.answered[row] = struct{}{}
	j.answers[a.SessionID] = append(j.answers[a.SessionID], a)

	p.TotalScore += a.Score
	j.participants[p.ID] = p
	return nil
}

func (j *Journal) Session(_ context.Context, sessionID string) (domain.Session, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s, ok := j.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

// Participants returns the session's participants in join order with their stored totals.
func (j *Journal) Participants(_ context.Context, sessionID string) ([]domain.Participant, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := j.joined[sessionID]
	out := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, j.participants[id])
	}
	return out, nil
}

// Answers returns the session's answers in the order they were recorded.
func (j *Journal) Answers(_ context.Context, sessionID string) ([]domain.ParticipantAnswer, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.ParticipantAnswer, len(j.answers[sessionID]))
	copy(out, j.answers[sessionID])
	return out, nil
}
