package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// SessionStore keeps runtime sessions in a local map and mirrors a snapshot of each into a Redis hash,
// so other instances can answer state queries for sessions they do not own.
//
//	HSET quiz:session:{sessionID} status active current_question_id q1 ...
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Add(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) List() []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (s *SessionStore) Save(ctx context.Context, snap domain.Session) error {
	key := s.key(snap.ID)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":                  snap.ID,
		"quiz_id":             snap.QuizID,
		"owner_id":            snap.OwnerID,
		"status":              string(snap.Status),
		"current_question_id": snap.CurrentQuestionID,
		"revealed":            strconv.FormatBool(snap.Revealed),
		"start_time":          formatTime(snap.StartTime),
		"end_time":            formatTime(snap.EndTime),
		"created_at":          formatTime(snap.CreatedAt),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot reads the mirrored state of a session, possibly owned by another instance.
func (s *SessionStore) Snapshot(ctx context.Context, sessionID string) (domain.Session, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		if isNil(err) {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	if len(fields) == 0 {
		return domain.Session{}, false, nil
	}
	revealed, _ := strconv.ParseBool(fields["revealed"])
	return domain.Session{
		ID:                fields["id"],
		QuizID:            fields["quiz_id"],
		OwnerID:           fields["owner_id"],
		Status:            domain.SessionStatus(fields["status"]),
		CurrentQuestionID: fields["current_question_id"],
		Revealed:          revealed,
		StartTime:         parseTime(fields["start_time"]),
		EndTime:           parseTime(fields["end_time"]),
		CreatedAt:         parseTime(fields["created_at"]),
	}, true, nil
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
