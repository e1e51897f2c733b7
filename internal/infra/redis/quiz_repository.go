package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., document DB).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadQuizByAccessCode(ctx context.Context, code string) (domain.Quiz, error)
}

// QuizRepository caches quizzes in Redis and falls back to a loader on cache miss.
// Quizzes are stored as JSON:   SET quiz:{quizID} {json}
// Join codes map to quiz ids:    SET quiz:code:{code} {quizID}
type QuizRepository struct {
	client  *redis.Client
	loader  QuizLoader
	ttl     time.Duration
	sf      singleflight.Group
	observe func(result string)

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client:  client,
		loader:  loader,
		ttl:     ttl,
		observe: func(string) {},
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ObserveLookups registers a callback receiving "hit" or "miss" for every cache lookup.
func (r *QuizRepository) ObserveLookups(fn func(result string)) {
	if fn != nil {
		r.observe = fn
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		r.observe("hit")
		return quiz, nil
	}
	r.observe("miss")

	result, err, _ := r.sf.Do("id:"+quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) GetQuizByAccessCode(ctx context.Context, code string) (domain.Quiz, error) {
	quizID, err := r.client.Get(ctx, r.codeKey(code)).Result()
	if err == nil {
		if quiz, ok := r.cached(ctx, quizID); ok && quiz.AccessCode == code {
			r.observe("hit")
			return quiz, nil
		}
	}
	r.observe("miss")

	result, err, _ := r.sf.Do("code:"+code, func() (interface{}, error) {
		quiz, err := r.loader.LoadQuizByAccessCode(ctx, code)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, r.quizKey(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

// store is best effort; a failed write only costs another loader call later.
func (r *QuizRepository) store(ctx context.Context, quiz domain.Quiz) {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return
	}
	ttl := r.ttlWithJitter()
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.quizKey(quiz.ID), raw, ttl)
	if quiz.AccessCode != "" {
		pipe.Set(ctx, r.codeKey(quiz.AccessCode), quiz.ID, ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func (r *QuizRepository) quizKey(quizID string) string {
	return "quiz:" + quizID
}

func (r *QuizRepository) codeKey(code string) string {
	return "quiz:code:" + code
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
