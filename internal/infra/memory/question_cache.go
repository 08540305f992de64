package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"quiz-room-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// FlightTimeout bounds a shared source call. The call outlives any single
// caller's cancellation since other rooms may be waiting on the same key.
const FlightTimeout = 30 * time.Second

// QuestionSource produces question sets (generator service, question bank...).
type QuestionSource interface {
	Generate(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error)
}

// QuestionCache keeps recently produced question sets per topic and difficulty
// so repeated requests do not hit the generator again.
type QuestionCache struct {
	source QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(source QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

// CacheKey normalizes a request into the key shared by every cache layer.
func CacheKey(topic string, difficulty domain.Difficulty) string {
	return string(difficulty) + ":" + strings.ToLower(strings.TrimSpace(topic))
}

func (c *QuestionCache) Generate(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error) {
	key := CacheKey(topic, difficulty)
	if questions, ok := c.lookup(key); ok {
		return questions, nil
	}

	flight := c.sf.DoChan(key, func() (interface{}, error) {
		if questions, ok := c.lookup(key); ok {
			return questions, nil
		}

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FlightTimeout)
		defer cancel()
		questions, err := c.source.Generate(fctx, topic, difficulty)
		if err != nil {
			return nil, err
		}
		// malformed sets are passed through for the room to reject, never cached
		if _, verr := domain.ValidateQuestionSet(questions); verr != nil {
			return questions, nil
		}

		c.mu.Lock()
		c.cache[key] = cachedSet{
			questions: questions,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	select {
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Question), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *QuestionCache) lookup(key string) ([]domain.Question, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return entry.questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
