package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches generated question sets in Redis as JSON so every
// instance reuses them, and falls back to a source on cache miss.
// Sets are stored as: SET quiz:questions:{difficulty}:{topic} <json> EX ttl
type QuestionCache struct {
	client *redis.Client
	source memory.QuestionSource
	ttl    time.Duration
	log    *slog.Logger
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuestionCache(client *redis.Client, source memory.QuestionSource, ttl time.Duration, log *slog.Logger) *QuestionCache {
	if log == nil {
		log = slog.Default()
	}
	return &QuestionCache{
		client: client,
		source: source,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Generate(ctx context.Context, topic string, difficulty domain.Difficulty) ([]domain.Question, error) {
	key := c.key(topic, difficulty)
	if questions, ok := c.lookup(ctx, key); ok {
		return questions, nil
	}

	flight := c.sf.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), memory.FlightTimeout)
		defer cancel()

		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.lookup(fctx, key); ok {
			return questions, nil
		}

		questions, err := c.source.Generate(fctx, topic, difficulty)
		if err != nil {
			return nil, err
		}
		if _, verr := domain.ValidateQuestionSet(questions); verr != nil {
			return questions, nil
		}

		data, err := json.Marshal(questions)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(fctx, key, data, c.ttlWithJitter()).Err(); err != nil {
			c.log.Warn("question cache write failed", "key", key, "err", err)
		}
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

// lookup treats any Redis failure as a miss; the source stays authoritative.
func (c *QuestionCache) lookup(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("question cache read failed", "key", key, "err", err)
		}
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		c.log.Warn("dropping corrupt question cache entry", "key", key, "err", err)
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) key(topic string, difficulty domain.Difficulty) string {
	return "quiz:questions:" + memory.CacheKey(topic, difficulty)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
