package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/quizgrade/internal/grading"
	"github.com/mind-engage/quizgrade/internal/logger"
)

// kv is the subset of redis.UniversalClient the cache needs.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cached remembers successful verdicts per identical request, so re-grading
// unchanged answers sees the same oracle output. Refusals, malformed output
// and errors are not cached.
type Cached struct {
	next      grading.Oracle
	rdb       kv
	ttl       time.Duration
	namespace string
	log       *logger.Logger
}

// NewCached wraps next. namespace separates entries of different models or
// prompts sharing one Redis.
func NewCached(next grading.Oracle, rdb redis.UniversalClient, ttl time.Duration, namespace string, log *logger.Logger) *Cached {
	return newCached(next, rdb, ttl, namespace, log)
}

func newCached(next grading.Oracle, rdb kv, ttl time.Duration, namespace string, log *logger.Logger) *Cached {
	if log == nil {
		log = logger.Nop()
	}
	return &Cached{next: next, rdb: rdb, ttl: ttl, namespace: namespace, log: log}
}

func (c *Cached) key(req grading.Request) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(c.namespace+"\x00"), b...))
	return "quizgrade:oracle:" + hex.EncodeToString(sum[:]), nil
}

func (c *Cached) Grade(ctx context.Context, req grading.Request) ([]byte, error) {
	key, err := c.key(req)
	if err != nil {
		return c.next.Grade(ctx, req)
	}
	hit, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return hit, nil
	case !errors.Is(err, redis.Nil):
		c.log.Warn("oracle cache read failed", "question_id", req.QuestionID, "err", err)
	}

	raw, err := c.next.Grade(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp, derr := grading.DecodeResponse(raw); derr == nil && resp.Graded != nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warn("oracle cache write failed", "question_id", req.QuestionID, "err", err)
		}
	}
	return raw, nil
}
