package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/quizgrade/internal/grading"
)

type fakeKV struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]string{}} }

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

type countingOracle struct {
	calls int
	body  string
	err   error
}

func (c *countingOracle) Grade(context.Context, grading.Request) ([]byte, error) {
	c.calls++
	return []byte(c.body), c.err
}

func TestCached_HitsAfterVerdict(t *testing.T) {
	next := &countingOracle{body: `{"kind":"graded","score":1.5,"confidence":"medium","explanation":"ok"}`}
	c := newCached(next, newFakeKV(), time.Hour, "m1", nil)
	req := grading.Request{QuestionID: "q2", Question: "Q", StudentAnswer: "A", MaxPoints: 2}

	first, err := c.Grade(context.Background(), req)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := c.Grade(context.Background(), req)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if string(first) != string(second) || next.calls != 1 {
		t.Fatalf("expected cached replay, calls=%d", next.calls)
	}

	req.StudentAnswer = "B"
	if _, err := c.Grade(context.Background(), req); err != nil || next.calls != 2 {
		t.Fatalf("different answer must miss: calls=%d err=%v", next.calls, err)
	}
}

func TestCached_DoesNotStoreFailures(t *testing.T) {
	for _, tc := range []struct {
		name string
		next *countingOracle
	}{
		{"malformed", &countingOracle{body: `not json`}},
		{"refused", &countingOracle{body: `{"kind":"refused","reason":"off topic"}`}},
		{"error", &countingOracle{err: errors.New("503")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newCached(tc.next, newFakeKV(), time.Hour, "", nil)
			req := grading.Request{QuestionID: "q"}
			_, _ = c.Grade(context.Background(), req)
			_, _ = c.Grade(context.Background(), req)
			if tc.next.calls != 2 {
				t.Fatalf("failure must not be cached, calls=%d", tc.next.calls)
			}
		})
	}
}

func TestCached_RedisOutageFallsThrough(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = errors.New("connection refused")
	next := &countingOracle{body: `{"score":1}`}
	c := newCached(next, kv, time.Hour, "", nil)

	raw, err := c.Grade(context.Background(), grading.Request{QuestionID: "q"})
	if err != nil || string(raw) != `{"score":1}` || next.calls != 1 {
		t.Fatalf("expected pass-through, raw=%s err=%v calls=%d", raw, err, next.calls)
	}
}
