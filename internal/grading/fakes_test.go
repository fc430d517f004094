package grading_test

import (
	"context"
	"sync"

	"github.com/mind-engage/quizgrade/internal/grading"
)

/* ---------------- fake oracle ---------------- */

type oracleReply struct {
	body string
	err  error
}

type fakeOracle struct {
	mu      sync.Mutex
	replies map[string]oracleReply // question id -> reply
	calls   []grading.Request
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{replies: map[string]oracleReply{}}
}

func (f *fakeOracle) reply(questionID, body string) *fakeOracle {
	f.replies[questionID] = oracleReply{body: body}
	return f
}

func (f *fakeOracle) fail(questionID string, err error) *fakeOracle {
	f.replies[questionID] = oracleReply{err: err}
	return f
}

func (f *fakeOracle) Grade(_ context.Context, req grading.Request) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	r, ok := f.replies[req.QuestionID]
	if !ok {
		return []byte(`{"score":0,"confidence":"high","explanation":"no reply configured"}`), nil
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.body), nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

/* ---------------- fixtures ---------------- */

func choiceQ(id string, points float64, correct string, labels ...string) grading.Question {
	opts := make([]grading.Option, 0, len(labels))
	for _, l := range labels {
		opts = append(opts, grading.Option{Label: l, Text: "option " + l, Correct: l == correct})
	}
	return grading.Question{ID: id, Kind: grading.KindChoice, Prompt: "Pick one", Points: points, Options: opts}
}

func openQ(id string, points float64) grading.Question {
	return grading.Question{
		ID:          id,
		Kind:        grading.KindOpenEnded,
		Prompt:      "What does photosynthesis do?",
		Points:      points,
		ModelAnswer: "It converts light energy into chemical energy.",
		Rubric:      "Mentions light and chemical energy.",
	}
}

// photosynthesisQuiz is one choice question (B correct, weight 1) and one
// open-ended question (weight 2).
func photosynthesisQuiz() ([]grading.Question, []grading.Answer) {
	qs := []grading.Question{
		choiceQ("q1", 1, "B", "A", "B", "C"),
		openQ("q2", 2),
	}
	as := []grading.Answer{
		{QuestionID: "q1", Content: "B"},
		{QuestionID: "q2", Content: "photosynthesis converts light to chemical energy."},
	}
	return qs, as
}
