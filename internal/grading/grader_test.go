package grading_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/quizgrade/internal/grading"
)

func TestChoice_ExactLabelMatch(t *testing.T) {
	q := choiceQ("q1", 3, "B", "A", "B", "C")
	g := grading.NewDefaultGrader(nil)

	cases := []struct {
		answer string
		want   float64
	}{
		{"B", 3},
		{"b", 0},
		{" B", 0},
		{"B ", 0},
		{"A", 0},
		{"Z", 0},
		{"", 0},
	}
	for _, tc := range cases {
		o := g.Grade(context.Background(), q, grading.Answer{QuestionID: "q1", Content: tc.answer})
		if o.Score != tc.want {
			t.Fatalf("answer %q: expected %v, got %v", tc.answer, tc.want, o.Score)
		}
		if o.Confidence != grading.ConfidenceHigh {
			t.Fatalf("answer %q: choice confidence must be high, got %q", tc.answer, o.Confidence)
		}
		if (grading.DefaultReviewPolicy{}).NeedsReview(o) {
			t.Fatalf("answer %q: choice outcome must not need review", tc.answer)
		}
	}
}

func TestChoice_ExplanationNamesCorrectOption(t *testing.T) {
	q := choiceQ("q1", 1, "B", "A", "B", "C")
	g := grading.NewDefaultGrader(nil)

	wrong := g.Grade(context.Background(), q, grading.Answer{QuestionID: "q1", Content: "A"})
	if !strings.Contains(wrong.Explanation, "correct option is B") {
		t.Fatalf("expected explanation to name B, got %q", wrong.Explanation)
	}
	missing := g.Grade(context.Background(), q, grading.Answer{QuestionID: "q1"})
	if !strings.HasPrefix(missing.Explanation, "No answer provided.") {
		t.Fatalf("unexpected explanation for missing answer: %q", missing.Explanation)
	}
}

func TestOpenEnded_MissingAnswerSkipsOracle(t *testing.T) {
	oracle := newFakeOracle()
	g := grading.NewDefaultGrader(oracle)

	for _, content := range []string{"", "   \n\t"} {
		o := g.Grade(context.Background(), openQ("q", 2), grading.Answer{QuestionID: "q", Content: content})
		if o.Score != 0 || o.Confidence != grading.ConfidenceHigh || o.Explanation != "no answer provided." {
			t.Fatalf("unexpected outcome for %q: %#v", content, o)
		}
	}
	if oracle.callCount() != 0 {
		t.Fatalf("oracle must not be called for missing answers")
	}
}

func TestOpenEnded_SendsFullRequest(t *testing.T) {
	oracle := newFakeOracle().reply("q", `{"score":1,"confidence":"high"}`)
	q := openQ("q", 2)
	grading.NewDefaultGrader(oracle).Grade(context.Background(), q, grading.Answer{QuestionID: "q", Content: "  raw text  "})

	if oracle.callCount() != 1 {
		t.Fatalf("expected one call")
	}
	req := oracle.calls[0]
	if req.Question != q.Prompt || req.ModelAnswer != q.ModelAnswer || req.Rubric != q.Rubric {
		t.Fatalf("question fields not forwarded: %#v", req)
	}
	if req.StudentAnswer != "  raw text  " || req.MaxPoints != 2 {
		t.Fatalf("answer fields not forwarded: %#v", req)
	}
}

func TestOpenEnded_ConfidenceLabels(t *testing.T) {
	cases := []struct {
		body string
		want grading.Confidence
	}{
		{`{"score":1,"confidence":"high"}`, grading.ConfidenceHigh},
		{`{"score":1,"confidence":" MEDIUM "}`, grading.ConfidenceMedium},
		{`{"score":1,"confidence":"low"}`, grading.ConfidenceLow},
		{`{"score":1,"confidence":"certain"}`, grading.ConfidenceLow},
		{`{"score":1}`, grading.ConfidenceLow},
	}
	for _, tc := range cases {
		oracle := newFakeOracle().reply("q", tc.body)
		o := grading.NewDefaultGrader(oracle).Grade(context.Background(), openQ("q", 2), grading.Answer{QuestionID: "q", Content: "x"})
		if o.Confidence != tc.want {
			t.Fatalf("body %s: expected %q, got %q", tc.body, tc.want, o.Confidence)
		}
		if o.Score != 1 || o.FallbackUsed {
			t.Fatalf("body %s: expected score kept, got %#v", tc.body, o)
		}
	}
}

func TestOpenEnded_MalformedResponseUsesFallback(t *testing.T) {
	oracle := newFakeOracle().reply("q", `{"points":2}`)
	o := grading.NewDefaultGrader(oracle, grading.WithFallbackFraction(0.7)).
		Grade(context.Background(), openQ("q", 2), grading.Answer{QuestionID: "q", Content: "x"})

	if o.Failure != grading.FailureOracleMalformed || !o.FallbackUsed {
		t.Fatalf("expected malformed fallback, got %#v", o)
	}
	if o.Score != 1.4 {
		t.Fatalf("expected 70%% of 2, got %v", o.Score)
	}
}

func TestOpenEnded_RefusalUsesFallback(t *testing.T) {
	oracle := newFakeOracle().reply("q", `{"kind":"refused","reason":"policy"}`)
	o := grading.NewDefaultGrader(oracle).Grade(context.Background(), openQ("q", 4), grading.Answer{QuestionID: "q", Content: "x"})
	if o.Failure != grading.FailureOracleUnavailable || o.Score != 2 {
		t.Fatalf("expected unavailable fallback at 50%%, got %#v", o)
	}
}

func TestOpenEnded_PanickingOracleUsesFallback(t *testing.T) {
	oracle := grading.OracleFunc(func(context.Context, grading.Request) ([]byte, error) { panic("boom") })
	o := grading.NewDefaultGrader(oracle).Grade(context.Background(), openQ("q", 2), grading.Answer{QuestionID: "q", Content: "x"})
	if !o.FallbackUsed || o.Score != 1 {
		t.Fatalf("expected fallback, got %#v", o)
	}
}

func TestFallbackFractionIsBounded(t *testing.T) {
	oracle := newFakeOracle().fail("q", context.DeadlineExceeded)
	for _, f := range []float64{-1, 2} {
		o := grading.NewDefaultGrader(oracle, grading.WithFallbackFraction(f)).
			Grade(context.Background(), openQ("q", 2), grading.Answer{QuestionID: "q", Content: "x"})
		if o.Score < 0 || o.Score > 2 {
			t.Fatalf("fraction %v produced out-of-range score %v", f, o.Score)
		}
	}
}

func TestNewDefaultGrader_AppliesOptions(t *testing.T) {
	opts := []grading.GraderOption{
		grading.WithFallbackFraction(0.25),
		grading.WithOracleTimeout(time.Second),
	}
	g := grading.NewDefaultGrader(nil, opts...)

	o := g.Grade(context.Background(), openQ("q", 4), grading.Answer{QuestionID: "q", Content: "x"})
	if !o.FallbackUsed || o.Score != 1 {
		t.Fatalf("expected fallback of 1 point, got %#v", o)
	}

	q := grading.Question{ID: "c", Kind: grading.KindChoice, Points: 1, Options: []grading.Option{
		{Label: "A"}, {Label: "B", Correct: true},
	}}
	if o := g.Grade(context.Background(), q, grading.Answer{QuestionID: "c", Content: "B"}); o.Score != 1 {
		t.Fatalf("expected full credit, got %#v", o)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		q    grading.Question
		ok   bool
	}{
		{"valid choice", choiceQ("q", 1, "A", "A", "B"), true},
		{"valid open", openQ("q", 1), true},
		{"zero points", choiceQ("q", 0, "A", "A", "B"), false},
		{"negative points", openQ("q", -1), false},
		{"one option", choiceQ("q", 1, "A", "A"), false},
		{"no correct", choiceQ("q", 1, "Z", "A", "B"), false},
		{"duplicate labels", choiceQ("q", 1, "A", "A", "A"), false},
		{"missing id", choiceQ("", 1, "A", "A", "B"), false},
		{"empty model answer", grading.Question{ID: "q", Kind: grading.KindOpenEnded, Points: 1, ModelAnswer: " "}, false},
		{"unknown kind", grading.Question{ID: "q", Kind: "essay", Points: 1}, false},
	}
	for _, tc := range cases {
		err := grading.Validate(tc.q)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: expected ok=%v, got err=%v", tc.name, tc.ok, err)
		}
	}
}

func TestValidate_TwoCorrectOptions(t *testing.T) {
	q := choiceQ("q", 1, "A", "A", "B")
	q.Options[1].Correct = true
	if err := grading.Validate(q); err == nil {
		t.Fatalf("expected error for two correct options")
	}
}
