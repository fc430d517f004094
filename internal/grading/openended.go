package grading

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	fallbackExplanation = "automatic grading failed, manual review required"
	noAnswerExplanation = "no answer provided."
)

type openEndedStrategy struct {
	oracle           Oracle
	fallbackFraction float64
	timeout          time.Duration
}

func (s openEndedStrategy) Grade(ctx context.Context, q Question, a Answer) Outcome {
	if strings.TrimSpace(a.Content) == "" {
		return Outcome{
			QuestionID:  q.ID,
			MaxScore:    q.Points,
			Confidence:  ConfidenceHigh,
			Explanation: noAnswerExplanation,
		}
	}
	if s.oracle == nil {
		return s.fallback(q, FailureOracleUnavailable)
	}

	raw, err := s.call(ctx, Request{
		QuestionID:    q.ID,
		Question:      q.Prompt,
		ModelAnswer:   q.ModelAnswer,
		Rubric:        q.Rubric,
		StudentAnswer: a.Content,
		MaxPoints:     q.Points,
	})
	if err != nil {
		return s.fallback(q, FailureOracleUnavailable)
	}
	resp, err := DecodeResponse(raw)
	if err != nil {
		return s.fallback(q, FailureOracleMalformed)
	}
	if resp.Refused != nil {
		return s.fallback(q, FailureOracleUnavailable)
	}

	v := resp.Graded
	conf, _ := ParseConfidence(v.Confidence)
	res := Outcome{
		QuestionID:  q.ID,
		MaxScore:    q.Points,
		Score:       v.Score,
		Confidence:  conf,
		Explanation: v.Explanation,
	}
	if score, clamped := clamp(v.Score, 0, q.Points); clamped {
		rawScore := v.Score
		res.Score = score
		res.RawScore = &rawScore
		res.Clamped = true
		res.Confidence = ConfidenceLow
		res.Failure = FailureScoreOutOfRange
		res.Explanation = strings.TrimSpace(fmt.Sprintf("%s (score %g adjusted to %g)", v.Explanation, rawScore, score))
	}
	return res
}

// call invokes the oracle under the per-call timeout. A panicking oracle is
// reported as an error like any other oracle failure.
func (s openEndedStrategy) call(ctx context.Context, req Request) (raw []byte, err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, fmt.Errorf("oracle panic: %v", r)
		}
	}()
	return s.oracle.Grade(ctx, req)
}

func (s openEndedStrategy) fallback(q Question, f Failure) Outcome {
	return Outcome{
		QuestionID:   q.ID,
		Score:        q.Points * s.fallbackFraction,
		MaxScore:     q.Points,
		Confidence:   ConfidenceLow,
		Explanation:  fallbackExplanation,
		Failure:      f,
		FallbackUsed: true,
	}
}

func clamp(v, lo, hi float64) (float64, bool) {
	if v < lo {
		return lo, true
	}
	if v > hi {
		return hi, true
	}
	return v, false
}
