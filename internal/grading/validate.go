package grading

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrMalformedQuestion = errors.New("malformed question")

// Validate checks the invariants the generation pipeline is expected to
// uphold. A violation is reported as ErrMalformedQuestion with the reason.
func Validate(q Question) error {
	if strings.TrimSpace(q.ID) == "" {
		return malformed("missing question id")
	}
	if math.IsNaN(q.Points) || math.IsInf(q.Points, 0) || q.Points <= 0 {
		return malformed("points must be positive, got %v", q.Points)
	}
	switch q.Kind {
	case KindChoice:
		if len(q.Options) < 2 {
			return malformed("choice question needs at least 2 options, got %d", len(q.Options))
		}
		labels := make(map[string]struct{}, len(q.Options))
		correct := 0
		for _, o := range q.Options {
			if o.Label == "" {
				return malformed("option with empty label")
			}
			if _, dup := labels[o.Label]; dup {
				return malformed("duplicate option label %q", o.Label)
			}
			labels[o.Label] = struct{}{}
			if o.Correct {
				correct++
			}
		}
		if correct != 1 {
			return malformed("choice question needs exactly one correct option, got %d", correct)
		}
	case KindOpenEnded:
		if strings.TrimSpace(q.ModelAnswer) == "" {
			return malformed("open-ended question has no model answer")
		}
	default:
		return malformed("unknown question kind %q", q.Kind)
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedQuestion, fmt.Sprintf(format, args...))
}

// maxPoints is the weight a question contributes to the submission maximum.
// Invalid weights contribute nothing.
func maxPoints(q Question) float64 {
	if math.IsNaN(q.Points) || math.IsInf(q.Points, 0) || q.Points <= 0 {
		return 0
	}
	return q.Points
}
