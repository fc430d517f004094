package grading

import (
	"context"
	"time"
)

// DefaultFallbackFraction is the share of a question's points awarded when
// the oracle cannot grade an open-ended answer.
const DefaultFallbackFraction = 0.5

// Strategy grades a single question of one kind.
type Strategy interface {
	Grade(ctx context.Context, q Question, a Answer) Outcome
}

// Grader routes by question kind to the correct Strategy. Grade never
// fails; every failure mode is represented in the returned Outcome.
type Grader interface {
	Grade(ctx context.Context, q Question, a Answer) Outcome
}

type defaultGrader struct {
	strategies map[Kind]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Question, a Answer) Outcome {
	if err := Validate(q); err != nil {
		return malformedOutcome(q, err)
	}
	s, ok := g.strategies[q.Kind]
	if !ok {
		return malformedOutcome(q, malformed("no strategy for kind %q", q.Kind))
	}
	return s.Grade(ctx, q, a)
}

// Engine options

// GraderOption configures NewDefaultGrader.
type GraderOption func(*config)

type config struct {
	FallbackFraction float64       // share of points on oracle failure
	OracleTimeout    time.Duration // per oracle call, 0 = caller's deadline only
}

func WithFallbackFraction(f float64) GraderOption { return func(c *config) { c.FallbackFraction = f } }
func WithOracleTimeout(d time.Duration) GraderOption {
	return func(c *config) { c.OracleTimeout = d }
}

// NewDefaultGrader installs the built-in strategies. A nil oracle sends
// every answered open-ended question down the fallback path.
func NewDefaultGrader(oracle Oracle, opts ...GraderOption) Grader {
	cfg := &config{
		FallbackFraction: DefaultFallbackFraction,
		OracleTimeout:    30 * time.Second,
	}
	for _, o := range opts {
		o(cfg)
	}
	if !(cfg.FallbackFraction >= 0) {
		cfg.FallbackFraction = 0
	}
	if cfg.FallbackFraction > 1 {
		cfg.FallbackFraction = 1
	}
	return &defaultGrader{
		strategies: map[Kind]Strategy{
			KindChoice: choiceStrategy{},
			KindOpenEnded: openEndedStrategy{
				oracle:           oracle,
				fallbackFraction: cfg.FallbackFraction,
				timeout:          cfg.OracleTimeout,
			},
		},
	}
}

func malformedOutcome(q Question, err error) Outcome {
	return Outcome{
		QuestionID:  q.ID,
		Score:       0,
		MaxScore:    maxPoints(q),
		Confidence:  ConfidenceLow,
		Explanation: err.Error(),
		Failure:     FailureMalformedQuestion,
	}
}
