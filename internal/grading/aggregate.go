package grading

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// Aggregator grades every question of a submission and totals the result.
type Aggregator struct {
	grader      Grader
	policy      ReviewPolicy
	concurrency int
}

type AggregatorOption func(*Aggregator)

// WithConcurrency bounds how many questions are graded at once.
func WithConcurrency(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithReviewPolicy(p ReviewPolicy) AggregatorOption {
	return func(a *Aggregator) {
		if p != nil {
			a.policy = p
		}
	}
}

func NewAggregator(g Grader, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{grader: g, policy: DefaultReviewPolicy{}, concurrency: DefaultConcurrency}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Aggregate grades questions in quiz order. Questions are graded
// concurrently, but outcomes are always assembled in the order of questions.
// When answers repeat a question id, the last one wins. A failure on one
// question degrades only that question's outcome.
func (a *Aggregator) Aggregate(ctx context.Context, questions []Question, answers []Answer) SubmissionResult {
	byID := make(map[string]Answer, len(answers))
	for _, ans := range answers {
		byID[ans.QuestionID] = ans
	}

	outcomes := make([]Outcome, len(questions))
	seen := make(map[string]struct{}, len(questions))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, q := range questions {
		if _, dup := seen[q.ID]; dup && q.ID != "" {
			outcomes[i] = malformedOutcome(q, malformed("duplicate question id %q", q.ID))
			continue
		}
		seen[q.ID] = struct{}{}
		ans := byID[q.ID]
		g.Go(func() error {
			outcomes[i] = a.grader.Grade(ctx, q, ans)
			return nil
		})
	}
	_ = g.Wait()

	res := SubmissionResult{Outcomes: outcomes}
	for i := range outcomes {
		outcomes[i].NeedsReview = a.policy.NeedsReview(outcomes[i])
		res.TotalScore += outcomes[i].Score
		res.MaxScore += outcomes[i].MaxScore
		res.NeedsReview = res.NeedsReview || outcomes[i].NeedsReview
	}
	return res
}
