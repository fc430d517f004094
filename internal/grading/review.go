package grading

// ReviewPolicy decides whether an outcome must be checked by a person.
// The decision is advisory and never changes the score.
type ReviewPolicy interface {
	NeedsReview(o Outcome) bool
}

// ReviewFunc adapts a function to the ReviewPolicy interface.
type ReviewFunc func(o Outcome) bool

func (f ReviewFunc) NeedsReview(o Outcome) bool { return f(o) }

// DefaultReviewPolicy flags low confidence, fallback scoring, clamped oracle
// scores and malformed questions.
type DefaultReviewPolicy struct{}

func (DefaultReviewPolicy) NeedsReview(o Outcome) bool {
	switch {
	case o.Confidence == ConfidenceLow:
		return true
	case o.FallbackUsed, o.Clamped:
		return true
	case o.Failure != FailureNone:
		return true
	}
	return false
}
