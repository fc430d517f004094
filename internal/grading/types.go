package grading

// Kind is the question type. Each kind is served by one Strategy.
type Kind string

const (
	KindChoice    Kind = "choice"
	KindOpenEnded Kind = "open_ended"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Failure records which degraded path produced an outcome. The zero value
// means the question was graded normally.
type Failure string

const (
	FailureNone              Failure = ""
	FailureOracleUnavailable Failure = "oracle_unavailable"
	FailureOracleMalformed   Failure = "oracle_malformed"
	FailureMalformedQuestion Failure = "malformed_question"
	FailureScoreOutOfRange   Failure = "score_out_of_range"
)

// Option is one labeled choice of a choice question.
type Option struct {
	Label   string `json:"label"`
	Text    string `json:"text,omitempty"`
	Correct bool   `json:"correct,omitempty"`
}

// Question is a minimal view of a quiz question needed for grading.
// Keep this in sync with quiz.Question.
type Question struct {
	ID     string
	Kind   Kind
	Prompt string
	Points float64

	Options []Option // choice

	ModelAnswer string // open_ended
	Rubric      string // open_ended, optional
}

// Answer is the submitted content for one question: the selected option
// label or free text. Empty content means no answer.
type Answer struct {
	QuestionID string `json:"question_id"`
	Content    string `json:"content"`
}

// Outcome is the result of grading a single question.
// NeedsReview is derived by a ReviewPolicy during aggregation.
type Outcome struct {
	QuestionID  string     `json:"question_id"`
	Score       float64    `json:"score"`
	MaxScore    float64    `json:"max_score"`
	Confidence  Confidence `json:"confidence"`
	Explanation string     `json:"explanation"`
	NeedsReview bool       `json:"needs_review"`

	Failure      Failure  `json:"failure,omitempty"`
	FallbackUsed bool     `json:"fallback_used,omitempty"`
	Clamped      bool     `json:"clamped,omitempty"`
	RawScore     *float64 `json:"raw_score,omitempty"` // oracle score before clamping
}

// SubmissionResult aggregates the outcomes of one submission, ordered by
// the quiz's question order.
type SubmissionResult struct {
	Outcomes    []Outcome `json:"outcomes"`
	TotalScore  float64   `json:"total_score"`
	MaxScore    float64   `json:"max_score"`
	NeedsReview bool      `json:"needs_review"`
}
