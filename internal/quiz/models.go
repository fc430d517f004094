package quiz

import (
	"fmt"

	"github.com/mind-engage/quizgrade/internal/grading"
)

type Option struct {
	Label   string `json:"label"`
	Text    string `json:"text,omitempty"`
	Correct bool   `json:"correct,omitempty"`
}

type Question struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"` // choice | open_ended
	Prompt string  `json:"prompt"`
	Points float64 `json:"points"`

	Options []Option `json:"options,omitempty"`

	ModelAnswer string `json:"model_answer,omitempty"`
	Rubric      string `json:"rubric,omitempty"`
}

type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	AuthorID  string     `json:"author_id"`
	Questions []Question `json:"questions"`
	CreatedAt int64      `json:"created_at,omitempty"`
}

// Status is the scoring status of a submission: pending -> grading -> graded.
type Status string

const (
	StatusPending Status = "pending"
	StatusGrading Status = "grading"
	StatusGraded  Status = "graded"
)

type Submission struct {
	ID          string  `json:"id"`
	QuizID      string  `json:"quiz_id"`
	StudentID   string  `json:"student_id"`
	Status      Status  `json:"status"`
	Score       float64 `json:"score"`
	MaxScore    float64 `json:"max_score"`
	NeedsReview bool    `json:"needs_review"`
	CreatedAt   int64   `json:"created_at"`
	GradedAt    int64   `json:"graded_at,omitempty"`
}

type Answer struct {
	QuestionID string `json:"question_id"`
	Content    string `json:"content"`
}

// ForGrading converts a stored question into the grading view.
func (q Question) ForGrading() grading.Question {
	opts := make([]grading.Option, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, grading.Option{Label: o.Label, Text: o.Text, Correct: o.Correct})
	}
	return grading.Question{
		ID:          q.ID,
		Kind:        grading.Kind(q.Kind),
		Prompt:      q.Prompt,
		Points:      q.Points,
		Options:     opts,
		ModelAnswer: q.ModelAnswer,
		Rubric:      q.Rubric,
	}
}

func (qz Quiz) GradingQuestions() []grading.Question {
	out := make([]grading.Question, 0, len(qz.Questions))
	for _, q := range qz.Questions {
		out = append(out, q.ForGrading())
	}
	return out
}

// StudentView hides answer keys, model answers and rubrics.
func (qz Quiz) StudentView() Quiz {
	out := qz
	out.Questions = make([]Question, len(qz.Questions))
	for i, q := range qz.Questions {
		q.ModelAnswer = ""
		q.Rubric = ""
		opts := make([]Option, len(q.Options))
		for j, o := range q.Options {
			opts[j] = Option{Label: o.Label, Text: o.Text}
		}
		q.Options = opts
		out.Questions[i] = q
	}
	return out
}

// Problems lists question invariant violations. They do not block storing
// a quiz; affected questions are graded as malformed.
func (qz Quiz) Problems() []string {
	var out []string
	seen := make(map[string]struct{}, len(qz.Questions))
	for i, q := range qz.Questions {
		if err := grading.Validate(q.ForGrading()); err != nil {
			out = append(out, fmt.Sprintf("question %d (%s): %v", i+1, q.ID, err))
		}
		if _, dup := seen[q.ID]; dup && q.ID != "" {
			out = append(out, fmt.Sprintf("question %d (%s): duplicate id", i+1, q.ID))
		}
		seen[q.ID] = struct{}{}
	}
	return out
}

// GradingAnswers converts stored answers into the grading view.
func GradingAnswers(in []Answer) []grading.Answer {
	out := make([]grading.Answer, 0, len(in))
	for _, a := range in {
		out = append(out, grading.Answer{QuestionID: a.QuestionID, Content: a.Content})
	}
	return out
}
