package grading

import (
	"context"
	"fmt"
)

// choiceStrategy compares the selected label byte-for-byte with the
// correct option. It is deterministic, so confidence is always high.
type choiceStrategy struct{}

func (choiceStrategy) Grade(_ context.Context, q Question, a Answer) Outcome {
	res := Outcome{QuestionID: q.ID, MaxScore: q.Points, Confidence: ConfidenceHigh}

	var correct Option
	for _, o := range q.Options {
		if o.Correct {
			correct = o
			break
		}
	}

	switch {
	case a.Content == "":
		res.Explanation = "No answer provided. " + describeCorrect(correct)
	case a.Content == correct.Label:
		res.Score = q.Points
		res.Explanation = "Correct."
	default:
		res.Explanation = fmt.Sprintf("Incorrect: selected %q. %s", a.Content, describeCorrect(correct))
	}
	return res
}

func describeCorrect(o Option) string {
	if o.Text == "" {
		return fmt.Sprintf("The correct option is %s.", o.Label)
	}
	return fmt.Sprintf("The correct option is %s (%s).", o.Label, o.Text)
}
