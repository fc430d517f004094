package quiz

import (
	"context"
	"errors"

	"github.com/mind-engage/quizgrade/internal/grading"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNotPending        = errors.New("submission is no longer accepting answers")
	ErrGradingInProgress = errors.New("submission is already being graded")
	ErrAlreadyGraded     = errors.New("submission is already graded")
	ErrNotGrading        = errors.New("submission is not being graded")
	ErrNotGraded         = errors.New("submission has not been graded")
)

type Store interface {
	PutQuiz(ctx context.Context, q Quiz) error
	GetQuiz(ctx context.Context, id string) (Quiz, error) // full quiz, including answer keys

	CreateSubmission(ctx context.Context, quizID, studentID string) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	// SaveAnswers upserts answers by question id while the submission is pending.
	SaveAnswers(ctx context.Context, submissionID string, answers []Answer) (Submission, error)
	ListAnswers(ctx context.Context, submissionID string) ([]Answer, error)

	// BeginGrading atomically moves a submission into grading and returns the
	// status it had. Graded submissions are only claimed when regrade is set.
	BeginGrading(ctx context.Context, submissionID string, regrade bool) (Status, error)
	// AbortGrading releases a claim without writing a result.
	AbortGrading(ctx context.Context, submissionID string, prev Status) error
	// CompleteGrading stores the result and marks the submission graded.
	CompleteGrading(ctx context.Context, submissionID string, res grading.SubmissionResult) (Submission, error)

	GetResult(ctx context.Context, submissionID string) (grading.SubmissionResult, error)
	ListNeedingReview(ctx context.Context, quizID string) ([]Submission, error)
}

// canBegin is the Pending->Grading / Graded->Grading transition guard.
func canBegin(cur Status, regrade bool) error {
	switch cur {
	case StatusPending:
		return nil
	case StatusGrading:
		return ErrGradingInProgress
	case StatusGraded:
		if regrade {
			return nil
		}
		return ErrAlreadyGraded
	default:
		return errors.New("unknown submission status " + string(cur))
	}
}
