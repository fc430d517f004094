package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quizgrade/internal/grading"
	"github.com/mind-engage/quizgrade/internal/quiz"
)

// CreateQuiz stores a quiz authored by c. Questions that break the grading
// invariants are kept and reported as warnings; they grade as malformed.
func (s *GradingService) CreateQuiz(ctx context.Context, c Caller, q quiz.Quiz) (quiz.Quiz, []string, error) {
	if c.Subject == "" {
		return quiz.Quiz{}, nil, ErrUnauthorized
	}
	if strings.TrimSpace(q.Title) == "" || len(q.Questions) == 0 {
		return quiz.Quiz{}, nil, fmt.Errorf("%w: quiz needs a title and at least one question", ErrInvalid)
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	} else if existing, err := s.store.GetQuiz(ctx, q.ID); err == nil {
		if existing.AuthorID != c.Subject && !s.privileged(c) {
			return quiz.Quiz{}, nil, ErrUnauthorized
		}
	}
	q.AuthorID = c.Subject
	q.CreatedAt = time.Now().Unix()
	if err := s.store.PutQuiz(ctx, q); err != nil {
		return quiz.Quiz{}, nil, err
	}
	warnings := q.Problems()
	for _, w := range warnings {
		s.log.Warn("quiz stored with malformed question", "quiz_id", q.ID, "problem", w)
	}
	return q, warnings, nil
}

// GetQuiz returns the full quiz to its author and privileged roles, and the
// student view to everyone else.
func (s *GradingService) GetQuiz(ctx context.Context, c Caller, id string) (quiz.Quiz, error) {
	qz, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return quiz.Quiz{}, mapStoreErr(err)
	}
	if c.Subject != "" && (c.Subject == qz.AuthorID || s.privileged(c)) {
		return qz, nil
	}
	return qz.StudentView(), nil
}

func (s *GradingService) StartSubmission(ctx context.Context, c Caller, quizID string) (quiz.Submission, error) {
	if c.Subject == "" {
		return quiz.Submission{}, ErrUnauthorized
	}
	sub, err := s.store.CreateSubmission(ctx, quizID, c.Subject)
	return sub, mapStoreErr(err)
}

// SaveAnswers upserts answers while the submission is pending. Only the
// owner (or a privileged role) may write, and every answer must name a
// question of the quiz.
func (s *GradingService) SaveAnswers(ctx context.Context, c Caller, submissionID string, answers []quiz.Answer) error {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return mapStoreErr(err)
	}
	if c.Subject == "" || (c.Subject != sub.StudentID && !s.privileged(c)) {
		return ErrUnauthorized
	}
	qz, err := s.store.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return mapStoreErr(err)
	}
	known := make(map[string]struct{}, len(qz.Questions))
	for _, q := range qz.Questions {
		known[q.ID] = struct{}{}
	}
	for _, a := range answers {
		if _, ok := known[a.QuestionID]; !ok {
			return fmt.Errorf("%w: unknown question %q", ErrInvalid, a.QuestionID)
		}
	}
	_, err = s.store.SaveAnswers(ctx, submissionID, answers)
	return mapStoreErr(err)
}

func (s *GradingService) GetResult(ctx context.Context, c Caller, submissionID string) (quiz.Submission, grading.SubmissionResult, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return quiz.Submission{}, grading.SubmissionResult{}, mapStoreErr(err)
	}
	qz, err := s.store.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return quiz.Submission{}, grading.SubmissionResult{}, mapStoreErr(err)
	}
	if !s.canAccess(c, sub, qz) {
		return quiz.Submission{}, grading.SubmissionResult{}, ErrUnauthorized
	}
	res, err := s.store.GetResult(ctx, submissionID)
	if err != nil {
		return quiz.Submission{}, grading.SubmissionResult{}, mapStoreErr(err)
	}
	return sub, res, nil
}

// ReviewQueue lists graded submissions of a quiz flagged for manual review.
func (s *GradingService) ReviewQueue(ctx context.Context, c Caller, quizID string) ([]quiz.Submission, error) {
	qz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if c.Subject == "" || (c.Subject != qz.AuthorID && !s.privileged(c)) {
		return nil, ErrUnauthorized
	}
	subs, err := s.store.ListNeedingReview(ctx, quizID)
	return subs, mapStoreErr(err)
}
