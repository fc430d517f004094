package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mind-engage/quizgrade/internal/events"
	"github.com/mind-engage/quizgrade/internal/grading"
	"github.com/mind-engage/quizgrade/internal/quiz"
)

// GradeSubmission grades a pending submission and persists the result.
// A submission that is already graded yields ErrAlreadyGraded.
func (s *GradingService) GradeSubmission(ctx context.Context, c Caller, submissionID string) (grading.SubmissionResult, error) {
	return s.grade(ctx, c, submissionID, false)
}

// Regrade recomputes and overwrites the result of a submission, graded or not.
func (s *GradingService) Regrade(ctx context.Context, c Caller, submissionID string) (grading.SubmissionResult, error) {
	return s.grade(ctx, c, submissionID, true)
}

func (s *GradingService) grade(ctx context.Context, c Caller, submissionID string, regrade bool) (grading.SubmissionResult, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return grading.SubmissionResult{}, mapStoreErr(err)
	}
	qz, err := s.store.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return grading.SubmissionResult{}, mapStoreErr(err)
	}
	if !s.canAccess(c, sub, qz) {
		return grading.SubmissionResult{}, ErrUnauthorized
	}

	unlock, err := s.locker.TryLock(ctx, "grading:"+submissionID, s.lockTTL)
	if errors.Is(err, ErrLocked) {
		return grading.SubmissionResult{}, ErrGradingInProgress
	}
	if err != nil {
		return grading.SubmissionResult{}, fmt.Errorf("acquire grading lock: %w", err)
	}
	defer unlock()

	prev, err := s.store.BeginGrading(ctx, submissionID, regrade)
	if err != nil {
		return grading.SubmissionResult{}, mapStoreErr(err)
	}

	answers, err := s.store.ListAnswers(ctx, submissionID)
	if err != nil {
		s.abort(ctx, submissionID, prev)
		return grading.SubmissionResult{}, mapStoreErr(err)
	}

	log := s.log.With("submission_id", submissionID, "quiz_id", qz.ID)
	for _, p := range qz.Problems() {
		log.Warn("malformed question", "problem", p)
	}

	start := time.Now()
	res := s.agg.Aggregate(ctx, qz.GradingQuestions(), quiz.GradingAnswers(answers))
	elapsed := time.Since(start)

	// outcomes computed under a cancelled context are fallbacks, not grades
	if err := ctx.Err(); err != nil {
		s.abort(ctx, submissionID, prev)
		return grading.SubmissionResult{}, err
	}

	graded, err := s.store.CompleteGrading(ctx, submissionID, res)
	if err != nil {
		s.abort(ctx, submissionID, prev)
		return grading.SubmissionResult{}, mapStoreErr(err)
	}

	for _, o := range res.Outcomes {
		if o.Failure != "" {
			log.Warn("question graded with failure",
				"question_id", o.QuestionID,
				"failure", string(o.Failure),
				"fallback", o.FallbackUsed,
				"score", o.Score)
		}
	}
	log.Info("submission graded",
		"total", res.TotalScore,
		"max", res.MaxScore,
		"needs_review", res.NeedsReview,
		"regrade", regrade,
		"took_ms", elapsed.Milliseconds())

	s.observe(res, elapsed)
	s.publish(ctx, graded, res, regrade)
	return res, nil
}

// abort releases the Grading claim even if ctx is already cancelled.
func (s *GradingService) abort(ctx context.Context, submissionID string, prev quiz.Status) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.AbortGrading(actx, submissionID, prev); err != nil {
		s.log.Error("release grading claim", "submission_id", submissionID, "err", err)
	}
}

func (s *GradingService) observe(res grading.SubmissionResult, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.SubmissionsGraded.WithLabelValues(strconv.FormatBool(res.NeedsReview)).Inc()
	s.metrics.GradingDuration.Observe(elapsed.Seconds())
	for _, o := range res.Outcomes {
		s.metrics.QuestionsGraded.WithLabelValues(string(o.Confidence)).Inc()
		if o.Failure != "" {
			s.metrics.OracleFailures.WithLabelValues(string(o.Failure)).Inc()
		}
	}
}

func (s *GradingService) publish(ctx context.Context, sub quiz.Submission, res grading.SubmissionResult, regrade bool) {
	if s.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	ev := events.SubmissionGraded{
		SubmissionID: sub.ID,
		QuizID:       sub.QuizID,
		StudentID:    sub.StudentID,
		TotalScore:   res.TotalScore,
		MaxScore:     res.MaxScore,
		NeedsReview:  res.NeedsReview,
		Regrade:      regrade,
		GradedAt:     sub.GradedAt,
	}
	if err := s.events.Publish(pctx, events.TypeSubmissionGraded, sub.ID, ev); err != nil {
		s.log.Warn("publish SubmissionGraded", "submission_id", sub.ID, "err", err)
	}
}
