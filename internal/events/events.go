package events

import (
	"context"
	"encoding/json"
	"errors"

	syncx "github.com/mind-engage/quizgrade/internal/sync"
)

const TypeSubmissionGraded = "SubmissionGraded"

// SubmissionGraded is emitted once per persisted grading run.
type SubmissionGraded struct {
	SubmissionID string  `json:"submission_id"`
	QuizID       string  `json:"quiz_id"`
	StudentID    string  `json:"student_id"`
	TotalScore   float64 `json:"total_score"`
	MaxScore     float64 `json:"max_score"`
	NeedsReview  bool    `json:"needs_review"`
	Regrade      bool    `json:"regrade"`
	GradedAt     int64   `json:"graded_at"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

// LogPublisher writes events to the local event_log table.
type LogPublisher struct{ Repo *syncx.EventRepo }

func (p LogPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Repo.Append(ctx, syncx.Event{Type: eventType, Key: key, DataJSON: string(b)})
}

// Fanout publishes to every sink and joins their errors. Nil sinks are skipped.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, eventType, key string, payload any) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, eventType, key, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
