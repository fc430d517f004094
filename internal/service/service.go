package service

import (
	"errors"
	"time"

	"github.com/mind-engage/quizgrade/internal/events"
	"github.com/mind-engage/quizgrade/internal/grading"
	"github.com/mind-engage/quizgrade/internal/logger"
	"github.com/mind-engage/quizgrade/internal/metrics"
	"github.com/mind-engage/quizgrade/internal/quiz"
	"github.com/mind-engage/quizgrade/internal/rbac"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrGradingInProgress = errors.New("grading already in progress")
	ErrAlreadyGraded     = errors.New("submission already graded; use regrade")
	ErrNotPending        = errors.New("submission is no longer accepting answers")
	ErrNotGraded         = errors.New("submission not graded yet")
	ErrInvalid           = errors.New("invalid input")
)

// Caller is the authenticated principal a request acts for.
type Caller struct {
	Subject string
	Role    string
}

// PermAny lets a role act on any quiz or submission regardless of ownership.
const PermAny = "submission:any"

type GradingService struct {
	store   quiz.Store
	agg     *grading.Aggregator
	checker *rbac.Checker
	locker  Locker
	events  events.Publisher
	metrics *metrics.Metrics
	log     *logger.Logger
	lockTTL time.Duration
}

type Option func(*GradingService)

func WithLocker(l Locker) Option            { return func(s *GradingService) { s.locker = l } }
func WithEvents(p events.Publisher) Option  { return func(s *GradingService) { s.events = p } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *GradingService) { s.metrics = m } }
func WithLogger(l *logger.Logger) Option    { return func(s *GradingService) { s.log = l } }
func WithChecker(c *rbac.Checker) Option    { return func(s *GradingService) { s.checker = c } }

// WithLockTTL bounds how long a distributed grading lock is held if the
// holder dies without releasing it.
func WithLockTTL(d time.Duration) Option {
	return func(s *GradingService) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

func New(store quiz.Store, agg *grading.Aggregator, opts ...Option) *GradingService {
	s := &GradingService{
		store:   store,
		agg:     agg,
		checker: rbac.NewChecker(nil),
		locker:  NewLocalLocker(),
		log:     logger.Nop(),
		lockTTL: 5 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *GradingService) privileged(c Caller) bool {
	return c.Role != "" && s.checker.Has(c.Role, PermAny)
}

// canAccess reports whether c may grade or read the submission: its owner,
// the quiz author, or a privileged role.
func (s *GradingService) canAccess(c Caller, sub quiz.Submission, qz quiz.Quiz) bool {
	if c.Subject == "" {
		return false
	}
	return c.Subject == sub.StudentID || c.Subject == qz.AuthorID || s.privileged(c)
}

// mapStoreErr translates store sentinels into service sentinels.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, quiz.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, quiz.ErrGradingInProgress):
		return ErrGradingInProgress
	case errors.Is(err, quiz.ErrAlreadyGraded):
		return ErrAlreadyGraded
	case errors.Is(err, quiz.ErrNotPending):
		return ErrNotPending
	case errors.Is(err, quiz.ErrNotGraded):
		return ErrNotGraded
	default:
		return err
	}
}
