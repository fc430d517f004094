package quiz

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quizgrade/internal/grading"
)

type memoryStore struct {
	mu          sync.RWMutex
	quizzes     map[string]Quiz
	submissions map[string]Submission
	answers     map[string]map[string]Answer // submission id -> question id -> answer
	results     map[string]grading.SubmissionResult
}

func NewInMemoryStore() Store {
	return &memoryStore{
		quizzes:     map[string]Quiz{},
		submissions: map[string]Submission{},
		answers:     map[string]map[string]Answer{},
		results:     map[string]grading.SubmissionResult{},
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, q Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	m.quizzes[q.ID] = cloneQuiz(q)
	return nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return cloneQuiz(q), nil
}

// cloneQuiz copies questions and their options so callers never share the
// stored answer key.
func cloneQuiz(q Quiz) Quiz {
	if q.Questions == nil {
		return q
	}
	qs := make([]Question, len(q.Questions))
	for i, qq := range q.Questions {
		if qq.Options != nil {
			qq.Options = append([]Option(nil), qq.Options...)
		}
		qs[i] = qq
	}
	q.Questions = qs
	return q
}

func (m *memoryStore) CreateSubmission(_ context.Context, quizID, studentID string) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[quizID]; !ok {
		return Submission{}, ErrNotFound
	}
	s := Submission{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		StudentID: studentID,
		Status:    StatusPending,
		CreatedAt: time.Now().Unix(),
	}
	m.submissions[s.ID] = s
	m.answers[s.ID] = map[string]Answer{}
	return s, nil
}

func (m *memoryStore) GetSubmission(_ context.Context, id string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) SaveAnswers(_ context.Context, submissionID string, answers []Answer) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[submissionID]
	if !ok {
		return Submission{}, ErrNotFound
	}
	if s.Status != StatusPending {
		return Submission{}, ErrNotPending
	}
	for _, a := range answers {
		m.answers[submissionID][a.QuestionID] = a
	}
	return s, nil
}

func (m *memoryStore) ListAnswers(_ context.Context, submissionID string) ([]Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byQ, ok := m.answers[submissionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Answer, 0, len(byQ))
	for _, a := range byQ {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (m *memoryStore) BeginGrading(_ context.Context, submissionID string, regrade bool) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[submissionID]
	if !ok {
		return "", ErrNotFound
	}
	if err := canBegin(s.Status, regrade); err != nil {
		return "", err
	}
	prev := s.Status
	s.Status = StatusGrading
	m.submissions[submissionID] = s
	return prev, nil
}

func (m *memoryStore) AbortGrading(_ context.Context, submissionID string, prev Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[submissionID]
	if !ok {
		return ErrNotFound
	}
	if s.Status != StatusGrading {
		return ErrNotGrading
	}
	s.Status = prev
	m.submissions[submissionID] = s
	return nil
}

func (m *memoryStore) CompleteGrading(_ context.Context, submissionID string, res grading.SubmissionResult) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[submissionID]
	if !ok {
		return Submission{}, ErrNotFound
	}
	if s.Status != StatusGrading {
		return Submission{}, ErrNotGrading
	}
	s.Status = StatusGraded
	s.Score = res.TotalScore
	s.MaxScore = res.MaxScore
	s.NeedsReview = res.NeedsReview
	s.GradedAt = time.Now().Unix()
	m.submissions[submissionID] = s
	res.Outcomes = append([]grading.Outcome(nil), res.Outcomes...)
	m.results[submissionID] = res
	return s, nil
}

func (m *memoryStore) GetResult(_ context.Context, submissionID string) (grading.SubmissionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.submissions[submissionID]; !ok {
		return grading.SubmissionResult{}, ErrNotFound
	}
	res, ok := m.results[submissionID]
	if !ok {
		return grading.SubmissionResult{}, ErrNotGraded
	}
	res.Outcomes = append([]grading.Outcome(nil), res.Outcomes...)
	return res, nil
}

func (m *memoryStore) ListNeedingReview(_ context.Context, quizID string) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Submission
	for _, s := range m.submissions {
		if s.QuizID == quizID && s.Status == StatusGraded && s.NeedsReview {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GradedAt != out[j].GradedAt {
			return out[i].GradedAt < out[j].GradedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
