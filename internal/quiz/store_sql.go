package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quizgrade/internal/grading"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,title,author_id,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, author_id=EXCLUDED.author_id, questions_json=EXCLUDED.questions_json`,
		q.ID, q.Title, q.AuthorID, string(qj), q.CreatedAt)
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,author_id,questions_json,created_at FROM quizzes WHERE id=$1`, id)
	var q Quiz
	var qjson string
	if err := row.Scan(&q.ID, &q.Title, &q.AuthorID, &qjson, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return Quiz{}, fmt.Errorf("decode questions of quiz %s: %w", id, err)
	}
	return q, nil
}

func (s *SQLStore) CreateSubmission(ctx context.Context, quizID, studentID string) (Submission, error) {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, quizID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrNotFound
		}
		return Submission{}, err
	}
	sub := Submission{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		StudentID: studentID,
		Status:    StatusPending,
		CreatedAt: time.Now().Unix(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO submissions (id,quiz_id,student_id,status,score,max_score,needs_review,result_json,created_at)
		VALUES ($1,$2,$3,$4,0,0,0,'',$5)`,
		sub.ID, sub.QuizID, sub.StudentID, string(sub.Status), sub.CreatedAt)
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

const submissionCols = `id,quiz_id,student_id,status,score,max_score,needs_review,created_at,COALESCE(graded_at,0)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(r rowScanner) (Submission, error) {
	var sub Submission
	var status string
	var review int
	if err := r.Scan(&sub.ID, &sub.QuizID, &sub.StudentID, &status, &sub.Score, &sub.MaxScore, &review, &sub.CreatedAt, &sub.GradedAt); err != nil {
		return Submission{}, err
	}
	sub.Status = Status(status)
	sub.NeedsReview = review != 0
	return sub, nil
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM submissions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	return sub, err
}

func (s *SQLStore) SaveAnswers(ctx context.Context, submissionID string, answers []Answer) (Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Submission{}, err
	}
	defer tx.Rollback()

	sub, err := scanSubmission(tx.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM submissions WHERE id=$1`, submissionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrNotFound
		}
		return Submission{}, err
	}
	if sub.Status != StatusPending {
		return Submission{}, ErrNotPending
	}
	now := time.Now().Unix()
	for _, a := range answers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO answers (submission_id,question_id,content,updated_at)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (submission_id,question_id) DO UPDATE SET content=EXCLUDED.content, updated_at=EXCLUDED.updated_at`,
			submissionID, a.QuestionID, a.Content, now); err != nil {
			return Submission{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (s *SQLStore) ListAnswers(ctx context.Context, submissionID string) ([]Answer, error) {
	if _, err := s.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT question_id,content FROM answers WHERE submission_id=$1 ORDER BY question_id`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Answer{}
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.QuestionID, &a.Content); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) BeginGrading(ctx context.Context, submissionID string, regrade bool) (Status, error) {
	sub, err := s.GetSubmission(ctx, submissionID)
	if err != nil {
		return "", err
	}
	if err := canBegin(sub.Status, regrade); err != nil {
		return "", err
	}
	// compare-and-swap on the status read above
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET status=$1 WHERE id=$2 AND status=$3`,
		string(StatusGrading), submissionID, string(sub.Status))
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", err
	} else if n == 0 {
		return "", ErrGradingInProgress
	}
	return sub.Status, nil
}

func (s *SQLStore) AbortGrading(ctx context.Context, submissionID string, prev Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET status=$1 WHERE id=$2 AND status=$3`,
		string(prev), submissionID, string(StatusGrading))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotGrading
	}
	return nil
}

func (s *SQLStore) CompleteGrading(ctx context.Context, submissionID string, res grading.SubmissionResult) (Submission, error) {
	buf, err := json.Marshal(res)
	if err != nil {
		return Submission{}, err
	}
	r, err := s.db.ExecContext(ctx, `UPDATE submissions
		SET status=$1, score=$2, max_score=$3, needs_review=$4, result_json=$5, graded_at=$6
		WHERE id=$7 AND status=$8`,
		string(StatusGraded), res.TotalScore, res.MaxScore, boolToInt(res.NeedsReview), string(buf), time.Now().Unix(),
		submissionID, string(StatusGrading))
	if err != nil {
		return Submission{}, err
	}
	if n, _ := r.RowsAffected(); n == 0 {
		if _, err := s.GetSubmission(ctx, submissionID); err != nil {
			return Submission{}, err
		}
		return Submission{}, ErrNotGrading
	}
	return s.GetSubmission(ctx, submissionID)
}

func (s *SQLStore) GetResult(ctx context.Context, submissionID string) (grading.SubmissionResult, error) {
	var rjson string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM submissions WHERE id=$1`, submissionID).Scan(&rjson)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return grading.SubmissionResult{}, ErrNotFound
		}
		return grading.SubmissionResult{}, err
	}
	if rjson == "" {
		return grading.SubmissionResult{}, ErrNotGraded
	}
	var res grading.SubmissionResult
	if err := json.Unmarshal([]byte(rjson), &res); err != nil {
		return grading.SubmissionResult{}, fmt.Errorf("decode result of submission %s: %w", submissionID, err)
	}
	return res, nil
}

func (s *SQLStore) ListNeedingReview(ctx context.Context, quizID string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+submissionCols+` FROM submissions
		WHERE quiz_id=$1 AND status=$2 AND needs_review=1
		ORDER BY graded_at, id`, quizID, string(StatusGraded))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
