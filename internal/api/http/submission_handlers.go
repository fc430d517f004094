package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/quizgrade/internal/grading"
	"github.com/mind-engage/quizgrade/internal/quiz"
	"github.com/mind-engage/quizgrade/internal/service"
)

// POST /submissions  {"quiz_id": "..."}
func CreateSubmissionHandler(svc *service.GradingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuizID string `json:"quiz_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.QuizID) == "" {
			http.Error(w, "quiz_id required", http.StatusBadRequest)
			return
		}
		sub, err := svc.StartSubmission(r.Context(), callerFrom(r), req.QuizID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

// PUT /submissions/{submissionID}/answers
// Accepts {"answers":[{"question_id":"q1","content":"B"}]}; a later answer
// for the same question replaces the earlier one.
func SaveAnswersHandler(svc *service.GradingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "submissionID"))
		var req struct {
			Answers []quiz.Answer `json:"answers"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := svc.SaveAnswers(r.Context(), callerFrom(r), id, req.Answers); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /submissions/{submissionID}/grade
func GradeSubmissionHandler(svc *service.GradingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "submissionID"))
		res, err := svc.GradeSubmission(r.Context(), callerFrom(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /submissions/{submissionID}/regrade
func RegradeSubmissionHandler(svc *service.GradingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "submissionID"))
		res, err := svc.Regrade(r.Context(), callerFrom(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type resultResp struct {
	Submission quiz.Submission          `json:"submission"`
	Result     grading.SubmissionResult `json:"result"`
}

// GET /submissions/{submissionID}/result
func GetResultHandler(svc *service.GradingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "submissionID"))
		sub, res, err := svc.GetResult(r.Context(), callerFrom(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resultResp{Submission: sub, Result: res})
	}
}
