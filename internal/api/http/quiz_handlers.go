package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/quizgrade/internal/quiz"
	"github.com/mind-engage/quizgrade/internal/service"
)

type createQuizResp struct {
	Quiz     quiz.Quiz `json:"quiz"`
	Warnings []string  `json:"warnings,omitempty"`
}

// POST /quizzes
func CreateQuizHandler(svc *service.GradingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q quiz.Quiz
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&q); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		stored, warnings, err := svc.CreateQuiz(r.Context(), callerFrom(r), q)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createQuizResp{Quiz: stored, Warnings: warnings})
	}
}

// GET /quizzes/{quizID}
func GetQuizHandler(svc *service.GradingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "quizID"))
		q, err := svc.GetQuiz(r.Context(), callerFrom(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /quizzes/{quizID}/review
func ReviewQueueHandler(svc *service.GradingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "quizID"))
		subs, err := svc.ReviewQueue(r.Context(), callerFrom(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if subs == nil {
			subs = []quiz.Submission{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": subs})
	}
}
