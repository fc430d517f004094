package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	authmw "github.com/mind-engage/quizgrade/internal/auth/middleware"
	"github.com/mind-engage/quizgrade/internal/rbac"
	"github.com/mind-engage/quizgrade/internal/service"
)

func callerFrom(r *http.Request) service.Caller {
	return service.Caller{
		Subject: authmw.SubjectFromContext(r.Context()),
		Role:    rbac.RoleFromContext(r.Context()),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes. Bodies stay plain text.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, service.ErrUnauthorized):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, service.ErrGradingInProgress),
		errors.Is(err, service.ErrAlreadyGraded),
		errors.Is(err, service.ErrNotPending):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrNotGraded):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
		http.Error(w, "request cancelled", 499)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "grading timed out", http.StatusGatewayTimeout)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
