package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	authmw "github.com/mind-engage/quizgrade/internal/auth/middleware"
	"github.com/mind-engage/quizgrade/internal/metrics"
	"github.com/mind-engage/quizgrade/internal/rbac"
	"github.com/mind-engage/quizgrade/internal/service"
)

type Deps struct {
	Service *service.GradingService
	Auth    *authmw.AuthService
	Login   authmw.LoginConfig
	Metrics *metrics.Metrics // optional
	DB      *sql.DB          // optional, pinged by /readyz

	CORSOrigins    []string
	RequestTimeout time.Duration
	// RequestLogging enables chi's access log. Off in tests.
	RequestLogging bool
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if d.RequestLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.PingContext(ctx); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.Login))

	// Protected API (JWT → subject/role in context → RBAC; ownership is
	// checked by the service)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))
		pr.Use(middleware.Timeout(d.RequestTimeout))

		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", CreateQuizHandler(d.Service))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", GetQuizHandler(d.Service))
		pr.With(rbac.Require("review:view")).
			Get("/quizzes/{quizID}/review", ReviewQueueHandler(d.Service))

		pr.With(rbac.Require("submission:create")).
			Post("/submissions", CreateSubmissionHandler(d.Service))
		pr.With(rbac.Require("submission:save")).
			Put("/submissions/{submissionID}/answers", SaveAnswersHandler(d.Service))
		pr.With(rbac.Require("submission:grade")).
			Post("/submissions/{submissionID}/grade", GradeSubmissionHandler(d.Service))
		pr.With(rbac.Require("submission:regrade")).
			Post("/submissions/{submissionID}/regrade", RegradeSubmissionHandler(d.Service))
		pr.With(rbac.Require("submission:view")).
			Get("/submissions/{submissionID}/result", GetResultHandler(d.Service))
	})
	return r
}
