package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on its own Registry.
type Metrics struct {
	Registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	SubmissionsGraded *prometheus.CounterVec
	QuestionsGraded   *prometheus.CounterVec
	OracleFailures    *prometheus.CounterVec
	GradingDuration   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		SubmissionsGraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizgrade_submissions_graded_total",
				Help: "Submissions graded, by whether they were flagged for review",
			},
			[]string{"needs_review"},
		),
		QuestionsGraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizgrade_questions_graded_total",
				Help: "Per-question outcomes, by confidence",
			},
			[]string{"confidence"},
		),
		OracleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizgrade_grading_failures_total",
				Help: "Per-question grading failures, by failure kind",
			},
			[]string{"kind"},
		),
		GradingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quizgrade_grading_duration_seconds",
				Help:    "Wall time to grade one submission",
				Buckets: []float64{0.05, 0.25, 1, 5, 15, 60},
			},
		),
	}
	m.Registry.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.SubmissionsGraded,
		m.QuestionsGraded,
		m.OracleFailures,
		m.GradingDuration,
	)
	return m
}

// Middleware records request count and latency, labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			endpoint = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
