package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	StageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluation_stage_failures_total",
			Help: "Total number of evaluation stage failures by stage and kind",
		},
		[]string{"stage", "kind"},
	)
	TurnsEvaluatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_turns_evaluated_total",
			Help: "Total number of evaluated interview turns by intent",
		},
		[]string{"intent"},
	)
	FollowupFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "followup_template_fallback_total",
			Help: "Total number of follow-ups served from the template pool instead of generation",
		},
	)
	HiringDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hiring_decisions_total",
			Help: "Distribution of final hiring recommendations",
		},
		[]string{"decision"},
	)
	SessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_sessions_started_total",
			Help: "Total number of interview sessions started",
		},
	)
	SessionsFinishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_sessions_finished_total",
			Help: "Total number of interview sessions finished",
		},
	)

	// Weighted final score distribution (0-100 scale).
	WeightedScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "report_weighted_score",
			Help:    "Distribution of weighted final scores",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(StageFailuresTotal)
	prometheus.MustRegister(TurnsEvaluatedTotal)
	prometheus.MustRegister(FollowupFallbackTotal)
	prometheus.MustRegister(HiringDecisionsTotal)
	prometheus.MustRegister(SessionsStartedTotal)
	prometheus.MustRegister(SessionsFinishedTotal)
	prometheus.MustRegister(WeightedScoreHistogram)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// ObserveReport records the outcome of a finished session.
func ObserveReport(weighted float64, decision string) {
	if weighted >= 0 && weighted <= 100 {
		WeightedScoreHistogram.Observe(weighted)
	}
	HiringDecisionsTotal.WithLabelValues(decision).Inc()
}
