package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	opportunitiesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opportunities_created_total",
			Help: "Total number of opportunities created",
		},
		[]string{"source"},
	)

	stageMoves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opportunity_stage_moves_total",
			Help: "Total number of opportunity stage changes",
		},
		[]string{"from", "to"},
	)

	validationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opportunity_validation_failures_total",
			Help: "Total number of rejected form fields",
		},
		[]string{"field"},
	)
)

// Metrics records request counts and latencies labelled by route pattern, so
// that ids in the path do not create new series.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordCreated counts new opportunities by where they came from ("api" or "import").
func RecordCreated(source string, n int) {
	opportunitiesCreated.WithLabelValues(source).Add(float64(n))
}

func RecordStageMove(from, to string) {
	stageMoves.WithLabelValues(from, to).Inc()
}

func RecordValidationFailure(fields ...string) {
	for _, f := range fields {
		validationFailures.WithLabelValues(f).Inc()
	}
}
