package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cuenca",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cuenca",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10, 60},
	}, []string{"method", "route"})

	// Analysis API metrics
	AnalysisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cuenca",
		Subsystem: "analysis",
		Name:      "requests_total",
		Help:      "Calls to the external analysis API by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cuenca",
		Subsystem: "analysis",
		Name:      "request_duration_seconds",
		Help:      "Latency of external analysis API calls",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"endpoint"})

	AnalysisCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cuenca",
		Subsystem: "analysis",
		Name:      "cache_total",
		Help:      "Analysis result cache lookups by result (hit, miss, error)",
	}, []string{"result"})

	// Sensor ingestion metrics
	SensorReadings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cuenca",
		Subsystem: "sensors",
		Name:      "readings_ingested_total",
		Help:      "Sensor readings accepted by device kind",
	}, []string{"kind"})

	SensorRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cuenca",
		Subsystem: "sensors",
		Name:      "readings_rejected_total",
		Help:      "Sensor ingest requests rejected by reason",
	}, []string{"reason"})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cuenca",
		Subsystem: "storage",
		Name:      "uploads_total",
		Help:      "Stored objects by kind (avatar, evidence)",
	}, []string{"kind"})
)

// Middleware records request count and latency keyed by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAnalysis records one external analysis call.
func ObserveAnalysis(endpoint string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AnalysisRequests.WithLabelValues(endpoint, outcome).Inc()
	AnalysisDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
