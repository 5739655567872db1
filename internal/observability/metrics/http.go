package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/manual-assistant/internal/core/retrieval"
)

const namespace = "manuals"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTerms    prometheus.Histogram
	retrievalKeyword  prometheus.Histogram
	retrievalSemantic prometheus.Histogram
	retrievalMerged   prometheus.Histogram
	contextChars      prometheus.Histogram
	contextTruncated  prometheus.Counter
	contextEmpty      prometheus.Counter
	chatTotal         *prometheus.CounterVec
	chatDuration      prometheus.Histogram
	breakerState      *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}
	countBuckets := []float64{0, 1, 2, 3, 5, 8, 13, 21, 34}

	m := &HTTPServerMetrics{
		registry: registry,
		service:  service,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		}),
		retrievalTerms: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "expanded_terms",
			Help:        "Expansion terms produced per query.",
			Buckets:     countBuckets,
			ConstLabels: constLabels,
		}),
		retrievalKeyword: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "keyword_hits",
			Help:        "Passages matched by keyword per query.",
			Buckets:     countBuckets,
			ConstLabels: constLabels,
		}),
		retrievalSemantic: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "semantic_hits",
			Help:        "Passages returned by semantic search per query.",
			Buckets:     countBuckets,
			ConstLabels: constLabels,
		}),
		retrievalMerged: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "merged_passages",
			Help:        "Distinct passages after merging per query.",
			Buckets:     countBuckets,
			ConstLabels: constLabels,
		}),
		contextChars: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "context_characters",
			Help:        "Characters in the packed context per query.",
			Buckets:     []float64{0, 250, 500, 1000, 2000, 3000, 4000, 6000, 8000},
			ConstLabels: constLabels,
		}),
		contextTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "context_truncated_total",
			Help:        "Queries whose context hit the length budget.",
			ConstLabels: constLabels,
		}),
		contextEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "empty_context_total",
			Help:        "Queries answered without any retrieved context.",
			ConstLabels: constLabels,
		}),
		chatTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"service", "outcome"}),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "chat",
			Name:        "duration_seconds",
			Help:        "End-to-end chat duration in seconds.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
			ConstLabels: constLabels,
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "circuit_open",
			Help:      "1 while the circuit breaker of an upstream operation is open.",
		}, []string{"service", "operation"}),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.retrievalTerms,
		m.retrievalKeyword,
		m.retrievalSemantic,
		m.retrievalMerged,
		m.contextChars,
		m.contextTruncated,
		m.contextEmpty,
		m.chatTotal,
		m.chatDuration,
		m.breakerState,
	)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(m.service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/manuals/"):
		return "/api/v1/manuals/{manual_id}"
	case path == "/api/v1/chat":
		return "/api/v1/chat/"
	case path == "/api/v1/health":
		return "/api/v1/health/"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) ObserveRetrieval(stats retrieval.Stats) {
	m.retrievalTerms.Observe(float64(stats.ExpandedTerms))
	m.retrievalKeyword.Observe(float64(stats.KeywordHits))
	m.retrievalSemantic.Observe(float64(stats.SemanticHits))
	m.retrievalMerged.Observe(float64(stats.Merged))
	m.contextChars.Observe(float64(stats.ContextChars))
	if stats.Truncated {
		m.contextTruncated.Inc()
	}
	if stats.Included == 0 {
		m.contextEmpty.Inc()
	}
}

func (m *HTTPServerMetrics) ObserveChat(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.chatTotal.WithLabelValues(m.service, outcome).Inc()
	m.chatDuration.Observe(duration.Seconds())
}

// ObserveBreaker matches resilience.StateListener.
func (m *HTTPServerMetrics) ObserveBreaker(operation string, _, to gobreaker.State) {
	open := 0.0
	if to == gobreaker.StateOpen {
		open = 1
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(open)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
