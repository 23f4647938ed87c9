package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	assistRequestsTotal  *prometheus.CounterVec
	assistDuration       *prometheus.HistogramVec
	assistNoResultsTotal *prometheus.CounterVec
	assistRetries        *prometheus.HistogramVec
	assistRelevanceScore *prometheus.HistogramVec
	assistFallbacksTotal *prometheus.CounterVec
	assistMergeTotal     *prometheus.CounterVec
	assistStreamChunks   *prometheus.HistogramVec
	assistFeedbackTotal  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asearch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "asearch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "asearch",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	assistRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asearch",
			Subsystem: "assist",
			Name:      "requests_total",
			Help:      "Total completed assist requests by outcome.",
		},
		[]string{"service", "endpoint", "outcome"},
	)
	assistDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "asearch",
			Subsystem: "assist",
			Name:      "duration_seconds",
			Help:      "End-to-end assist request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	assistNoResultsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asearch",
			Subsystem: "assist",
			Name:      "no_results_total",
			Help:      "Total assist requests that ended without citations.",
		},
		[]string{"service", "endpoint"},
	)
	assistRetries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "asearch",
			Subsystem: "assist",
			Name:      "search_retries",
			Help:      "Distribution of search retries per assist request.",
			Buckets:   []float64{0, 1, 2, 3, 4},
		},
		[]string{"service", "endpoint"},
	)
	assistRelevanceScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "asearch",
			Subsystem: "assist",
			Name:      "relevance_max_score",
			Help:      "Distribution of the best relevance score per assist request.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "endpoint"},
	)
	assistFallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asearch",
			Subsystem: "assist",
			Name:      "fallbacks_total",
			Help:      "Total degraded assist responses by fallback reason.",
		},
		[]string{"service", "reason"},
	)
	assistMergeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asearch",
			Subsystem: "assist",
			Name:      "merge_decisions_total",
			Help:      "Total multi-agent merge decisions by strategy.",
		},
		[]string{"service", "strategy"},
	)
	assistStreamChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "asearch",
			Subsystem: "assist",
			Name:      "stream_chunks",
			Help:      "Distribution of streamed answer chunks per request.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		},
		[]string{"service"},
	)
	assistFeedbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asearch",
			Subsystem: "assist",
			Name:      "feedback_total",
			Help:      "Total feedback submissions by rating.",
		},
		[]string{"service", "rating"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		assistRequestsTotal,
		assistDuration,
		assistNoResultsTotal,
		assistRetries,
		assistRelevanceScore,
		assistFallbacksTotal,
		assistMergeTotal,
		assistStreamChunks,
		assistFeedbackTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		assistRequestsTotal:  assistRequestsTotal,
		assistDuration:       assistDuration,
		assistNoResultsTotal: assistNoResultsTotal,
		assistRetries:        assistRetries,
		assistRelevanceScore: assistRelevanceScore,
		assistFallbacksTotal: assistFallbacksTotal,
		assistMergeTotal:     assistMergeTotal,
		assistStreamChunks:   assistStreamChunks,
		assistFeedbackTotal:  assistFeedbackTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/models/"):
		return "/api/v1/models/{name}"
	default:
		return path
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
