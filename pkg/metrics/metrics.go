package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerMetrics holds HTTP-level counters and latency histograms.
type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

// NewServerMetrics registers and returns HTTP server metrics for a service.
func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordertracking",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"path", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ordertracking",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"path"})

	prometheus.MustRegister(requests, latency)

	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// PipelineMetrics holds message pipeline counters and the tracker gauge.
type PipelineMetrics struct {
	Published      *prometheus.CounterVec
	Processed      *prometheus.CounterVec
	TrackersActive prometheus.Gauge
}

// NewPipelineMetrics registers and returns pipeline metrics for a service.
func NewPipelineMetrics(service string) *PipelineMetrics {
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordertracking",
		Subsystem: service,
		Name:      "messages_published_total",
		Help:      "Total number of messages published to the broker.",
	}, []string{"queue"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordertracking",
		Subsystem: service,
		Name:      "messages_processed_total",
		Help:      "Total number of messages consumed and acknowledged.",
	}, []string{"queue", "outcome"})
	trackers := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ordertracking",
		Subsystem: service,
		Name:      "trackers_active",
		Help:      "Number of live tracking connections.",
	})

	prometheus.MustRegister(published, processed, trackers)

	return &PipelineMetrics{Published: published, Processed: processed, TrackersActive: trackers}
}

// Handler exposes the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency for every handled request.
func Middleware(m *ServerMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			m.Requests.WithLabelValues(r.URL.Path, strconv.Itoa(ww.Status())).Inc()
			m.LatencyMS.WithLabelValues(r.URL.Path).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}
