// Package metrics exposes crawl counters to prometheus. A Metrics value
// satisfies twitter.Recorder, pipeline.Recorder and storage.DocumentRecorder.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tweetgraph/pkg/logger"
)

const namespace = "tweetgraph"

// Metrics holds every collector of one crawl process
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	waits           *prometheus.CounterVec
	waitSeconds     *prometheus.CounterVec
	remaining       *prometheus.GaugeVec
	documents       *prometheus.CounterVec
	phaseDuration   *prometheus.GaugeVec
	progress        *prometheus.GaugeVec
	itemErrors      *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by endpoint class and status code",
		}, []string{"class", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class"}),
		waits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "waits_total",
			Help:      "Limiter sleeps by endpoint class and reason",
		}, []string{"class", "reason"}),
		waitSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "wait_seconds_total",
			Help:      "Time spent sleeping for rate limits",
		}, []string{"class"}),
		remaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "remaining",
			Help:      "Remaining call budget reported by the API",
		}, []string{"class"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "documents_written_total",
			Help:      "Documents newly written per collection",
		}, []string{"collection"}),
		phaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "phase_duration_seconds",
			Help:      "Wall time of the last run of each phase",
		}, []string{"phase"}),
		progress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "progress_percent",
			Help:      "Percent complete of the running phase",
		}, []string{"phase"}),
		itemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "item_errors_total",
			Help:      "Items that failed and were skipped",
		}, []string{"phase"}),
	}

	m.registry.MustRegister(
		m.requests, m.requestDuration, m.waits, m.waitSeconds, m.remaining,
		m.documents, m.phaseDuration, m.progress, m.itemErrors,
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(class string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(class, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(class).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveWait(class string, wait time.Duration, exhausted bool) {
	reason := "spacing"
	if exhausted {
		reason = "exhausted"
	}
	m.waits.WithLabelValues(class, reason).Inc()
	m.waitSeconds.WithLabelValues(class).Add(wait.Seconds())
}

func (m *Metrics) SetRemaining(class string, remaining int) {
	m.remaining.WithLabelValues(class).Set(float64(remaining))
}

func (m *Metrics) AddDocuments(collection string, n int) {
	m.documents.WithLabelValues(collection).Add(float64(n))
}

func (m *Metrics) ObservePhase(phase string, elapsed time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Set(elapsed.Seconds())
}

func (m *Metrics) SetProgress(phase string, percent int) {
	m.progress.WithLabelValues(phase).Set(float64(percent))
}

func (m *Metrics) IncItemError(phase string) {
	m.itemErrors.WithLabelValues(phase).Inc()
}

// Server serves /metrics and /health until its context is cancelled
type Server struct {
	srv *http.Server
	log logger.Logger
}

// NewServer builds a metrics server listening on addr
func NewServer(addr string, m *Metrics, log logger.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
}

// Start listens in the background. It shuts the server down when ctx ends.
func (s *Server) Start(ctx context.Context) {
	go func() {
		s.log.InfoWithFields("metrics server listening", map[string]interface{}{"addr": s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()
}

// Handler exposes the mux for tests
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
