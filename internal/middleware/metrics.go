package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	triggersReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consultant_triggers_received_total",
		Help: "Total number of recognized trigger commands",
	}, []string{"command"})

	triggerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consultant_trigger_outcomes_total",
		Help: "Terminal branch reached per processed trigger",
	}, []string{"outcome"})

	cooldownDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consultant_cooldown_drops_total",
		Help: "Triggers silently dropped by the cooldown gate",
	})

	modelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "consultant_model_request_duration_seconds",
		Help:    "Duration of model endpoint calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consultant_answer_cache_hits_total",
		Help: "Total number of answer cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consultant_answer_cache_misses_total",
		Help: "Total number of answer cache misses",
	})

	adminActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consultant_admin_actions_total",
		Help: "Admin console actions executed",
	}, []string{"action"})

	activeChats = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "consultant_known_chats",
		Help: "Number of chats with stored conversation state",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordTrigger records a recognized trigger command.
func (m *Metrics) RecordTrigger(command string) {
	triggersReceived.WithLabelValues(command).Inc()
}

// RecordOutcome records the terminal branch of a processed trigger.
func (m *Metrics) RecordOutcome(outcome string) {
	triggerOutcomes.WithLabelValues(outcome).Inc()
}

// RecordCooldownDrop records a trigger dropped by the cooldown gate.
func (m *Metrics) RecordCooldownDrop() {
	cooldownDrops.Inc()
}

// RecordModelRequest records a model endpoint call.
func (m *Metrics) RecordModelRequest(status string, duration time.Duration) {
	modelRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordCacheHit records an answer cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records an answer cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordAdminAction records an admin console action.
func (m *Metrics) RecordAdminAction(action string) {
	adminActions.WithLabelValues(action).Inc()
}

// SetKnownChats sets the number of chats with stored state.
func (m *Metrics) SetKnownChats(count float64) {
	activeChats.Set(count)
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
