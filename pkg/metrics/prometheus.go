package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry            *prometheus.Registry
	operationsProcessed *prometheus.CounterVec
	operationsRejected  *prometheus.CounterVec
	runDuration         prometheus.Histogram
	clientsTracked      prometheus.Gauge
	accountsLocked      prometheus.Gauge
	logger              *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	collector := &Collector{
		registry: registry,
		operationsProcessed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "operations_processed_total",
			Help: "Total number of applied operations",
		}, []string{"type"}),
		operationsRejected: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "operations_rejected_total",
			Help: "Total number of operations rejected by a business rule",
		}, []string{"type"}),
		runDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "run_duration_seconds",
			Help:    "Time taken to replay the full operation sequence",
			Buckets: prometheus.DefBuckets,
		}),
		clientsTracked: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "clients_tracked",
			Help: "Number of client records in the ledger",
		}),
		accountsLocked: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "accounts_locked",
			Help: "Number of clients locked by a chargeback",
		}),
		logger: logger,
	}

	return collector
}

func (m *Collector) RecordProcessed(opType string) {
	m.operationsProcessed.WithLabelValues(opType).Inc()
}

func (m *Collector) RecordRejected(opType string) {
	m.operationsRejected.WithLabelValues(opType).Inc()
}

func (m *Collector) ObserveRunDuration(d time.Duration) {
	m.runDuration.Observe(d.Seconds())
}

func (m *Collector) SetClientsTracked(n int) {
	m.clientsTracked.Set(float64(n))
}

func (m *Collector) SetAccountsLocked(n int) {
	m.accountsLocked.Set(float64(n))
}

func (m *Collector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer serves /metrics on addr for the duration of the run.
func (m *Collector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (m *Collector) Shutdown(ctx context.Context) error {
	m.logger.Info("Metrics collector shutdown complete")
	return nil
}
