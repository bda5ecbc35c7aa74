package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pointscan-io/pointscan/config"
)

// Metrics contains all metric groups
type Metrics struct {
	Indexer *IndexerMetrics
	Accrual *AccrualMetrics
}

var (
	// Global registry and metrics
	registry *prometheus.Registry
	metrics  *Metrics

	// Singleton initialization
	initOnce sync.Once

	// Chain identifier for metrics labeling
	chainId string
)

// constLabels returns the constant labels to be added to all metrics
func constLabels() prometheus.Labels {
	if chainId == "" {
		return nil
	}
	return prometheus.Labels{"chain_id": chainId}
}

// MetricsServer represents the Prometheus metrics HTTP server
type MetricsServer struct {
	server *http.Server
	logger *slog.Logger
	cfg    *config.MetricsConfig
}

// Init initializes the Prometheus metrics registry and registers all metrics.
// Safe to call multiple times - it will only initialize once.
func Init(id string) {
	initOnce.Do(func() {
		chainId = id
		registry = prometheus.NewRegistry()

		metrics = &Metrics{
			Indexer: NewIndexerMetrics(),
			Accrual: NewAccrualMetrics(),
		}

		metrics.Indexer.Register(registry)
		metrics.Accrual.Register(registry)

		// Add Go runtime metrics
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// NewServer creates a new metrics server
func NewServer(cfg *config.Config, logger *slog.Logger) *MetricsServer {
	metricsConfig := cfg.GetMetricsConfig()

	// Ensure metrics subsystem is initialized
	if registry == nil || metrics == nil {
		Init(cfg.GetChainId())
	}

	mux := http.NewServeMux()
	mux.Handle(metricsConfig.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	server := &http.Server{
		Addr:              ":" + metricsConfig.Port,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return &MetricsServer{
		server: server,
		logger: logger.With("component", "metrics"),
		cfg:    metricsConfig,
	}
}

// Start starts the metrics server
func (m *MetricsServer) Start() error {
	if !m.cfg.Enabled {
		m.logger.Info("metrics server disabled")
		return nil
	}

	m.logger.Info("starting metrics server",
		slog.String("addr", m.server.Addr),
		slog.String("path", m.cfg.Path))

	return m.server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if !m.cfg.Enabled {
		return nil
	}

	m.logger.Info("shutting down metrics server")
	return m.server.Shutdown(ctx)
}

// RegisterDBStats exports the database connection pool statistics.
func RegisterDBStats(sqlDB *sql.DB) {
	if registry == nil {
		Init("")
	}
	registry.MustRegister(collectors.NewDBStatsCollector(sqlDB, "pointscan"))
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if metrics == nil {
		Init("")
	}
	return metrics
}

// IndexerMetrics returns the Indexer metrics group
func (m *Metrics) IndexerMetrics() *IndexerMetrics {
	return m.Indexer
}

// AccrualMetrics returns the Accrual metrics group
func (m *Metrics) AccrualMetrics() *AccrualMetrics {
	return m.Accrual
}
