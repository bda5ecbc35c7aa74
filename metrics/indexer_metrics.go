package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	IndexerLatencyBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}
)

// IndexerMetrics groups pipeline-level metrics
type IndexerMetrics struct {
	BlocksProcessedTotal prometheus.Counter
	BatchesCommitted     prometheus.Counter
	CommitRetries        prometheus.Counter
	CurrentBlockHeight   prometheus.Gauge
	BatchProcessingTime  *prometheus.HistogramVec
	ProcessingErrors     *prometheus.CounterVec
	RPCErrors            *prometheus.CounterVec
}

// NewIndexerMetrics creates and returns indexer metrics
func NewIndexerMetrics() *IndexerMetrics {
	return &IndexerMetrics{
		BlocksProcessedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "pointscan_blocks_processed_total",
				Help:        "Total number of blocks processed",
				ConstLabels: constLabels(),
			},
		),
		BatchesCommitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "pointscan_batches_committed_total",
				Help:        "Total number of batches committed to the store",
				ConstLabels: constLabels(),
			},
		),
		CommitRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "pointscan_commit_retries_total",
				Help:        "Total number of discarded batches retried after a commit failure",
				ConstLabels: constLabels(),
			},
		),
		CurrentBlockHeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "pointscan_current_block_height",
				Help:        "Highest committed block height",
				ConstLabels: constLabels(),
			},
		),
		BatchProcessingTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "pointscan_batch_processing_duration_seconds",
				Help:        "Time spent processing batches",
				Buckets:     IndexerLatencyBuckets,
				ConstLabels: constLabels(),
			},
			[]string{"stage"}, // "scrape", "resolve", "accrue", "commit"
		),
		ProcessingErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "pointscan_processing_errors_total",
				Help:        "Total number of processing errors",
				ConstLabels: constLabels(),
			},
			[]string{"stage", "error_type"},
		),
		RPCErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "pointscan_rpc_errors_total",
				Help:        "Total number of JSON-RPC request failures",
				ConstLabels: constLabels(),
			},
			[]string{"method"},
		),
	}
}

// Register registers all indexer metrics with the given registry
func (i *IndexerMetrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		i.BlocksProcessedTotal,
		i.BatchesCommitted,
		i.CommitRetries,
		i.CurrentBlockHeight,
		i.BatchProcessingTime,
		i.ProcessingErrors,
		i.RPCErrors,
	)
}
