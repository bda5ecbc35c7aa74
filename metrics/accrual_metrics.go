package metrics

import "github.com/prometheus/client_golang/prometheus"

// AccrualMetrics groups points-accrual metrics
type AccrualMetrics struct {
	SnapshotsWritten   *prometheus.CounterVec
	OutOfOrderEvents   prometheus.Counter
	DegradedSnapshots  prometheus.Counter
	SweepRunsTotal     prometheus.Counter
	SweptAccountsTotal prometheus.Counter
	RegisteredAccounts prometheus.Gauge
}

// NewAccrualMetrics creates and returns accrual metrics
func NewAccrualMetrics() *AccrualMetrics {
	return &AccrualMetrics{
		SnapshotsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "pointscan_snapshots_written_total",
				Help:        "Total number of snapshots written, by trigger kind",
				ConstLabels: constLabels(),
			},
			[]string{"trigger"},
		),
		OutOfOrderEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "pointscan_out_of_order_events_total",
				Help:        "Total number of observations older than the account's last snapshot",
				ConstLabels: constLabels(),
			},
		),
		DegradedSnapshots: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "pointscan_degraded_snapshots_total",
				Help:        "Total number of snapshots written with a stale fallback balance",
				ConstLabels: constLabels(),
			},
		),
		SweepRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "pointscan_sweep_runs_total",
				Help:        "Total number of registry-wide sweep passes",
				ConstLabels: constLabels(),
			},
		),
		SweptAccountsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "pointscan_swept_accounts_total",
				Help:        "Total number of accounts re-accrued by sweeps",
				ConstLabels: constLabels(),
			},
		),
		RegisteredAccounts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "pointscan_registered_accounts",
				Help:        "Number of addresses in the account registry",
				ConstLabels: constLabels(),
			},
		),
	}
}

// Register registers all accrual metrics with the given registry
func (a *AccrualMetrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		a.SnapshotsWritten,
		a.OutOfOrderEvents,
		a.DegradedSnapshots,
		a.SweepRunsTotal,
		a.SweptAccountsTotal,
		a.RegisteredAccounts,
	)
}
