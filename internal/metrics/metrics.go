// Package metrics exposes Prometheus metrics for the signal bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics.
var (
	SignalsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigbridge_signals_received_total",
		Help: "Inbound signals received, by broker.",
	}, []string{"broker"})

	SignalsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigbridge_signals_rejected_total",
		Help: "Signals rejected before execution, by reason.",
	}, []string{"reason"})

	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigbridge_orders_submitted_total",
		Help: "Broker order submissions, by broker, instrument, kind and status.",
	}, []string{"broker", "instrument", "kind", "status"})

	ReconcileCloses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigbridge_reconcile_closes_total",
		Help: "Opposing positions flattened before opening, by broker and instrument.",
	}, []string{"broker", "instrument"})

	Outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigbridge_outcomes_total",
		Help: "Pipeline outcomes, by status.",
	}, []string{"status"})

	PipelineLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sigbridge_pipeline_latency_seconds",
		Help:    "Wall time of one full pipeline run.",
		Buckets: prometheus.DefBuckets,
	})

	OrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sigbridge_order_latency_seconds",
		Help:    "Broker order submission latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// Account metrics.
var (
	AccountBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sigbridge_account_balance",
		Help: "Last observed account balance in quote currency.",
	})

	PeakBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sigbridge_peak_balance",
		Help: "Peak account balance in quote currency.",
	})

	DrawdownPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sigbridge_drawdown_percent",
		Help: "Current drawdown from peak balance, percent.",
	})

	DailyLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sigbridge_daily_loss",
		Help: "Loss since the daily baseline in quote currency.",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sigbridge_open_positions",
		Help: "Number of open positions in the registry.",
	})
)

// Build info.
var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sigbridge_build_info",
		Help: "Build information.",
	}, []string{"version", "commit", "build_time"})
)

// SetBuildInfo records build metadata.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
