package metrics

import (
	"time"

	"github.com/tathienbao/signal-bridge/internal/risk"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// Recorder provides methods for recording metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordSignal records an inbound signal.
func (r *Recorder) RecordSignal(broker string) {
	SignalsReceived.WithLabelValues(broker).Inc()
}

// RecordRejection records a pre-execution rejection.
func (r *Recorder) RecordRejection(reason string) {
	SignalsRejected.WithLabelValues(reason).Inc()
}

// RecordAction records one executed action's result.
func (r *Recorder) RecordAction(broker string, result types.ActionResult) {
	OrdersSubmitted.WithLabelValues(
		broker,
		result.Action.Instrument,
		result.Action.Kind.String(),
		result.Status.String(),
	).Inc()

	if result.Action.Kind == types.ActionClose && result.Status == types.ActionStatusFilled {
		ReconcileCloses.WithLabelValues(broker, result.Action.Instrument).Inc()
	}
}

// RecordOutcome records a terminal pipeline outcome.
func (r *Recorder) RecordOutcome(status types.OutcomeStatus) {
	Outcomes.WithLabelValues(status.String()).Inc()
}

// RecordRiskState publishes the current account risk state.
func (r *Recorder) RecordRiskState(snap risk.Snapshot) {
	AccountBalance.Set(snap.Balance.InexactFloat64())
	PeakBalance.Set(snap.PeakBalance.InexactFloat64())
	DrawdownPercent.Set(snap.DrawdownPercent.InexactFloat64())
	DailyLoss.Set(snap.DailyLoss.InexactFloat64())
	OpenPositions.Set(float64(snap.OpenPositions))
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObservePipeline observes the elapsed time as pipeline latency.
func (t *Timer) ObservePipeline() {
	PipelineLatency.Observe(t.Elapsed().Seconds())
}

// ObserveOrder observes the elapsed time as order latency.
func (t *Timer) ObserveOrder() {
	OrderLatency.Observe(t.Elapsed().Seconds())
}
