// Package orchestrator drives one signal through the full pipeline:
// normalize, risk pre-check, market data, validate, plan, execute.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tathienbao/signal-bridge/internal/alerting"
	"github.com/tathienbao/signal-bridge/internal/gateway"
	"github.com/tathienbao/signal-bridge/internal/metrics"
	"github.com/tathienbao/signal-bridge/internal/persistence"
	"github.com/tathienbao/signal-bridge/internal/reconcile"
	"github.com/tathienbao/signal-bridge/internal/risk"
	"github.com/tathienbao/signal-bridge/internal/signal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// Config holds orchestrator configuration.
type Config struct {
	// DefaultBroker routes signals that carry no broker field.
	DefaultBroker string
	// BrokerCallTimeout bounds each individual gateway call.
	BrokerCallTimeout time.Duration
}

// DefaultConfig returns default orchestrator config.
func DefaultConfig() Config {
	return Config{
		DefaultBroker:     "paper",
		BrokerCallTimeout: 10 * time.Second,
	}
}

// Orchestrator coordinates the pipeline components. Safe for concurrent
// use; runs for the same broker/instrument pair are serialized, runs for
// distinct pairs proceed in parallel.
type Orchestrator struct {
	cfg        Config
	logger     *slog.Logger
	normalizer *signal.Normalizer
	validator  *risk.Validator
	state      *risk.State
	gateways   map[string]gateway.Gateway
	repo       persistence.Repository
	alerter    alerting.Alerter
	recorder   *metrics.Recorder
	locks      *keyLock
}

// New creates an orchestrator. repo and alerter may be nil; persistence
// and alerting are then skipped.
func New(
	cfg Config,
	normalizer *signal.Normalizer,
	validator *risk.Validator,
	state *risk.State,
	gateways map[string]gateway.Gateway,
	repo persistence.Repository,
	alerter alerting.Alerter,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BrokerCallTimeout <= 0 {
		cfg.BrokerCallTimeout = DefaultConfig().BrokerCallTimeout
	}

	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		normalizer: normalizer,
		validator:  validator,
		state:      state,
		gateways:   gateways,
		repo:       repo,
		alerter:    alerter,
		recorder:   metrics.NewRecorder(),
		locks:      newKeyLock(),
	}
}

// Process runs one raw signal through the pipeline and always returns a
// structured outcome; pipeline failures surface as OutcomeError, never as
// a Go error to the caller.
func (o *Orchestrator) Process(ctx context.Context, raw signal.Raw) types.ExecutionOutcome {
	timer := metrics.NewTimer()
	defer timer.ObservePipeline()

	outcome := types.ExecutionOutcome{
		ID:     uuid.NewString(),
		Status: types.OutcomeError,
	}

	broker := raw.Broker
	if broker == "" {
		broker = o.cfg.DefaultBroker
	}
	o.recorder.RecordSignal(broker)

	gw, ok := o.gateways[broker]
	if !ok {
		return o.reject(ctx, outcome, fmt.Errorf("%w: %q", types.ErrUnknownBroker, broker), "unknown_broker")
	}

	intent, err := o.normalizer.Normalize(raw)
	if err != nil {
		return o.reject(ctx, outcome, fmt.Errorf("normalize: %w", err), "normalization")
	}
	outcome.Intent = intent

	logger := o.logger.With(
		"outcome_id", outcome.ID,
		"broker", broker,
		"instrument", intent.Instrument,
	)
	logger.Info("signal accepted",
		"direction", intent.Direction.String(),
		"quantity", intent.Quantity,
	)

	// Serialize per broker/instrument for the rest of the run. Everything
	// from here reads and conditionally mutates that pair's exposure.
	release := o.locks.Acquire(risk.PositionKey(broker, intent.Instrument))
	defer release()

	// Balance-derived limits need no market data; a breached account is
	// rejected before any broker call.
	if pre := o.validator.PreCheck(o.state.Snapshot()); !pre.Approved {
		o.alertRiskHalt(ctx, pre.Reason, intent)
		return o.reject(ctx, outcome, fmt.Errorf("risk pre-check: %s", pre.Reason), pre.Reason.String())
	}

	price, rules, pos, err := o.fetchMarketData(ctx, gw, intent.Instrument)
	if err != nil {
		return o.reject(ctx, outcome, err, "market_data")
	}

	opensNew := !o.state.HasPosition(risk.PositionKey(broker, intent.Instrument)) && pos.SignedQuantity.IsZero()
	decision := o.validator.Validate(intent, rules, price, o.state.Snapshot(), opensNew)
	if !decision.Approved {
		return o.reject(ctx, outcome, fmt.Errorf("risk check: %s", decision.Reason), decision.Reason.String())
	}

	plan := reconcile.Plan(intent, pos, decision.AdjustedQuantity)
	outcome.Plan = plan

	outcome = o.execute(ctx, logger, gw, broker, intent, plan, outcome)
	o.recorder.RecordOutcome(outcome.Status)
	o.refreshRiskState(ctx, gw, broker)
	return outcome
}

// execute submits the plan's actions in order. A close failure aborts the
// open; an open failure after a filled close leaves the account flat and
// is reported, never retried.
func (o *Orchestrator) execute(
	ctx context.Context,
	logger *slog.Logger,
	gw gateway.Gateway,
	broker string,
	intent types.TradeIntent,
	plan types.ReconciliationPlan,
	outcome types.ExecutionOutcome,
) types.ExecutionOutcome {
	for i, action := range plan.Actions {
		orderTimer := metrics.NewTimer()
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.BrokerCallTimeout)
		orderID, err := gateway.Submit(callCtx, gw, action)
		cancel()
		orderTimer.ObserveOrder()

		result := types.ActionResult{Action: action, Status: types.ActionStatusFilled, BrokerOrderID: orderID}
		if err != nil {
			result.ErrorKind = types.ExecErrorKindOf(err)
			result.Status = actionStatus(result.ErrorKind)
		}
		outcome.Results = append(outcome.Results, result)
		o.recorder.RecordAction(broker, result)

		if err != nil {
			logger.Error("action failed",
				"kind", action.Kind.String(),
				"error_kind", result.ErrorKind.String(),
				"error", err,
			)
			if i == 0 && action.Kind == types.ActionClose {
				// Position unchanged. The open leg must not run against a
				// stale exposure, so the run stops here.
				outcome.Status = types.OutcomePartial
				outcome.Message = fmt.Sprintf("close failed, open aborted: %v", err)
			} else if outcome.Executed() {
				outcome.Status = types.OutcomePartial
				outcome.Message = fmt.Sprintf("open failed after close filled, account flat: %v", err)
				o.applyClose(ctx, broker, intent.Instrument)
			} else {
				outcome.Status = types.OutcomeError
				outcome.Message = fmt.Sprintf("execution failed: %v", err)
			}
			o.alertPartial(ctx, outcome, broker, intent)
			return outcome
		}

		logger.Info("action filled",
			"kind", action.Kind.String(),
			"quantity", action.Quantity,
			"broker_order_id", orderID,
		)

		if action.Kind == types.ActionClose {
			o.applyClose(ctx, broker, action.Instrument)
		} else {
			o.applyOpen(ctx, broker, action)
		}
	}

	outcome.Status = types.OutcomeSuccess
	return outcome
}

// fetchMarketData gathers the per-run market snapshot with one bounded
// call per read.
func (o *Orchestrator) fetchMarketData(ctx context.Context, gw gateway.Gateway, instrument string) (decimal.Decimal, types.InstrumentRules, types.NetPosition, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.BrokerCallTimeout)
	defer cancel()

	price, err := gw.CurrentPrice(callCtx, instrument)
	if err != nil {
		return decimal.Zero, types.InstrumentRules{}, types.NetPosition{}, fmt.Errorf("current price: %w", err)
	}

	rules, err := gw.InstrumentRules(callCtx, instrument)
	if err != nil {
		return decimal.Zero, types.InstrumentRules{}, types.NetPosition{}, fmt.Errorf("instrument rules: %w", err)
	}

	pos, err := gw.NetPosition(callCtx, instrument)
	if err != nil {
		return decimal.Zero, types.InstrumentRules{}, types.NetPosition{}, fmt.Errorf("net position: %w", err)
	}

	return price, rules, pos, nil
}

// applyOpen records a confirmed fill in the registry and persists it.
func (o *Orchestrator) applyOpen(ctx context.Context, broker string, action types.PlannedAction) {
	pos := risk.OpenPosition{
		Broker:     broker,
		Instrument: action.Instrument,
		Direction:  action.Direction,
		Quantity:   action.Quantity,
		OpenedAt:   time.Now().UTC(),
	}
	o.state.SetPosition(pos)

	if o.repo != nil {
		if err := o.repo.SavePosition(ctx, pos); err != nil {
			o.logger.Error("persist position", "instrument", action.Instrument, "error", err)
		}
	}
}

// applyClose clears a confirmed close from the registry and persistence.
func (o *Orchestrator) applyClose(ctx context.Context, broker, instrument string) {
	o.state.ClearPosition(risk.PositionKey(broker, instrument))

	if o.repo != nil {
		if err := o.repo.DeletePosition(ctx, broker, instrument); err != nil {
			o.logger.Error("unpersist position", "instrument", instrument, "error", err)
		}
	}
}

// refreshRiskState pulls the account balance after execution, updates the
// tracked equity and exports the resulting risk gauges.
func (o *Orchestrator) refreshRiskState(ctx context.Context, gw gateway.Gateway, broker string) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.BrokerCallTimeout)
	defer cancel()

	balance, err := gw.AccountBalance(callCtx)
	if err != nil {
		o.logger.Warn("balance refresh failed", "broker", broker, "error", err)
		return
	}

	if o.state.UpdateBalance(balance) {
		o.logger.Info("new peak balance", "balance", balance)
	}

	snap := o.state.Snapshot()
	o.recorder.RecordRiskState(snap)

	if o.repo != nil {
		rs := persistence.RiskState{
			LastUpdated:     time.Now().UTC(),
			DayStartBalance: snap.Balance.Add(snap.DailyLoss),
			CurrentBalance:  snap.Balance,
			PeakBalance:     snap.PeakBalance,
		}
		if err := o.repo.SaveRiskState(ctx, rs); err != nil {
			o.logger.Error("persist risk state", "error", err)
		}
	}
}

// ResetDaily rolls the daily loss window over. Called by the daily timer.
func (o *Orchestrator) ResetDaily() {
	o.state.ResetDaily()
	o.logger.Info("daily loss window reset")
}

// reject finalizes a run that never reached execution.
func (o *Orchestrator) reject(ctx context.Context, outcome types.ExecutionOutcome, err error, reason string) types.ExecutionOutcome {
	outcome.Status = types.OutcomeError
	outcome.Message = err.Error()

	o.logger.Warn("signal rejected", "outcome_id", outcome.ID, "reason", reason, "error", err)
	o.recorder.RecordRejection(reason)
	o.recorder.RecordOutcome(types.OutcomeError)

	if o.alerter != nil {
		_ = o.alerter.Alert(ctx, alerting.EventSeverity(alerting.EventSignalRejected),
			"signal rejected",
			"reason", reason,
			"detail", err.Error(),
		)
	}
	return outcome
}

// alertRiskHalt escalates a balance-limit breach; trading stays halted
// until the window resets or equity recovers.
func (o *Orchestrator) alertRiskHalt(ctx context.Context, reason types.RiskReason, intent types.TradeIntent) {
	if o.alerter == nil {
		return
	}

	event := alerting.EventDailyLossBreached
	if reason == types.RiskReasonDrawdownExceeded {
		event = alerting.EventDrawdownBreached
	}
	_ = o.alerter.Alert(ctx, alerting.EventSeverity(event),
		"trading halted by risk limit",
		"reason", reason.String(),
		"instrument", intent.Instrument,
	)
}

func (o *Orchestrator) alertPartial(ctx context.Context, outcome types.ExecutionOutcome, broker string, intent types.TradeIntent) {
	if o.alerter == nil {
		return
	}

	event := alerting.EventOrderRejected
	if outcome.Status == types.OutcomePartial {
		event = alerting.EventPartialExecution
	}
	_ = o.alerter.Alert(ctx, alerting.EventSeverity(event),
		"execution incomplete",
		"outcome_id", outcome.ID,
		"broker", broker,
		"instrument", intent.Instrument,
		"detail", outcome.Message,
	)
}

// actionStatus maps a broker error kind to the action's terminal status.
// Static rule violations are REJECTED (resending the identical order cannot
// succeed); balance-dependent and unknown failures are FAILED.
func actionStatus(kind types.ExecErrorKind) types.ActionStatus {
	switch kind {
	case types.ExecErrorInvalidQuantity, types.ExecErrorNotionalTooSmall:
		return types.ActionStatusRejected
	default:
		return types.ActionStatusFailed
	}
}
