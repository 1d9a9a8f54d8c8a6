package risk

import (
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// Limits holds the account-level risk limits.
type Limits struct {
	MaxPositionSize        decimal.Decimal // max notional per position, quote currency
	MaxDailyLoss           decimal.Decimal // quote currency
	MaxDrawdownPercent     decimal.Decimal // e.g. 10 for 10%
	MaxConcurrentPositions int
}

// DefaultLimits returns conservative defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:        decimal.NewFromInt(1000),
		MaxDailyLoss:           decimal.NewFromInt(500),
		MaxDrawdownPercent:     decimal.NewFromInt(10),
		MaxConcurrentPositions: 3,
	}
}

// Validator applies account-level and instrument-level limits to a
// candidate intent. Stateless; all account state arrives via Snapshot.
type Validator struct {
	limits Limits
	logger *slog.Logger
}

// NewValidator creates a validator.
func NewValidator(limits Limits, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{limits: limits, logger: logger}
}

// PreCheck applies the balance-derived limits (daily loss, drawdown) that
// need no market data, so a breached account rejects intents before any
// broker call is made.
func (v *Validator) PreCheck(snap Snapshot) types.RiskDecision {
	if snap.DailyLoss.GreaterThan(v.limits.MaxDailyLoss) {
		v.logger.Warn("intent rejected: daily loss limit",
			"daily_loss", snap.DailyLoss,
			"limit", v.limits.MaxDailyLoss,
		)
		return types.RiskDecision{Reason: types.RiskReasonDailyLossLimitExceeded}
	}

	if snap.DrawdownPercent.GreaterThan(v.limits.MaxDrawdownPercent) {
		v.logger.Warn("intent rejected: drawdown limit",
			"drawdown_pct", snap.DrawdownPercent,
			"limit_pct", v.limits.MaxDrawdownPercent,
		)
		return types.RiskDecision{Reason: types.RiskReasonDrawdownExceeded}
	}

	return types.RiskDecision{Approved: true}
}

// Validate runs the full ordered check list against a candidate intent.
//
// Checks short-circuit on first failure:
//  1. concurrent-position cap (only when the intent opens a new instrument)
//  2. notional floor (reject, never scale up)
//  3. position-value cap (clamp down, never reject)
//  4. daily-loss cap
//  5. drawdown cap
//
// The approved quantity is rounded last, by truncation, so rounding can
// never push an order above an approved ceiling.
func (v *Validator) Validate(intent types.TradeIntent, rules types.InstrumentRules, price decimal.Decimal, snap Snapshot, opensNewInstrument bool) types.RiskDecision {
	if opensNewInstrument && snap.OpenPositions >= v.limits.MaxConcurrentPositions {
		v.logger.Warn("intent rejected: concurrent position cap",
			"open_positions", snap.OpenPositions,
			"max", v.limits.MaxConcurrentPositions,
		)
		return types.RiskDecision{Reason: types.RiskReasonTooManyConcurrentPositions}
	}

	notional := intent.Quantity.Mul(price)
	if notional.LessThan(rules.MinNotional) {
		v.logger.Warn("intent rejected: below notional floor",
			"instrument", intent.Instrument,
			"notional", notional,
			"min_notional", rules.MinNotional,
		)
		return types.RiskDecision{Reason: types.RiskReasonNotionalTooSmall}
	}

	qty := intent.Quantity
	if notional.GreaterThan(v.limits.MaxPositionSize) {
		qty = v.limits.MaxPositionSize.Div(price)
		v.logger.Info("position value above cap, clamping",
			"instrument", intent.Instrument,
			"requested", intent.Quantity,
			"clamped", qty,
		)
	}

	if snap.DailyLoss.GreaterThan(v.limits.MaxDailyLoss) {
		return types.RiskDecision{Reason: types.RiskReasonDailyLossLimitExceeded}
	}

	if snap.DrawdownPercent.GreaterThan(v.limits.MaxDrawdownPercent) {
		return types.RiskDecision{Reason: types.RiskReasonDrawdownExceeded}
	}

	qty = RoundQuantity(qty, rules.QuantityStep, rules.QuantityPrecision)
	if qty.LessThanOrEqual(decimal.Zero) {
		// Clamp plus step rounding left nothing tradeable.
		return types.RiskDecision{Reason: types.RiskReasonNotionalTooSmall}
	}

	return types.RiskDecision{Approved: true, AdjustedQuantity: qty}
}

// RoundQuantity floors a quantity to the exchange's quantity step, then
// truncates to its declared precision. Truncation only; rounding up could
// exceed an approved risk ceiling.
func RoundQuantity(qty, step decimal.Decimal, precision int32) decimal.Decimal {
	if step.IsPositive() {
		qty = qty.Div(step).Floor().Mul(step)
	}
	return qty.Truncate(precision)
}
