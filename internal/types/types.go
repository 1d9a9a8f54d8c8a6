// Package types defines shared types used across the signal bridge.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an exposure or order.
type Side int

const (
	SideFlat Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideFlat
	}
}

// MarshalJSON encodes the side as its string form.
func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// OrderStyle represents how an order is priced.
type OrderStyle int

const (
	StyleMarket OrderStyle = iota
	StyleLimit
)

func (o OrderStyle) String() string {
	switch o {
	case StyleLimit:
		return "LIMIT"
	default:
		return "MARKET"
	}
}

// MarshalJSON encodes the order style as its string form.
func (o OrderStyle) MarshalJSON() ([]byte, error) {
	return []byte(`"` + o.String() + `"`), nil
}

// TradeIntent is the canonical form of an inbound trading signal.
// Immutable once constructed; use NewTradeIntent so the construction
// invariants hold.
type TradeIntent struct {
	Instrument string          `json:"instrument"`
	Direction  Side            `json:"direction"`
	Quantity   decimal.Decimal `json:"quantity"`
	Style      OrderStyle      `json:"orderStyle"`
	LimitPrice decimal.Decimal `json:"limitPrice,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// NewTradeIntent constructs a validated TradeIntent.
func NewTradeIntent(instrument string, direction Side, qty decimal.Decimal, style OrderStyle, limitPrice decimal.Decimal, receivedAt time.Time) (TradeIntent, error) {
	if instrument == "" {
		return TradeIntent{}, ErrMissingInstrument
	}
	if direction != SideLong && direction != SideShort {
		return TradeIntent{}, ErrUnrecognizedDirection
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return TradeIntent{}, ErrInvalidQuantity
	}
	if style == StyleLimit && limitPrice.LessThanOrEqual(decimal.Zero) {
		return TradeIntent{}, ErrMissingLimitPrice
	}

	return TradeIntent{
		Instrument: instrument,
		Direction:  direction,
		Quantity:   qty,
		Style:      style,
		LimitPrice: limitPrice,
		ReceivedAt: receivedAt,
	}, nil
}

// InstrumentRules is a point-in-time snapshot of the exchange's trading
// rules for an instrument. Never cached across pipeline runs.
type InstrumentRules struct {
	MinNotional       decimal.Decimal
	QuantityStep      decimal.Decimal
	QuantityPrecision int32
	PricePrecision    int32
}

// NetPosition is the signed outstanding quantity held for an instrument.
// Positive = long, negative = short, zero = flat. The core only reads it;
// all mutation happens through submitted orders.
type NetPosition struct {
	Instrument     string
	SignedQuantity decimal.Decimal
}

// Side returns the directional stance of the position.
func (p NetPosition) Side() Side {
	switch {
	case p.SignedQuantity.IsPositive():
		return SideLong
	case p.SignedQuantity.IsNegative():
		return SideShort
	default:
		return SideFlat
	}
}

// ActionKind distinguishes a closing action from an opening one.
type ActionKind int

const (
	ActionClose ActionKind = iota
	ActionOpen
)

func (k ActionKind) String() string {
	if k == ActionClose {
		return "CLOSE"
	}
	return "OPEN"
}

// MarshalJSON encodes the kind as its string form.
func (k ActionKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// PlannedAction is one exchange action of a reconciliation plan.
type PlannedAction struct {
	Kind       ActionKind      `json:"kind"`
	Instrument string          `json:"instrument"`
	Direction  Side            `json:"direction"`
	Quantity   decimal.Decimal `json:"quantity"`
	Style      OrderStyle      `json:"orderStyle"`
	LimitPrice decimal.Decimal `json:"limitPrice,omitempty"`
	ReduceOnly bool            `json:"reduceOnly"`
}

// ReconciliationPlan is an ordered sequence of zero, one or two actions.
// Produced fresh per intent, never persisted.
type ReconciliationPlan struct {
	Actions []PlannedAction `json:"actions"`
}

// HasClose reports whether the plan starts with a closing action.
func (p ReconciliationPlan) HasClose() bool {
	return len(p.Actions) > 0 && p.Actions[0].Kind == ActionClose
}

// RiskReason enumerates policy rejection reasons.
type RiskReason int

const (
	RiskReasonNone RiskReason = iota
	RiskReasonTooManyConcurrentPositions
	RiskReasonNotionalTooSmall
	RiskReasonDailyLossLimitExceeded
	RiskReasonDrawdownExceeded
)

func (r RiskReason) String() string {
	switch r {
	case RiskReasonTooManyConcurrentPositions:
		return "TOO_MANY_CONCURRENT_POSITIONS"
	case RiskReasonNotionalTooSmall:
		return "NOTIONAL_TOO_SMALL"
	case RiskReasonDailyLossLimitExceeded:
		return "DAILY_LOSS_LIMIT_EXCEEDED"
	case RiskReasonDrawdownExceeded:
		return "DRAWDOWN_EXCEEDED"
	default:
		return "NONE"
	}
}

// MarshalJSON encodes the reason as its string form.
func (r RiskReason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// RiskDecision is the outcome of risk validation for one intent.
type RiskDecision struct {
	Approved         bool            `json:"approved"`
	AdjustedQuantity decimal.Decimal `json:"adjustedQuantity"`
	Reason           RiskReason      `json:"rejectionReason,omitempty"`
}

// ActionStatus is the terminal status of one executed action.
type ActionStatus int

const (
	ActionStatusFilled ActionStatus = iota
	ActionStatusRejected
	ActionStatusFailed
)

func (s ActionStatus) String() string {
	switch s {
	case ActionStatusFilled:
		return "FILLED"
	case ActionStatusRejected:
		return "REJECTED"
	default:
		return "FAILED"
	}
}

// MarshalJSON encodes the status as its string form.
func (s ActionStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ActionResult records what happened to one planned action.
type ActionResult struct {
	Action        PlannedAction `json:"action"`
	Status        ActionStatus  `json:"status"`
	BrokerOrderID string        `json:"brokerOrderId,omitempty"`
	ErrorKind     ExecErrorKind `json:"errorKind,omitempty"`
}

// OutcomeStatus is the caller-visible status of one pipeline run.
type OutcomeStatus int

const (
	OutcomeSuccess OutcomeStatus = iota
	OutcomePartial
	OutcomeError
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	default:
		return "error"
	}
}

// MarshalJSON encodes the status as its string form.
func (s OutcomeStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ExecutionOutcome is the structured result of one pipeline run.
// It is assembled incrementally and returned even on partial failure, so
// the caller can distinguish "nothing happened" from "partially executed".
type ExecutionOutcome struct {
	ID      string             `json:"id"`
	Status  OutcomeStatus      `json:"status"`
	Message string             `json:"message,omitempty"`
	Intent  TradeIntent        `json:"intent"`
	Plan    ReconciliationPlan `json:"plan"`
	Results []ActionResult     `json:"perActionResult"`
}

// Executed reports whether any broker order was submitted successfully.
func (o ExecutionOutcome) Executed() bool {
	for _, r := range o.Results {
		if r.BrokerOrderID != "" {
			return true
		}
	}
	return false
}
