// Package gateway defines the broker-agnostic interface the core pipeline
// drives. One adapter implementation exists per exchange; adapters are the
// only components permitted to perform network I/O for market data and
// order placement.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// Gateway is implemented once per broker. Read operations may fail with
// types.ErrMarketDataUnavailable (wrapped); order submission failures are
// mapped into the types.ExecError taxonomy by each adapter.
type Gateway interface {
	// Name identifies the broker for dispatch and logging.
	Name() string

	// CurrentPrice returns the instrument's current (mark) price.
	CurrentPrice(ctx context.Context, instrument string) (decimal.Decimal, error)

	// InstrumentRules returns a point-in-time snapshot of the exchange's
	// trading rules for the instrument.
	InstrumentRules(ctx context.Context, instrument string) (types.InstrumentRules, error)

	// NetPosition returns the account's signed net position.
	NetPosition(ctx context.Context, instrument string) (types.NetPosition, error)

	// AccountBalance returns the account's quote-currency balance.
	AccountBalance(ctx context.Context) (decimal.Decimal, error)

	// SubmitMarketOrder places a market order and returns the broker order id.
	SubmitMarketOrder(ctx context.Context, instrument string, side types.Side, qty decimal.Decimal, reduceOnly bool) (string, error)

	// SubmitLimitOrder places a limit order and returns the broker order id.
	SubmitLimitOrder(ctx context.Context, instrument string, side types.Side, qty, price decimal.Decimal, reduceOnly bool) (string, error)

	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, instrument, orderID string) error
}

// Submit translates one planned action into the matching gateway call.
// The only place action kind/style fan out to the wire operations.
func Submit(ctx context.Context, g Gateway, action types.PlannedAction) (string, error) {
	if action.Style == types.StyleLimit {
		return g.SubmitLimitOrder(ctx, action.Instrument, action.Direction, action.Quantity, action.LimitPrice, action.ReduceOnly)
	}
	return g.SubmitMarketOrder(ctx, action.Instrument, action.Direction, action.Quantity, action.ReduceOnly)
}
