package binance

import (
	"fmt"
	"strings"

	"github.com/tathienbao/signal-bridge/internal/types"
)

// apiError is the raw {"code":..., "msg":...} body Binance returns on
// failure.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("binance api error %d: %s", e.Code, e.Msg)
}

// mapOrderError translates a Binance order rejection into the shared
// taxonomy. Numeric codes are matched first; free-text matching is kept as
// a fallback because Binance has changed messages without changing codes.
// Broker error text is not a stable contract, so every branch here is
// covered by tests.
func mapOrderError(broker string, err *apiError) *types.ExecError {
	kind := types.ExecErrorUnknown

	switch err.Code {
	case -2018: // Balance is insufficient
		kind = types.ExecErrorInsufficientBalance
	case -2019: // Margin is insufficient
		kind = types.ExecErrorInsufficientMargin
	case -4003, -4004, -1111: // quantity/precision filter violations
		kind = types.ExecErrorInvalidQuantity
	case -4164: // order's notional must be no smaller than minimum
		kind = types.ExecErrorNotionalTooSmall
	}

	if kind == types.ExecErrorUnknown {
		msg := strings.ToUpper(err.Msg)
		switch {
		case strings.Contains(msg, "MIN_NOTIONAL") || strings.Contains(msg, "NOTIONAL"):
			kind = types.ExecErrorNotionalTooSmall
		case strings.Contains(msg, "LOT_SIZE") || strings.Contains(msg, "INVALID_QUANTITY") || strings.Contains(msg, "PRECISION"):
			kind = types.ExecErrorInvalidQuantity
		case strings.Contains(msg, "INSUFFICIENT BALANCE"):
			kind = types.ExecErrorInsufficientBalance
		case strings.Contains(msg, "MARGIN IS INSUFFICIENT"):
			kind = types.ExecErrorInsufficientMargin
		}
	}

	return types.NewExecError(kind, broker, err.Msg)
}
