package binance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// TestMapOrderError covers every taxonomy branch; broker error text is not
// a stable contract, so both code and free-text paths are pinned here.
func TestMapOrderError(t *testing.T) {
	tests := []struct {
		name string
		code int
		msg  string
		want types.ExecErrorKind
	}{
		// Numeric code paths
		{"balance code", -2018, "Balance is insufficient.", types.ExecErrorInsufficientBalance},
		{"margin code", -2019, "Margin is insufficient.", types.ExecErrorInsufficientMargin},
		{"quantity zero code", -4003, "Quantity less than or equal to zero.", types.ExecErrorInvalidQuantity},
		{"quantity max code", -4004, "Quantity greater than max quantity.", types.ExecErrorInvalidQuantity},
		{"precision code", -1111, "Precision is over the maximum defined for this asset.", types.ExecErrorInvalidQuantity},
		{"notional code", -4164, "Order's notional must be no smaller than 5.0", types.ExecErrorNotionalTooSmall},

		// Free-text fallbacks
		{"min notional text", -1013, "Filter failure: MIN_NOTIONAL", types.ExecErrorNotionalTooSmall},
		{"notional text", -1013, "Filter failure: NOTIONAL", types.ExecErrorNotionalTooSmall},
		{"lot size text", -1013, "Filter failure: LOT_SIZE", types.ExecErrorInvalidQuantity},
		{"invalid quantity text", -1100, "INVALID_QUANTITY for this pair", types.ExecErrorInvalidQuantity},
		{"precision text", -1100, "precision is invalid", types.ExecErrorInvalidQuantity},
		{"balance text", -1, "Account has insufficient balance for requested action.", types.ExecErrorInsufficientBalance},
		{"margin text", -1, "Margin is insufficient.", types.ExecErrorInsufficientMargin},

		// Unknown
		{"unknown code and text", -1021, "Timestamp for this request is outside of the recvWindow.", types.ExecErrorUnknown},
		{"empty message", 0, "", types.ExecErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapOrderError("binance", &apiError{Code: tt.code, Msg: tt.msg})
			assert.Equal(t, tt.want, mapped.Kind)
			assert.Equal(t, "binance", mapped.Broker)
			assert.Equal(t, tt.msg, mapped.Raw)
		})
	}
}
