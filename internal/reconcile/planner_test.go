package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

func mustIntent(t *testing.T, direction types.Side, style types.OrderStyle, limitPrice string) types.TradeIntent {
	t.Helper()
	intent, err := types.NewTradeIntent(
		"BTCUSDT",
		direction,
		decimal.RequireFromString("0.01"),
		style,
		decimal.RequireFromString(limitPrice),
		time.Now(),
	)
	if err != nil {
		t.Fatalf("build intent: %v", err)
	}
	return intent
}

// TestPlan_Matrix exercises every combination of position sign and intent
// direction.
func TestPlan_Matrix(t *testing.T) {
	approved := decimal.RequireFromString("0.01")

	tests := []struct {
		name      string
		posQty    string
		direction types.Side
		wantClose bool
		closeDir  types.Side
		closeQty  string
	}{
		{"flat long", "0", types.SideLong, false, types.SideFlat, ""},
		{"flat short", "0", types.SideShort, false, types.SideFlat, ""},
		{"long position long intent", "5", types.SideLong, false, types.SideFlat, ""},
		{"short position short intent", "-5", types.SideShort, false, types.SideFlat, ""},
		{"short position long intent", "-5", types.SideLong, true, types.SideLong, "5"},
		{"long position short intent", "5", types.SideShort, true, types.SideShort, "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := mustIntent(t, tt.direction, types.StyleMarket, "0")
			pos := types.NetPosition{
				Instrument:     "BTCUSDT",
				SignedQuantity: decimal.RequireFromString(tt.posQty),
			}

			plan := Plan(intent, pos, approved)

			if tt.wantClose {
				if len(plan.Actions) != 2 {
					t.Fatalf("len(Actions) = %d, want 2", len(plan.Actions))
				}
				closeAction := plan.Actions[0]
				if closeAction.Kind != types.ActionClose {
					t.Errorf("first action kind = %v, want CLOSE", closeAction.Kind)
				}
				if closeAction.Direction != tt.closeDir {
					t.Errorf("close direction = %v, want %v", closeAction.Direction, tt.closeDir)
				}
				if !closeAction.Quantity.Equal(decimal.RequireFromString(tt.closeQty)) {
					t.Errorf("close quantity = %s, want %s", closeAction.Quantity, tt.closeQty)
				}
				if closeAction.Style != types.StyleMarket {
					t.Errorf("close style = %v, want MARKET", closeAction.Style)
				}
				if !closeAction.ReduceOnly {
					t.Error("close leg must be reduce-only")
				}
			} else if len(plan.Actions) != 1 {
				t.Fatalf("len(Actions) = %d, want 1", len(plan.Actions))
			}

			open := plan.Actions[len(plan.Actions)-1]
			if open.Kind != types.ActionOpen {
				t.Errorf("last action kind = %v, want OPEN", open.Kind)
			}
			if open.Direction != tt.direction {
				t.Errorf("open direction = %v, want %v", open.Direction, tt.direction)
			}
			if !open.Quantity.Equal(approved) {
				t.Errorf("open quantity = %s, want %s (risk-adjusted)", open.Quantity, approved)
			}
			if open.ReduceOnly {
				t.Error("open leg must not be reduce-only")
			}
		})
	}
}

// TestPlan_CloseIgnoresIntentStyle verifies a limit intent still closes an
// opposing position with a market order.
func TestPlan_CloseIgnoresIntentStyle(t *testing.T) {
	intent := mustIntent(t, types.SideLong, types.StyleLimit, "60000")
	pos := types.NetPosition{
		Instrument:     "BTCUSDT",
		SignedQuantity: decimal.RequireFromString("-0.02"),
	}

	plan := Plan(intent, pos, decimal.RequireFromString("0.01"))
	if len(plan.Actions) != 2 {
		t.Fatalf("len(Actions) = %d, want 2", len(plan.Actions))
	}

	if plan.Actions[0].Style != types.StyleMarket {
		t.Errorf("close style = %v, want MARKET", plan.Actions[0].Style)
	}
	if plan.Actions[1].Style != types.StyleLimit {
		t.Errorf("open style = %v, want LIMIT", plan.Actions[1].Style)
	}
	if !plan.Actions[1].LimitPrice.Equal(decimal.RequireFromString("60000")) {
		t.Errorf("open limit price = %s, want 60000", plan.Actions[1].LimitPrice)
	}
}

// TestPlan_UsesAdjustedQuantity verifies the open leg carries the risk
// decision's quantity, never the raw request.
func TestPlan_UsesAdjustedQuantity(t *testing.T) {
	intent := mustIntent(t, types.SideLong, types.StyleMarket, "0")
	adjusted := decimal.RequireFromString("0.005")

	plan := Plan(intent, types.NetPosition{Instrument: "BTCUSDT"}, adjusted)
	open := plan.Actions[0]
	if !open.Quantity.Equal(adjusted) {
		t.Errorf("open quantity = %s, want adjusted %s", open.Quantity, adjusted)
	}
}
