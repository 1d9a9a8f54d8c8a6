package paper

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

func TestGateway_MarketOrderMovesPosition(t *testing.T) {
	g := New(DefaultConfig(), nil)
	ctx := context.Background()

	g.SetPrice("BTCUSDT", decimal.NewFromInt(60000))

	orderID, err := g.SubmitMarketOrder(ctx, "BTCUSDT", types.SideLong, decimal.RequireFromString("0.01"), false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if orderID == "" {
		t.Error("expected a broker order id")
	}

	pos, err := g.NetPosition(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("net position: %v", err)
	}
	if !pos.SignedQuantity.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("position = %s, want 0.01", pos.SignedQuantity)
	}

	// Sell 0.03: flips net short 0.02
	if _, err := g.SubmitMarketOrder(ctx, "BTCUSDT", types.SideShort, decimal.RequireFromString("0.03"), false); err != nil {
		t.Fatalf("submit: %v", err)
	}
	pos, _ = g.NetPosition(ctx, "BTCUSDT")
	if !pos.SignedQuantity.Equal(decimal.RequireFromString("-0.02")) {
		t.Errorf("position = %s, want -0.02", pos.SignedQuantity)
	}
}

func TestGateway_ReduceOnlyCannotIncreaseExposure(t *testing.T) {
	g := New(DefaultConfig(), nil)
	ctx := context.Background()

	g.SetPosition("BTCUSDT", decimal.RequireFromString("-0.02"))

	// Closing the short exactly is fine
	if _, err := g.SubmitMarketOrder(ctx, "BTCUSDT", types.SideLong, decimal.RequireFromString("0.02"), true); err != nil {
		t.Fatalf("reduce-only close failed: %v", err)
	}

	// Now flat: any reduce-only order would increase exposure
	_, err := g.SubmitMarketOrder(ctx, "BTCUSDT", types.SideLong, decimal.RequireFromString("0.01"), true)
	if types.ExecErrorKindOf(err) != types.ExecErrorInvalidQuantity {
		t.Errorf("err = %v, want INVALID_QUANTITY_FOR_INSTRUMENT", err)
	}
}

func TestGateway_ScriptedFailures(t *testing.T) {
	g := New(DefaultConfig(), nil)
	ctx := context.Background()

	scripted := types.NewExecError(types.ExecErrorInsufficientMargin, "paper", "scripted")
	g.FailNextSubmit("BTCUSDT", scripted)

	_, err := g.SubmitMarketOrder(ctx, "BTCUSDT", types.SideLong, decimal.NewFromInt(1), false)
	if types.ExecErrorKindOf(err) != types.ExecErrorInsufficientMargin {
		t.Fatalf("err = %v, want scripted INSUFFICIENT_MARGIN", err)
	}

	// Failure is consumed; the next submission succeeds
	if _, err := g.SubmitMarketOrder(ctx, "BTCUSDT", types.SideLong, decimal.NewFromInt(1), false); err != nil {
		t.Errorf("second submit failed: %v", err)
	}
}

func TestGateway_MissingPriceIsMarketDataUnavailable(t *testing.T) {
	g := New(DefaultConfig(), nil)

	_, err := g.CurrentPrice(context.Background(), "NOPEUSDT")
	if !errors.Is(err, types.ErrMarketDataUnavailable) {
		t.Errorf("err = %v, want ErrMarketDataUnavailable", err)
	}
}

func TestGateway_DefaultRules(t *testing.T) {
	g := New(DefaultConfig(), nil)

	rules, err := g.InstrumentRules(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if !rules.MinNotional.Equal(decimal.NewFromInt(10)) {
		t.Errorf("MinNotional = %s, want 10", rules.MinNotional)
	}
	if rules.QuantityPrecision != 3 {
		t.Errorf("QuantityPrecision = %d, want 3", rules.QuantityPrecision)
	}
}
