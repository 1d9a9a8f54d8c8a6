// Package paper provides a simulated in-memory gateway for dry-run mode
// and tests.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// Config holds paper gateway settings.
type Config struct {
	Balance decimal.Decimal
	// SubmitDelay is applied inside every order submission while holding no
	// internal lock, so tests can widen race windows deliberately.
	SubmitDelay time.Duration
}

// DefaultConfig returns defaults for dry-run trading.
func DefaultConfig() Config {
	return Config{Balance: decimal.NewFromInt(10000)}
}

// Gateway implements gateway.Gateway against in-memory state.
// Orders always fill immediately at the configured price unless a failure
// has been scripted for the instrument.
type Gateway struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	balance   decimal.Decimal
	prices    map[string]decimal.Decimal
	rules     map[string]types.InstrumentRules
	positions map[string]decimal.Decimal

	// scripted failures, consumed per submission
	failures map[string][]error

	nextOrderID atomic.Int64
}

// New creates a paper gateway.
func New(cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Balance.IsZero() {
		cfg.Balance = DefaultConfig().Balance
	}

	g := &Gateway{
		cfg:       cfg,
		logger:    logger,
		balance:   cfg.Balance,
		prices:    make(map[string]decimal.Decimal),
		rules:     make(map[string]types.InstrumentRules),
		positions: make(map[string]decimal.Decimal),
		failures:  make(map[string][]error),
	}
	g.nextOrderID.Store(1)
	return g
}

// Name identifies the broker.
func (g *Gateway) Name() string { return "paper" }

// SetPrice sets the simulated price for an instrument.
func (g *Gateway) SetPrice(instrument string, price decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[instrument] = price
}

// SetRules sets the simulated trading rules for an instrument.
func (g *Gateway) SetRules(instrument string, rules types.InstrumentRules) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules[instrument] = rules
}

// SetPosition seeds the simulated net position.
func (g *Gateway) SetPosition(instrument string, signedQty decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.positions[instrument] = signedQty
}

// FailNextSubmit scripts the next order submission for the instrument to
// fail with err. Multiple calls queue up; a nil err lets that submission
// through, so failures can be scripted for later orders only.
func (g *Gateway) FailNextSubmit(instrument string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[instrument] = append(g.failures[instrument], err)
}

// CurrentPrice returns the simulated price.
func (g *Gateway) CurrentPrice(ctx context.Context, instrument string) (decimal.Decimal, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	price, ok := g.prices[instrument]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", types.ErrMarketDataUnavailable, instrument)
	}
	return price, nil
}

// InstrumentRules returns the simulated rules, defaulting to permissive
// crypto-futures filters when none were seeded.
func (g *Gateway) InstrumentRules(ctx context.Context, instrument string) (types.InstrumentRules, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if rules, ok := g.rules[instrument]; ok {
		return rules, nil
	}
	return types.InstrumentRules{
		MinNotional:       decimal.NewFromInt(10),
		QuantityStep:      decimal.RequireFromString("0.001"),
		QuantityPrecision: 3,
		PricePrecision:    2,
	}, nil
}

// NetPosition returns the simulated signed position.
func (g *Gateway) NetPosition(ctx context.Context, instrument string) (types.NetPosition, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return types.NetPosition{
		Instrument:     instrument,
		SignedQuantity: g.positions[instrument],
	}, nil
}

// AccountBalance returns the simulated balance.
func (g *Gateway) AccountBalance(ctx context.Context) (decimal.Decimal, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.balance, nil
}

// SubmitMarketOrder fills immediately against the simulated book.
func (g *Gateway) SubmitMarketOrder(ctx context.Context, instrument string, side types.Side, qty decimal.Decimal, reduceOnly bool) (string, error) {
	return g.submit(ctx, instrument, side, qty, reduceOnly)
}

// SubmitLimitOrder fills immediately; the paper book has infinite depth at
// every price.
func (g *Gateway) SubmitLimitOrder(ctx context.Context, instrument string, side types.Side, qty, price decimal.Decimal, reduceOnly bool) (string, error) {
	return g.submit(ctx, instrument, side, qty, reduceOnly)
}

func (g *Gateway) submit(ctx context.Context, instrument string, side types.Side, qty decimal.Decimal, reduceOnly bool) (string, error) {
	if g.cfg.SubmitDelay > 0 {
		select {
		case <-time.After(g.cfg.SubmitDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if queue := g.failures[instrument]; len(queue) > 0 {
		err := queue[0]
		g.failures[instrument] = queue[1:]
		if err != nil {
			return "", err
		}
	}

	signed := qty
	if side == types.SideShort {
		signed = qty.Neg()
	}
	current := g.positions[instrument]
	next := current.Add(signed)

	if reduceOnly && next.Abs().GreaterThan(current.Abs()) {
		return "", types.NewExecError(types.ExecErrorInvalidQuantity, g.Name(),
			"reduce-only order would increase exposure")
	}

	g.positions[instrument] = next

	orderID := fmt.Sprintf("paper-%d", g.nextOrderID.Add(1))
	g.logger.Info("paper order filled",
		"order_id", orderID,
		"instrument", instrument,
		"side", side,
		"qty", qty,
		"net_position", next,
	)
	return orderID, nil
}

// CancelOrder is a no-op; paper orders fill instantly.
func (g *Gateway) CancelOrder(ctx context.Context, instrument, orderID string) error {
	return nil
}
