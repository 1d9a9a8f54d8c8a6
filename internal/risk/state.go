// Package risk implements account-level risk validation and the state it
// depends on.
package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// PositionKey builds the (broker, instrument) key used for the open
// position registry and for per-instrument serialization.
func PositionKey(broker, instrument string) string {
	return broker + "/" + instrument
}

// OpenPosition is one entry of the open-position registry.
type OpenPosition struct {
	Broker     string
	Instrument string
	Direction  types.Side
	Quantity   decimal.Decimal
	OpenedAt   time.Time
}

// Snapshot is a point-in-time copy of the account risk state, taken once
// per intent so a pipeline run sees consistent numbers.
type Snapshot struct {
	Balance         decimal.Decimal
	PeakBalance     decimal.Decimal
	DailyLoss       decimal.Decimal
	DrawdownPercent decimal.Decimal
	OpenPositions   int
}

// State holds the process-lifetime risk state: running balance, peak
// balance for drawdown tracking, daily loss, and the open-position
// registry. Mutated only by the orchestrator after confirmed fills.
// Thread-safe for concurrent access.
type State struct {
	mu sync.RWMutex

	dayStartBalance decimal.Decimal
	currentBalance  decimal.Decimal
	peakBalance     decimal.Decimal
	positions       map[string]OpenPosition
}

// NewState creates risk state seeded with the starting balance.
func NewState(initialBalance decimal.Decimal) *State {
	return &State{
		dayStartBalance: initialBalance,
		currentBalance:  initialBalance,
		peakBalance:     initialBalance,
		positions:       make(map[string]OpenPosition),
	}
}

// UpdateBalance records a fresh balance reading and adjusts the peak.
// Returns true if a new peak was set.
func (s *State) UpdateBalance(balance decimal.Decimal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentBalance = balance

	if balance.GreaterThan(s.peakBalance) {
		s.peakBalance = balance
		return true
	}
	return false
}

// ResetDaily starts a new trading day: the daily-loss baseline becomes the
// current balance.
func (s *State) ResetDaily() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayStartBalance = s.currentBalance
}

// DrawdownPercent returns (peak - current) / peak * 100.
func (s *State) DrawdownPercent() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return drawdownPercent(s.peakBalance, s.currentBalance)
}

func drawdownPercent(peak, current decimal.Decimal) decimal.Decimal {
	if peak.IsZero() || current.GreaterThanOrEqual(peak) {
		return decimal.Zero
	}
	return peak.Sub(current).Div(peak).Mul(decimal.NewFromInt(100))
}

// Snapshot returns a consistent copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Balance:         s.currentBalance,
		PeakBalance:     s.peakBalance,
		DailyLoss:       s.dayStartBalance.Sub(s.currentBalance),
		DrawdownPercent: drawdownPercent(s.peakBalance, s.currentBalance),
		OpenPositions:   len(s.positions),
	}
}

// HasPosition reports whether the registry holds a position for the key.
func (s *State) HasPosition(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.positions[key]
	return ok
}

// SetPosition records or replaces an open position.
func (s *State) SetPosition(pos OpenPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[PositionKey(pos.Broker, pos.Instrument)] = pos
}

// ClearPosition removes an open position from the registry.
func (s *State) ClearPosition(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, key)
}

// Positions returns a copy of the open-position registry.
func (s *State) Positions() []OpenPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OpenPosition, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos)
	}
	return out
}

// Restore replaces the state wholesale, for recovery at startup.
func (s *State) Restore(dayStart, current, peak decimal.Decimal, positions []OpenPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dayStartBalance = dayStart
	s.currentBalance = current
	s.peakBalance = peak
	s.positions = make(map[string]OpenPosition, len(positions))
	for _, pos := range positions {
		s.positions[PositionKey(pos.Broker, pos.Instrument)] = pos
	}
}
