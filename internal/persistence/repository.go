// Package persistence stores the bridge state needed for startup recovery.
package persistence

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/signal-bridge/internal/risk"
)

// Repository defines the interface for state persistence.
type Repository interface {
	// Position operations
	SavePosition(ctx context.Context, pos risk.OpenPosition) error
	DeletePosition(ctx context.Context, broker, instrument string) error
	GetOpenPositions(ctx context.Context) ([]risk.OpenPosition, error)

	// Risk state operations
	SaveRiskState(ctx context.Context, state RiskState) error
	GetRiskState(ctx context.Context) (RiskState, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// RiskState is the persisted risk-tracking state, restored at startup.
type RiskState struct {
	LastUpdated     time.Time
	DayStartBalance decimal.Decimal
	CurrentBalance  decimal.Decimal
	PeakBalance     decimal.Decimal
}
