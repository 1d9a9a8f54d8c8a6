package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/signal-bridge/internal/risk"
	"github.com/tathienbao/signal-bridge/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path and runs migrations.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}

	if err := repo.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return repo, nil
}

// Migrate runs database migrations.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS open_positions (
			broker TEXT NOT NULL,
			instrument TEXT NOT NULL,
			direction TEXT NOT NULL,
			quantity TEXT NOT NULL,
			opened_at DATETIME NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (broker, instrument)
		)`,

		`CREATE TABLE IF NOT EXISTS risk_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_updated DATETIME NOT NULL,
			day_start_balance TEXT NOT NULL,
			current_balance TEXT NOT NULL,
			peak_balance TEXT NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// SavePosition inserts or replaces an open-position row.
func (r *SQLiteRepository) SavePosition(ctx context.Context, pos risk.OpenPosition) error {
	query := `INSERT INTO open_positions (broker, instrument, direction, quantity, opened_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(broker, instrument) DO UPDATE SET
			direction = excluded.direction,
			quantity = excluded.quantity,
			opened_at = excluded.opened_at,
			updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, query,
		pos.Broker,
		pos.Instrument,
		pos.Direction.String(),
		pos.Quantity.String(),
		pos.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}

	return nil
}

// DeletePosition removes an open-position row. Deleting a missing row is not
// an error; the registry and the table converge either way.
func (r *SQLiteRepository) DeletePosition(ctx context.Context, broker, instrument string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM open_positions WHERE broker = ? AND instrument = ?`,
		broker, instrument,
	)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}

	return nil
}

// GetOpenPositions returns all persisted open positions.
func (r *SQLiteRepository) GetOpenPositions(ctx context.Context) ([]risk.OpenPosition, error) {
	query := `SELECT broker, instrument, direction, quantity, opened_at
		FROM open_positions ORDER BY broker, instrument`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var positions []risk.OpenPosition
	for rows.Next() {
		var pos risk.OpenPosition
		var direction, quantity string

		if err := rows.Scan(&pos.Broker, &pos.Instrument, &direction, &quantity, &pos.OpenedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}

		pos.Direction, err = parseSide(direction)
		if err != nil {
			return nil, fmt.Errorf("position %s/%s: %w", pos.Broker, pos.Instrument, err)
		}
		pos.Quantity, err = decimal.NewFromString(quantity)
		if err != nil {
			return nil, fmt.Errorf("position %s/%s: parse quantity: %w", pos.Broker, pos.Instrument, err)
		}

		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}

	return positions, nil
}

// SaveRiskState upserts the single risk-state row.
func (r *SQLiteRepository) SaveRiskState(ctx context.Context, state RiskState) error {
	query := `INSERT INTO risk_state (id, last_updated, day_start_balance, current_balance, peak_balance)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_updated = excluded.last_updated,
			day_start_balance = excluded.day_start_balance,
			current_balance = excluded.current_balance,
			peak_balance = excluded.peak_balance`

	lastUpdated := state.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		lastUpdated,
		state.DayStartBalance.String(),
		state.CurrentBalance.String(),
		state.PeakBalance.String(),
	)
	if err != nil {
		return fmt.Errorf("save risk state: %w", err)
	}

	return nil
}

// GetRiskState returns the persisted risk state, or ErrStateNotFound when no
// snapshot has been written yet.
func (r *SQLiteRepository) GetRiskState(ctx context.Context) (RiskState, error) {
	query := `SELECT last_updated, day_start_balance, current_balance, peak_balance
		FROM risk_state WHERE id = 1`

	var state RiskState
	var dayStart, current, peak string

	err := r.db.QueryRowContext(ctx, query).Scan(&state.LastUpdated, &dayStart, &current, &peak)
	if errors.Is(err, sql.ErrNoRows) {
		return RiskState{}, types.ErrStateNotFound
	}
	if err != nil {
		return RiskState{}, fmt.Errorf("query risk state: %w", err)
	}

	if state.DayStartBalance, err = decimal.NewFromString(dayStart); err != nil {
		return RiskState{}, fmt.Errorf("parse day start balance: %w", err)
	}
	if state.CurrentBalance, err = decimal.NewFromString(current); err != nil {
		return RiskState{}, fmt.Errorf("parse current balance: %w", err)
	}
	if state.PeakBalance, err = decimal.NewFromString(peak); err != nil {
		return RiskState{}, fmt.Errorf("parse peak balance: %w", err)
	}

	return state, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func parseSide(s string) (types.Side, error) {
	switch s {
	case types.SideLong.String():
		return types.SideLong, nil
	case types.SideShort.String():
		return types.SideShort, nil
	case types.SideFlat.String():
		return types.SideFlat, nil
	default:
		return types.SideFlat, fmt.Errorf("unknown side %q", s)
	}
}
