package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PriceStore caches day-ahead prices in PostgreSQL so repeated runs over the
// same date range do not hit the ENTSO-E API again. Prices are keyed by
// local day and step index at the configured resolution.
type PriceStore struct {
	db *sql.DB
}

// NewPriceStore opens a connection and ensures the cache table exists.
func NewPriceStore(ctx context.Context, connString string) (*PriceStore, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open price store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach price store: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS day_ahead_prices (
			day   DATE             NOT NULL,
			step  INT              NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (day, step)
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create price table: %w", err)
	}

	return &PriceStore{db: db}, nil
}

// Close releases the database connection.
func (ps *PriceStore) Close() error {
	return ps.db.Close()
}

// Save upserts a full day of step prices in one transaction.
func (ps *PriceStore) Save(ctx context.Context, day time.Time, prices []float64) error {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin price save: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO day_ahead_prices (day, step, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (day, step) DO UPDATE SET price = EXCLUDED.price`)
	if err != nil {
		return fmt.Errorf("failed to prepare price save: %w", err)
	}
	defer stmt.Close()

	dayStr := day.Format("2006-01-02")
	for step, price := range prices {
		if _, err := stmt.ExecContext(ctx, dayStr, step, price); err != nil {
			return fmt.Errorf("failed to save price for %s step %d: %w", dayStr, step, err)
		}
	}
	return tx.Commit()
}

// Load returns the cached prices for a day. The second return value is true
// only when all T steps are present; partial days count as a miss.
func (ps *PriceStore) Load(ctx context.Context, day time.Time, T int) ([]float64, bool, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT step, price FROM day_ahead_prices
		WHERE day = $1 ORDER BY step`,
		day.Format("2006-01-02"))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load prices: %w", err)
	}
	defer rows.Close()

	prices := make([]float64, T)
	count := 0
	for rows.Next() {
		var step int
		var price float64
		if err := rows.Scan(&step, &price); err != nil {
			return nil, false, fmt.Errorf("failed to scan price row: %w", err)
		}
		if step < 0 || step >= T {
			continue
		}
		prices[step] = price
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate price rows: %w", err)
	}
	return prices, count == T, nil
}
