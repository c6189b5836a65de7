package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/XinwuC/finance/internal/models"
)

// DatabasePool defines the pool operations the repository needs. It allows
// both the real pgx pool and mock pool implementations.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PriceHistoryRepository handles persistence of per-symbol daily price
// history, open positions and emitted signals.
type PriceHistoryRepository struct {
	pool DatabasePool
}

// NewPriceHistoryRepository creates a repository over the given pool.
func NewPriceHistoryRepository(pool DatabasePool) *PriceHistoryRepository {
	return &PriceHistoryRepository{pool: pool}
}

// GetPriceHistory loads the stored daily series for a symbol in ascending
// date order, optionally bounded at the given date.
func (r *PriceHistoryRepository) GetPriceHistory(ctx context.Context, symbol string, until *time.Time) ([]models.PricePoint, error) {
	query := `
		SELECT date, open, high, low, close, volume
		FROM price_history
		WHERE symbol = $1`
	args := []interface{}{symbol}
	if until != nil {
		query += ` AND date <= $2`
		args = append(args, *until)
	}
	query += ` ORDER BY date ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history for %s: %w", symbol, err)
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		p := models.PricePoint{Symbol: symbol}
		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price row for %s: %w", symbol, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read price history for %s: %w", symbol, err)
	}
	return points, nil
}

// UpsertPricePoints stores daily rows, ignoring conflicts on (symbol, date)
// so re-fetched partial days never overwrite the first stored row. This
// matches the keep-first tie-break the calibrator applies in memory.
func (r *PriceHistoryRepository) UpsertPricePoints(ctx context.Context, symbol string, points []models.PricePoint) error {
	query := `
		INSERT INTO price_history (symbol, date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, date) DO NOTHING`
	for _, p := range points {
		if _, err := r.pool.Exec(ctx, query,
			symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume); err != nil {
			return fmt.Errorf("failed to insert price point for %s on %s: %w",
				symbol, p.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}

// ListSymbols returns all symbols with stored history.
func (r *PriceHistoryRepository) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT symbol FROM price_history ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// SaveSignal persists an emitted overreaction signal.
func (r *PriceHistoryRepository) SaveSignal(ctx context.Context, signal *models.OverreactSignal) error {
	query := `
		INSERT INTO overreact_signals (
			id, symbol, date, buying_price, target_price, drop_pct,
			top_drop_count, drop_count, top_drop_ratio,
			hit_targets, hit_target_ratio, hit_max_fallback, max_fallback_ratio,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.pool.Exec(ctx, query,
		signal.ID, signal.Symbol, signal.Date,
		signal.BuyingPrice, signal.TargetPrice, signal.DropPct,
		signal.TopDropCount, signal.DropCount, signal.TopDropRatio,
		signal.HitTargetCount, signal.HitTargetRatio,
		signal.MaxFallbackCount, signal.MaxFallbackRatio,
		signal.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save signal for %s: %w", signal.Symbol, err)
	}
	return nil
}

// ListPositions returns the open positions whose sell prices are tracked.
func (r *PriceHistoryRepository) ListPositions(ctx context.Context) ([]models.Position, error) {
	rows, err := r.pool.Query(ctx, `SELECT symbol, shares, cost_basis FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.Symbol, &p.Shares, &p.CostBasis); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
