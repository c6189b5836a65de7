package database

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XinwuC/finance/internal/models"
)

func TestPriceHistoryRepository_GetPriceHistory(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewPriceHistoryRepository(mockPool)

	day1 := time.Date(2017, time.March, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	mockPool.ExpectQuery("SELECT date, open, high, low, close, volume").
		WithArgs("AAPL").
		WillReturnRows(pgxmock.NewRows([]string{"date", "open", "high", "low", "close", "volume"}).
			AddRow(day1, decimal.NewFromFloat(140.0), decimal.NewFromFloat(142.5),
				decimal.NewFromFloat(139.1), decimal.NewFromFloat(141.8), int64(120000)).
			AddRow(day2, decimal.NewFromFloat(141.8), decimal.NewFromFloat(143.0),
				decimal.NewFromFloat(140.2), decimal.NewFromFloat(142.1), int64(98000)))

	points, err := repo.GetPriceHistory(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "AAPL", points[0].Symbol)
	assert.Equal(t, day1, points[0].Date)
	assert.True(t, points[0].Close.Equal(decimal.NewFromFloat(141.8)))
	assert.Equal(t, int64(98000), points[1].Volume)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPriceHistoryRepository_GetPriceHistory_BoundedByDate(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewPriceHistoryRepository(mockPool)
	until := time.Date(2017, time.March, 15, 0, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery("SELECT date, open, high, low, close, volume").
		WithArgs("AAPL", until).
		WillReturnRows(pgxmock.NewRows([]string{"date", "open", "high", "low", "close", "volume"}))

	points, err := repo.GetPriceHistory(context.Background(), "AAPL", &until)
	require.NoError(t, err)
	assert.Empty(t, points)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPriceHistoryRepository_UpsertPricePoints(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewPriceHistoryRepository(mockPool)

	day := time.Date(2017, time.March, 1, 0, 0, 0, 0, time.UTC)
	point := models.PricePoint{
		Date:   day,
		Open:   decimal.NewFromFloat(10),
		High:   decimal.NewFromFloat(11),
		Low:    decimal.NewFromFloat(9.8),
		Close:  decimal.NewFromFloat(10.4),
		Volume: 5000,
	}

	mockPool.ExpectExec("INSERT INTO price_history").
		WithArgs("AAPL", day, point.Open, point.High, point.Low, point.Close, int64(5000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.UpsertPricePoints(context.Background(), "AAPL", []models.PricePoint{point})
	require.NoError(t, err)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPriceHistoryRepository_ListSymbols(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewPriceHistoryRepository(mockPool)

	mockPool.ExpectQuery("SELECT DISTINCT symbol FROM price_history").
		WillReturnRows(pgxmock.NewRows([]string{"symbol"}).AddRow("AAPL").AddRow("MSFT"))

	symbols, err := repo.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPriceHistoryRepository_SaveSignal(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewPriceHistoryRepository(mockPool)

	signal := &models.OverreactSignal{
		ID:               "a4c04a1e-0000-0000-0000-000000000000",
		Symbol:           "AAPL",
		Date:             time.Date(2017, time.March, 1, 0, 0, 0, 0, time.UTC),
		BuyingPrice:      decimal.NewFromInt(90),
		TargetPrice:      decimal.NewFromFloat(94.5),
		DropPct:          decimal.NewFromFloat(-0.1),
		TopDropCount:     11,
		DropCount:        231,
		TopDropRatio:     decimal.NewFromFloat(0.0476),
		HitTargetCount:   10,
		HitTargetRatio:   decimal.NewFromFloat(0.909),
		MaxFallbackCount: 0,
		MaxFallbackRatio: decimal.Zero,
		CreatedAt:        time.Now().UTC(),
	}

	mockPool.ExpectExec("INSERT INTO overreact_signals").
		WithArgs(signal.ID, signal.Symbol, signal.Date,
			signal.BuyingPrice, signal.TargetPrice, signal.DropPct,
			signal.TopDropCount, signal.DropCount, signal.TopDropRatio,
			signal.HitTargetCount, signal.HitTargetRatio,
			signal.MaxFallbackCount, signal.MaxFallbackRatio,
			signal.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.SaveSignal(context.Background(), signal)
	require.NoError(t, err)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPriceHistoryRepository_ListPositions(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewPriceHistoryRepository(mockPool)

	mockPool.ExpectQuery("SELECT symbol, shares, cost_basis FROM positions").
		WillReturnRows(pgxmock.NewRows([]string{"symbol", "shares", "cost_basis"}).
			AddRow("AAPL", int64(20), decimal.NewFromFloat(135.5)))

	positions, err := repo.ListPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, int64(20), positions[0].Shares)
	assert.True(t, positions[0].CostBasis.Equal(decimal.NewFromFloat(135.5)))

	assert.NoError(t, mockPool.ExpectationsWereMet())
}
