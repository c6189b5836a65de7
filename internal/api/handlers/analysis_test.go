package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XinwuC/finance/internal/config"
	"github.com/XinwuC/finance/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() *config.Config {
	return &config.Config{
		Strategy: config.StrategyConfig{
			List: []string{"overreact"},
			Overreact: config.OverreactConfig{
				TopDropPct:         0.05,
				TargetRecoverRate:  0.05,
				RecoverDays:        5,
				RecoverSuccessRate: 0.9,
			},
			ProfitLock: config.ProfitLockConfig{MinimalProfit: 0.05},
		},
	}
}

type fakeHistoryStore struct {
	histories map[string][]models.PricePoint
	err       error
}

func (f *fakeHistoryStore) GetPriceHistory(_ context.Context, symbol string, _ *time.Time) ([]models.PricePoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.histories[symbol], nil
}

type fakeScanner struct {
	signals []models.OverreactSignal
	err     error
	symbols []string
}

func (f *fakeScanner) Scan(_ context.Context, symbols []string, _ *time.Time) ([]models.OverreactSignal, error) {
	f.symbols = symbols
	return f.signals, f.err
}

type fakeAdvisor struct {
	recs []models.SellPriceRecommendation
	err  error
}

func (f *fakeAdvisor) Recommendations(context.Context, *time.Time) ([]models.SellPriceRecommendation, error) {
	return f.recs, f.err
}

func newTestRouter(store HistoryStore, scanner Scanner, advisor Advisor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewAnalysisHandler(testConfig(), testLogger(), store, scanner, advisor)
	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		v1.GET("/analysis/overreact/:symbol", handler.GetOverreactSignal)
		v1.GET("/analysis/sell-price/:symbol", handler.GetSellPrice)
		v1.POST("/analysis/scan", handler.ScanSymbols)
		v1.GET("/positions/recommendations", handler.GetSellRecommendations)
	}
	return router
}

// overreactFixture builds a history whose last day emits a buy signal under
// the default configuration.
func overreactFixture() []models.PricePoint {
	day := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	var points []models.PricePoint
	add := func(close float64, volume int64) {
		c := decimal.NewFromFloat(close)
		points = append(points, models.PricePoint{
			Date: day, Open: c, High: c, Low: c, Close: c, Volume: volume,
		})
		day = day.AddDate(0, 0, 1)
	}
	add(100, 10000)
	for i := 0; i < 10; i++ {
		add(90, 10000)
		add(100, 10000)
	}
	for i := 0; i < 220; i++ {
		add(99, 10000)
		add(100, 10000)
	}
	add(90, 500000)
	return points
}

func rangeFixture(n int) []models.PricePoint {
	day := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	var points []models.PricePoint
	for i := 0; i < n; i++ {
		points = append(points, models.PricePoint{
			Date:   day,
			Open:   decimal.NewFromInt(100),
			High:   decimal.NewFromInt(101),
			Low:    decimal.NewFromInt(100),
			Close:  decimal.NewFromInt(100),
			Volume: 10000,
		})
		day = day.AddDate(0, 0, 1)
	}
	return points
}

func TestGetOverreactSignal(t *testing.T) {
	store := &fakeHistoryStore{histories: map[string][]models.PricePoint{
		"AAPL": overreactFixture(),
		"MSFT": rangeFixture(30),
	}}
	router := newTestRouter(store, &fakeScanner{}, &fakeAdvisor{})

	t.Run("signal emitted", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/overreact/AAPL", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var signal models.OverreactSignal
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signal))
		assert.Equal(t, "AAPL", signal.Symbol)
		assert.True(t, signal.BuyingPrice.Equal(decimal.NewFromInt(90)))
	})

	t.Run("no signal", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/overreact/MSFT", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/overreact/NOPE", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed date", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/overreact/AAPL?date=bogus", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		broken := &fakeHistoryStore{err: errors.New("connection refused")}
		router := newTestRouter(broken, &fakeScanner{}, &fakeAdvisor{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/overreact/AAPL", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestGetOverreactSignal_CorruptHistory(t *testing.T) {
	corrupt := overreactFixture()
	corrupt[3].Close = decimal.NewFromInt(-1)
	corrupt[3].Low = decimal.NewFromInt(-1)
	store := &fakeHistoryStore{histories: map[string][]models.PricePoint{"BAD": corrupt}}
	router := newTestRouter(store, &fakeScanner{}, &fakeAdvisor{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/overreact/BAD", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetSellPrice(t *testing.T) {
	store := &fakeHistoryStore{histories: map[string][]models.PricePoint{
		"AAPL": rangeFixture(30),
	}}
	router := newTestRouter(store, &fakeScanner{}, &fakeAdvisor{})

	t.Run("plain price", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/sell-price/AAPL", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp SellPriceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "AAPL", resp.Symbol)
		assert.True(t, resp.Price.Equal(decimal.NewFromInt(99)))
	})

	t.Run("cost basis below floor", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/sell-price/AAPL?cost_basis=90", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp SellPriceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Price.Equal(decimal.NewFromInt(99)))
	})

	t.Run("cost basis above floor yields zero", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/sell-price/AAPL?cost_basis=95", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp SellPriceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Price.IsZero())
	})

	t.Run("invalid cost basis", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/sell-price/AAPL?cost_basis=abc", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/sell-price/NOPE", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("corrupt history", func(t *testing.T) {
		corrupt := rangeFixture(10)
		corrupt[5].Low = decimal.Zero
		router := newTestRouter(&fakeHistoryStore{
			histories: map[string][]models.PricePoint{"BAD": corrupt},
		}, &fakeScanner{}, &fakeAdvisor{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/sell-price/BAD", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestScanSymbols(t *testing.T) {
	t.Run("returns scanner signals", func(t *testing.T) {
		scanner := &fakeScanner{signals: []models.OverreactSignal{
			{Symbol: "AAPL", BuyingPrice: decimal.NewFromInt(90)},
		}}
		router := newTestRouter(&fakeHistoryStore{}, scanner, &fakeAdvisor{})

		w := httptest.NewRecorder()
		body := strings.NewReader(`{"symbols":["AAPL","MSFT"],"date":"2020-03-16"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/scan", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp ScanResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, []string{"AAPL", "MSFT"}, scanner.symbols)
	})

	t.Run("invalid body", func(t *testing.T) {
		router := newTestRouter(&fakeHistoryStore{}, &fakeScanner{}, &fakeAdvisor{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/scan", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid date", func(t *testing.T) {
		router := newTestRouter(&fakeHistoryStore{}, &fakeScanner{}, &fakeAdvisor{})

		w := httptest.NewRecorder()
		body := strings.NewReader(`{"symbols":[],"date":"03/16/2020"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/scan", body)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("scanner failure", func(t *testing.T) {
		scanner := &fakeScanner{err: errors.New("connection refused")}
		router := newTestRouter(&fakeHistoryStore{}, scanner, &fakeAdvisor{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/scan", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestGetSellRecommendations(t *testing.T) {
	t.Run("returns advisor output", func(t *testing.T) {
		advisor := &fakeAdvisor{recs: []models.SellPriceRecommendation{
			{Symbol: "AAPL", Price: decimal.NewFromInt(99)},
		}}
		router := newTestRouter(&fakeHistoryStore{}, &fakeScanner{}, advisor)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/recommendations", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp RecommendationsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Total)
		assert.Equal(t, "AAPL", resp.Data[0].Symbol)
	})

	t.Run("advisor failure", func(t *testing.T) {
		advisor := &fakeAdvisor{err: errors.New("connection refused")}
		router := newTestRouter(&fakeHistoryStore{}, &fakeScanner{}, advisor)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/recommendations", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
