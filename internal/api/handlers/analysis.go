package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/XinwuC/finance/internal/config"
	"github.com/XinwuC/finance/internal/models"
	"github.com/XinwuC/finance/internal/strategy"
)

// Scanner runs the configured buy strategies over many symbols.
type Scanner interface {
	Scan(ctx context.Context, symbols []string, targetDate *time.Time) ([]models.OverreactSignal, error)
}

// Advisor computes sell-price recommendations for open positions.
type Advisor interface {
	Recommendations(ctx context.Context, targetDate *time.Time) ([]models.SellPriceRecommendation, error)
}

// HistoryStore loads stored price history for single-symbol endpoints.
type HistoryStore interface {
	GetPriceHistory(ctx context.Context, symbol string, until *time.Time) ([]models.PricePoint, error)
}

// AnalysisHandler exposes the analytical engine over HTTP.
type AnalysisHandler struct {
	logger   *logrus.Logger
	store    HistoryStore
	scanner  Scanner
	advisor  Advisor
	detector *strategy.OverreactDetector
	pricer   *strategy.ProfitLockPricer
}

// NewAnalysisHandler builds the handler and its per-request strategy
// instances from configuration.
func NewAnalysisHandler(cfg *config.Config, logger *logrus.Logger, store HistoryStore, scanner Scanner, advisor Advisor) *AnalysisHandler {
	return &AnalysisHandler{
		logger:   logger,
		store:    store,
		scanner:  scanner,
		advisor:  advisor,
		detector: strategy.NewOverreactDetector(cfg.Strategy.Overreact, logger),
		pricer:   strategy.NewProfitLockPricer(cfg.Strategy.ProfitLock, logger),
	}
}

// SellPriceResponse is the payload for the sell-price endpoint.
type SellPriceResponse struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// ScanRequest bounds a batch scan to specific symbols and a date.
type ScanRequest struct {
	Symbols []string `json:"symbols"`
	Date    string   `json:"date"`
}

// ScanResponse is the payload for the batch scan endpoint.
type ScanResponse struct {
	Signals   []models.OverreactSignal `json:"signals"`
	Total     int                      `json:"total"`
	Timestamp time.Time                `json:"timestamp"`
}

// RecommendationsResponse is the payload for the positions endpoint.
type RecommendationsResponse struct {
	Data      []models.SellPriceRecommendation `json:"data"`
	Total     int                              `json:"total"`
	Timestamp time.Time                        `json:"timestamp"`
}

// GetOverreactSignal analyzes one symbol for an overreaction buy signal.
// Responds 204 when the day does not qualify.
func (h *AnalysisHandler) GetOverreactSignal(c *gin.Context) {
	symbol := c.Param("symbol")
	targetDate, ok := h.parseDate(c)
	if !ok {
		return
	}

	history, err := h.store.GetPriceHistory(c.Request.Context(), symbol, targetDate)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to load price history for %s", symbol)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load price history"})
		return
	}
	if len(history) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no price history for symbol"})
		return
	}

	signal, err := h.detector.Analyze(symbol, history, targetDate)
	if err != nil {
		if errors.Is(err, models.ErrInvalidPricePoint) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}
	if signal == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, signal)
}

// GetSellPrice computes the profit-lock sell price for one symbol. With a
// cost_basis query parameter the profitability floor applies and a zero
// price means "do not lock yet".
func (h *AnalysisHandler) GetSellPrice(c *gin.Context) {
	symbol := c.Param("symbol")
	targetDate, ok := h.parseDate(c)
	if !ok {
		return
	}

	history, err := h.store.GetPriceHistory(c.Request.Context(), symbol, targetDate)
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to load price history for %s", symbol)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load price history"})
		return
	}
	if len(history) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no price history for symbol"})
		return
	}

	var price decimal.Decimal
	if raw := c.Query("cost_basis"); raw != "" {
		costBasis, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cost_basis"})
			return
		}
		price, err = h.pricer.SellPriceForPosition(costBasis, history, targetDate)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	} else {
		price, err = h.pricer.SellPrice(history, targetDate)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, SellPriceResponse{
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
	})
}

// ScanSymbols runs all configured strategies across symbols.
func (h *AnalysisHandler) ScanSymbols(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var targetDate *time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		targetDate = &parsed
	}

	signals, err := h.scanner.Scan(c.Request.Context(), req.Symbols, targetDate)
	if err != nil {
		h.logger.WithError(err).Error("Batch scan failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		return
	}

	c.JSON(http.StatusOK, ScanResponse{
		Signals:   signals,
		Total:     len(signals),
		Timestamp: time.Now(),
	})
}

// GetSellRecommendations returns new profit-lock prices for open positions.
func (h *AnalysisHandler) GetSellRecommendations(c *gin.Context) {
	targetDate, ok := h.parseDate(c)
	if !ok {
		return
	}

	recs, err := h.advisor.Recommendations(c.Request.Context(), targetDate)
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute sell recommendations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute recommendations"})
		return
	}

	c.JSON(http.StatusOK, RecommendationsResponse{
		Data:      recs,
		Total:     len(recs),
		Timestamp: time.Now(),
	})
}

// parseDate reads the optional date query parameter. On a malformed date it
// writes a 400 response and reports !ok.
func (h *AnalysisHandler) parseDate(c *gin.Context) (*time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return nil, false
	}
	return &parsed, true
}
