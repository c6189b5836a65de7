package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XinwuC/finance/internal/config"
	"github.com/XinwuC/finance/internal/models"
	"github.com/XinwuC/finance/internal/strategy"
)

// SellAdvisor computes trailing profit-lock sell prices for the stored open
// positions. A stop is only surfaced when it is strictly higher than the
// previously recommended one, so the trailing stop never moves down.
type SellAdvisor struct {
	logger *logrus.Logger
	store  PriceHistoryStore
	cache  ResultCache
	pricer *strategy.ProfitLockPricer
}

// NewSellAdvisor builds the advisor with a pricer from configuration.
func NewSellAdvisor(cfg *config.Config, logger *logrus.Logger, store PriceHistoryStore, cache ResultCache) *SellAdvisor {
	return &SellAdvisor{
		logger: logger,
		store:  store,
		cache:  cache,
		pricer: strategy.NewProfitLockPricer(cfg.Strategy.ProfitLock, logger),
	}
}

// Recommendations evaluates every open position for the target date. Symbols
// whose history is corrupt are logged and skipped; positions not yet past
// the profit floor, or whose new price does not beat the cached previous
// recommendation, produce no entry.
func (a *SellAdvisor) Recommendations(ctx context.Context, targetDate *time.Time) ([]models.SellPriceRecommendation, error) {
	positions, err := a.store.ListPositions(ctx)
	if err != nil {
		return nil, err
	}

	var recs []models.SellPriceRecommendation
	for _, pos := range positions {
		history, err := a.store.GetPriceHistory(ctx, pos.Symbol, targetDate)
		if err != nil {
			a.logger.WithError(err).Errorf("Failed to load price history for %s", pos.Symbol)
			continue
		}
		price, err := a.pricer.SellPriceForPosition(pos.CostBasis, history, targetDate)
		if err != nil {
			a.logger.WithError(err).Errorf("Corrupt price history for %s, skip", pos.Symbol)
			continue
		}
		if price.IsZero() {
			a.logger.Debugf("No profitable lock price for %s yet", pos.Symbol)
			continue
		}
		if prev, ok := a.cache.LastRecommendation(ctx, pos.Symbol); ok && !price.GreaterThan(prev.Price) {
			a.logger.Debugf("Sell price %s for %s does not beat previous %s, keeping stop",
				price.String(), pos.Symbol, prev.Price.String())
			continue
		}

		date := time.Now().UTC()
		if targetDate != nil {
			date = *targetDate
		}
		rec := models.SellPriceRecommendation{
			Symbol:    pos.Symbol,
			Date:      date,
			Price:     price,
			CostBasis: pos.CostBasis,
			CreatedAt: time.Now().UTC(),
		}
		a.cache.SetRecommendation(ctx, &rec)
		recs = append(recs, rec)

		a.logger.WithFields(logrus.Fields{
			"symbol": pos.Symbol,
			"shares": pos.Shares,
			"cost":   pos.CostBasis.String(),
			"price":  price.String(),
		}).Info("New sell price recommended")
	}
	return recs, nil
}
