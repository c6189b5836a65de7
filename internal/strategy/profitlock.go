package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/XinwuC/finance/internal/config"
	"github.com/XinwuC/finance/internal/models"
	"github.com/XinwuC/finance/internal/series"
)

// ProfitLockPricer computes a trailing stop-sell price from historical daily
// trading-range volatility. The price sits just below typical intraday noise
// under the most recent low, so re-invoking it per trading day trails the
// stop upward as the low rises. It never lowers a previously placed stop;
// that comparison is the caller's responsibility.
type ProfitLockPricer struct {
	minimalProfit float64
	logger        *logrus.Logger
}

// NewProfitLockPricer builds a pricer from configuration.
func NewProfitLockPricer(cfg config.ProfitLockConfig, logger *logrus.Logger) *ProfitLockPricer {
	return &ProfitLockPricer{
		minimalProfit: cfg.MinimalProfit,
		logger:        logger,
	}
}

func (p *ProfitLockPricer) Name() string {
	return string(KindProfitLock)
}

// SellPrice computes the profit-lock sell price for the resolved evaluation
// date: the day's low discounted by the mean daily range percentage across
// the whole available history. It returns zero when the series holds no
// usable data, and an error on malformed rows or a non-positive historical
// low, which indicates upstream data corruption rather than a missing signal.
func (p *ProfitLockPricer) SellPrice(history []models.PricePoint, targetDate *time.Time) (decimal.Decimal, error) {
	if err := models.ValidateHistory(history); err != nil {
		return decimal.Zero, err
	}

	hist, resolved, ok := series.Calibrate(history, targetDate)
	if !ok {
		return decimal.Zero, nil
	}

	var sum float64
	var lowOnDate float64
	for i := range hist {
		low := hist[i].Low.InexactFloat64()
		high := hist[i].High.InexactFloat64()
		if low <= 0 {
			return decimal.Zero, fmt.Errorf("%w: non-positive low on %s",
				models.ErrInvalidPricePoint, hist[i].Date.Format("2006-01-02"))
		}
		sum += (high - low) / low
		if hist[i].Date.Equal(resolved) {
			lowOnDate = low
		}
	}
	meanRangePct := sum / float64(len(hist))

	price := lowOnDate * (1 - meanRangePct)
	return decimal.NewFromFloat(price).Round(2), nil
}

// SellPriceForPosition is the cost-basis-aware variant: it returns zero when
// the computed price would not clear costBasis*(1+minimalProfit), since the
// position is not yet profitable enough to lock.
func (p *ProfitLockPricer) SellPriceForPosition(costBasis decimal.Decimal, history []models.PricePoint, targetDate *time.Time) (decimal.Decimal, error) {
	price, err := p.SellPrice(history, targetDate)
	if err != nil || price.IsZero() {
		return decimal.Zero, err
	}
	floor := costBasis.Mul(decimal.NewFromFloat(1 + p.minimalProfit))
	if price.LessThan(floor) {
		p.logger.WithFields(logrus.Fields{
			"price": price.String(),
			"floor": floor.String(),
		}).Debug("Sell price below profit floor, holding")
		return decimal.Zero, nil
	}
	return price, nil
}
