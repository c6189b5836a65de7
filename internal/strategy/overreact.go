package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/XinwuC/finance/internal/config"
	"github.com/XinwuC/finance/internal/models"
	"github.com/XinwuC/finance/internal/series"
)

const (
	// minHistoryDays keeps the historical-drop percentile statistically
	// meaningful.
	minHistoryDays = 300
	// newLowLookbackDays is the calendar window within which the signal
	// day's close must be the lowest.
	newLowLookbackDays = 180
	// volumeLookbackDays bounds the trading-day window for the mean-volume
	// baseline.
	volumeLookbackDays = 300
	// volumeSpikeRatio is the minimum multiple of baseline volume required
	// to confirm a signal.
	volumeSpikeRatio = 5.0
)

// OverreactDetector detects statistically extreme single-day price drops
// whose comparable historical drops mostly recovered within a short window.
type OverreactDetector struct {
	topDropPct         float64
	targetRecoverRate  float64
	recoverDays        int
	recoverSuccessRate float64
	maxAllowedFallback float64
	maxFallbackRate    float64

	logger *logrus.Logger
}

// NewOverreactDetector builds a detector from configuration, deriving the
// fallback thresholds from the recover parameters when unset.
func NewOverreactDetector(cfg config.OverreactConfig, logger *logrus.Logger) *OverreactDetector {
	d := &OverreactDetector{
		topDropPct:         cfg.TopDropPct,
		targetRecoverRate:  cfg.TargetRecoverRate,
		recoverDays:        cfg.RecoverDays,
		recoverSuccessRate: cfg.RecoverSuccessRate,
		maxAllowedFallback: -cfg.TargetRecoverRate,
		maxFallbackRate:    1 - cfg.RecoverSuccessRate,
		logger:             logger,
	}
	if cfg.MaxAllowedFallback != nil {
		d.maxAllowedFallback = *cfg.MaxAllowedFallback
	}
	if cfg.MaxFallbackRate != nil {
		d.maxFallbackRate = *cfg.MaxFallbackRate
	}
	return d
}

func (d *OverreactDetector) Name() string {
	return string(KindOverreact)
}

// Analyze determines whether the resolved evaluation day is an overreaction
// drop. It returns nil on insufficient history or when any filter rejects
// the day; malformed input surfaces as an error.
func (d *OverreactDetector) Analyze(symbol string, history []models.PricePoint, targetDate *time.Time) (*models.OverreactSignal, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", models.ErrInvalidPricePoint)
	}
	if err := models.ValidateHistory(history); err != nil {
		return nil, err
	}

	hist, resolved, ok := series.Calibrate(history, targetDate)
	if !ok || len(hist) < minHistoryDays {
		return nil, nil
	}

	n := len(hist)
	last := n - 1
	closes := make([]float64, n)
	highs := make([]float64, n)
	for i := range hist {
		closes[i] = hist[i].Close.InexactFloat64()
		highs[i] = hist[i].High.InexactFloat64()
	}

	change := percentChange(closes)

	// Condition 0: the evaluation day must itself be a drop day.
	currentDrop := change[last]
	if math.IsNaN(currentDrop) || currentDrop >= 0 {
		return nil, nil
	}

	// Condition 1: the drop ranks within the most severe topDropPct
	// fraction of all historical down days.
	dropCount := 0
	var topDrops []int
	for i := 1; i < n; i++ {
		if math.IsNaN(change[i]) || change[i] >= 0 {
			continue
		}
		dropCount++
		if change[i] <= currentDrop {
			topDrops = append(topDrops, i)
		}
	}
	if dropCount == 0 || len(topDrops) == 0 {
		return nil, nil
	}
	topDropRatio := float64(len(topDrops)) / float64(dropCount)
	if topDropRatio > d.topDropPct {
		return nil, nil
	}

	// Condition 2: comparable past drops mostly recovered to the target
	// within the lookahead window, and rarely fell through the floor.
	hitTargets := 0
	hitFallbacks := 0
	for _, i := range topDrops {
		buy := closes[i]
		target := buy * (1 + d.targetRecoverRate)
		fallback := buy * (1 + d.maxAllowedFallback)
		hit := false
		lastClose := buy
		// A limit sell can fill intraday, so the target is tested
		// against the forward highs.
		for j := i + 1; j <= i+d.recoverDays && j < n; j++ {
			if highs[j] >= target {
				hit = true
				break
			}
			lastClose = closes[j]
		}
		if hit {
			hitTargets++
		} else if lastClose < fallback {
			hitFallbacks++
		}
	}
	hitRatio := float64(hitTargets) / float64(len(topDrops))
	fallbackRatio := float64(hitFallbacks) / float64(len(topDrops))
	if hitRatio < d.recoverSuccessRate || fallbackRatio >= d.maxFallbackRate {
		return nil, nil
	}

	// Condition 3: a genuine new low, not a drop still above the recent
	// baseline.
	if !d.isNewLow(hist, closes, last, resolved) {
		return nil, nil
	}

	// Condition 4: volume confirmation against noise and thin liquidity.
	if !d.hasVolumeSpike(hist, last) {
		return nil, nil
	}

	buyingPrice := hist[last].Close
	targetPrice := buyingPrice.Mul(decimal.NewFromFloat(1 + d.targetRecoverRate))

	d.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"date":   resolved.Format("2006-01-02"),
		"buy":    buyingPrice.String(),
		"sell":   targetPrice.String(),
	}).Info("Overreaction drop detected")

	return &models.OverreactSignal{
		ID:               uuid.New().String(),
		Symbol:           symbol,
		Date:             resolved,
		BuyingPrice:      buyingPrice,
		TargetPrice:      targetPrice,
		DropPct:          decimal.NewFromFloat(currentDrop),
		TopDropCount:     len(topDrops),
		DropCount:        dropCount,
		TopDropRatio:     decimal.NewFromFloat(topDropRatio),
		HitTargetCount:   hitTargets,
		HitTargetRatio:   decimal.NewFromFloat(hitRatio),
		MaxFallbackCount: hitFallbacks,
		MaxFallbackRatio: decimal.NewFromFloat(fallbackRatio),
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// isNewLow reports whether the signal day's close is the lowest close within
// the trailing calendar lookback. Ties with earlier days are allowed.
func (d *OverreactDetector) isNewLow(hist []models.PricePoint, closes []float64, last int, resolved time.Time) bool {
	windowStart := resolved.AddDate(0, 0, -newLowLookbackDays)
	for i := last - 1; i >= 0; i-- {
		if hist[i].Date.Before(windowStart) {
			break
		}
		if closes[i] < closes[last] {
			return false
		}
	}
	return true
}

// hasVolumeSpike reports whether the signal day's volume reaches the spike
// multiple of the trailing mean volume, excluding the signal day itself.
func (d *OverreactDetector) hasVolumeSpike(hist []models.PricePoint, last int) bool {
	period := last
	if period > volumeLookbackDays {
		period = volumeLookbackDays
	}
	if period < 1 {
		return false
	}
	window := make([]float64, period)
	for i := 0; i < period; i++ {
		window[i] = float64(hist[last-period+i].Volume)
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	means := helper.ChanToSlice(sma.Compute(helper.SliceToChan(window)))
	if len(means) == 0 {
		return false
	}
	baseline := means[len(means)-1]
	if baseline <= 0 {
		return false
	}
	return float64(hist[last].Volume) >= volumeSpikeRatio*baseline
}

// percentChange computes the day-over-day close change series. The first
// element, and any element following a non-positive close, is NaN.
func percentChange(closes []float64) []float64 {
	change := make([]float64, len(closes))
	change[0] = math.NaN()
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			change[i] = math.NaN()
			continue
		}
		change[i] = (closes[i] - closes[i-1]) / closes[i-1]
	}
	return change
}
