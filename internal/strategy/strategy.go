// Package strategy holds the analytical trading strategies: the overreaction
// drop detector that emits buy signals and the profit-lock pricer that trails
// a stop-sell price under open positions.
package strategy

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XinwuC/finance/internal/config"
	"github.com/XinwuC/finance/internal/models"
)

// Kind identifies a strategy implementation. The set is closed; selection
// happens through an explicit dispatch at startup, never by reflection.
type Kind string

const (
	KindOverreact  Kind = "overreact"
	KindProfitLock Kind = "profit_lock"
)

// BuyStrategy analyzes one symbol's daily price history and may emit a buy
// signal for the evaluation date. Implementations are stateless between
// calls; callers re-supply the full history each time.
type BuyStrategy interface {
	Name() string
	Analyze(symbol string, history []models.PricePoint, targetDate *time.Time) (*models.OverreactSignal, error)
}

// NewBuyStrategy builds the buy-side strategy for a configured kind.
func NewBuyStrategy(kind Kind, cfg config.StrategyConfig, logger *logrus.Logger) (BuyStrategy, error) {
	switch kind {
	case KindOverreact:
		return NewOverreactDetector(cfg.Overreact, logger), nil
	case KindProfitLock:
		return nil, fmt.Errorf("strategy %q is a sell-side strategy", kind)
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", kind)
	}
}
