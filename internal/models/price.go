package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidPricePoint indicates malformed price data that must be surfaced
// to the caller, as opposed to "insufficient data" which is recovered locally.
var ErrInvalidPricePoint = errors.New("invalid price point")

// PricePoint represents one daily OHLCV row of a symbol's price history.
type PricePoint struct {
	Symbol string          `json:"symbol,omitempty" db:"symbol"`
	Date   time.Time       `json:"date" db:"date"`
	Open   decimal.Decimal `json:"open" db:"open"`
	High   decimal.Decimal `json:"high" db:"high"`
	Low    decimal.Decimal `json:"low" db:"low"`
	Close  decimal.Decimal `json:"close" db:"close"`
	Volume int64           `json:"volume" db:"volume"`
}

// Position represents an open holding whose sell price is being tracked.
type Position struct {
	Symbol    string          `json:"symbol" db:"symbol"`
	Shares    int64           `json:"shares" db:"shares"`
	CostBasis decimal.Decimal `json:"cost_basis" db:"cost_basis"`
}

// Validate checks a single price point for schema-level corruption.
func (p PricePoint) Validate() error {
	if p.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidPricePoint)
	}
	if p.Open.IsNegative() || p.High.IsNegative() || p.Low.IsNegative() || p.Close.IsNegative() {
		return fmt.Errorf("%w: negative price on %s", ErrInvalidPricePoint, p.Date.Format("2006-01-02"))
	}
	if p.High.LessThan(p.Low) {
		return fmt.Errorf("%w: high %s below low %s on %s", ErrInvalidPricePoint,
			p.High.String(), p.Low.String(), p.Date.Format("2006-01-02"))
	}
	if p.Volume < 0 {
		return fmt.Errorf("%w: negative volume on %s", ErrInvalidPricePoint, p.Date.Format("2006-01-02"))
	}
	return nil
}

// ValidateHistory validates every row of a raw price history. It is intended
// to run once at load time so downstream analysis can assume a sane schema.
func ValidateHistory(points []PricePoint) error {
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
