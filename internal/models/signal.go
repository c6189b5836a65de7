package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OverreactSignal describes a detected buying opportunity: an abnormal
// single-day drop whose comparable historical drops mostly recovered.
// Constructed fresh per analysis call and never mutated afterwards.
type OverreactSignal struct {
	ID     string    `json:"id" db:"id"`
	Symbol string    `json:"symbol" db:"symbol"`
	Date   time.Time `json:"date" db:"date"`

	BuyingPrice decimal.Decimal `json:"buying_price" db:"buying_price"`
	TargetPrice decimal.Decimal `json:"target_price" db:"target_price"`
	DropPct     decimal.Decimal `json:"drop_pct" db:"drop_pct"`

	// Historical context behind the signal.
	TopDropCount     int             `json:"top_drop_count" db:"top_drop_count"`
	DropCount        int             `json:"drop_count" db:"drop_count"`
	TopDropRatio     decimal.Decimal `json:"top_drop_ratio" db:"top_drop_ratio"`
	HitTargetCount   int             `json:"hit_targets" db:"hit_targets"`
	HitTargetRatio   decimal.Decimal `json:"hit_target_ratio" db:"hit_target_ratio"`
	MaxFallbackCount int             `json:"hit_max_fallback" db:"hit_max_fallback"`
	MaxFallbackRatio decimal.Decimal `json:"max_fallback_ratio" db:"max_fallback_ratio"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SellPriceRecommendation is a trailing profit-lock sell price computed for
// one symbol on one evaluation date.
type SellPriceRecommendation struct {
	Symbol    string          `json:"symbol" db:"symbol"`
	Date      time.Time       `json:"date" db:"date"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CostBasis decimal.Decimal `json:"cost_basis,omitempty" db:"cost_basis"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
