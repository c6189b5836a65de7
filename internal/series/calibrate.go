// Package series normalizes raw daily price histories before analysis.
package series

import (
	"sort"
	"time"

	"github.com/XinwuC/finance/internal/models"
)

// Day truncates a timestamp to its calendar day in UTC. All series dates are
// compared at day granularity.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Calibrate normalizes a raw price history against a nominal evaluation date:
// duplicate dates are dropped keeping the first occurrence (partial-day
// re-fetches are a known data hazard), rows are sorted ascending by date, and
// the series is truncated at or before the target date. When the target date
// is absent from the series the resolved date snaps backward to the last
// available trading day, never forward. A nil target date resolves to the
// latest date present.
//
// Returns ok=false when the series is empty or holds no data at or before the
// target date. Callers must treat that as "insufficient data", not an error.
func Calibrate(points []models.PricePoint, targetDate *time.Time) ([]models.PricePoint, time.Time, bool) {
	if len(points) == 0 {
		return nil, time.Time{}, false
	}

	// Deduplicate by calendar day, keeping the first row encountered in the
	// original order.
	seen := make(map[time.Time]struct{}, len(points))
	calibrated := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		day := Day(p.Date)
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		p.Date = day
		calibrated = append(calibrated, p)
	}

	sort.Slice(calibrated, func(i, j int) bool {
		return calibrated[i].Date.Before(calibrated[j].Date)
	})

	target := calibrated[len(calibrated)-1].Date
	if targetDate != nil {
		target = Day(*targetDate)
	}

	// Truncate to rows at or before the target date.
	cut := sort.Search(len(calibrated), func(i int) bool {
		return calibrated[i].Date.After(target)
	})
	calibrated = calibrated[:cut]
	if len(calibrated) == 0 {
		return nil, time.Time{}, false
	}

	resolved := calibrated[len(calibrated)-1].Date
	return calibrated, resolved, true
}
