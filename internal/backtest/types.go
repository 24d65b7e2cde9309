package backtest

import (
	"time"

	"github.com/google/uuid"
)

// Mode selects how an alpha is turned into positions.
type Mode string

const (
	// ModeSingle trades one instrument with a unit position sized by the
	// sign of the alpha.
	ModeSingle Mode = "single"
	// ModePanel spreads normalised weights across several instruments.
	ModePanel Mode = "panel"
)

// Result holds the complete backtest output
type Result struct {
	ID      uuid.UUID
	Mode    Mode
	Dates   []time.Time
	Values  []float64 // cumulative return, starting from 1
	Returns []float64 // per-period strategy return
	Metrics map[string]any
	Stats   Stats
}

// Stats holds performance statistics of the return stream
type Stats struct {
	Periods     int
	TotalReturn float64 // final cumulative value - 1
	MaxDrawdown float64 // largest peak-to-trough decline, as a fraction
	SharpeRatio float64 // annualised, risk-free rate 0
	HitRate     float64 // fraction of periods with a positive return
	Instruments int
	StartDate   time.Time
	EndDate     time.Time
}

// DateStrings renders the result dates as YYYY-MM-DD.
func (r *Result) DateStrings() []string {
	out := make([]string, len(r.Dates))
	for i, d := range r.Dates {
		out[i] = d.Format("2006-01-02")
	}
	return out
}

// Final returns the last cumulative value, or 1 for an empty result.
func (r *Result) Final() float64 {
	if len(r.Values) == 0 {
		return 1
	}
	return r.Values[len(r.Values)-1]
}
