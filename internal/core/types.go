package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 date format used for all reported dates.
const DateLayout = "2006-01-02"

// Field names a market field a formula can reference.
type Field string

const (
	FieldOpen   Field = "open"
	FieldHigh   Field = "high"
	FieldLow    Field = "low"
	FieldClose  Field = "close"
	FieldVolume Field = "volume"
	// FieldVWAP is derived from the other five, never stored in a table.
	FieldVWAP Field = "vwap"
)

// Fields lists every field identifier in binding order.
var Fields = []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume, FieldVWAP}

// LookupField matches an identifier against the field names, ignoring case.
func LookupField(ident string) (Field, bool) {
	lower := strings.ToLower(ident)
	for _, f := range Fields {
		if string(f) == lower {
			return f, true
		}
	}
	return "", false
}

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Time   time.Time
}

// PriceTable is an aligned, date-indexed set of instruments.
// Bars[i][t] is the bar of Symbols[i] at Dates[t].
type PriceTable struct {
	Dates   []time.Time
	Symbols []string
	Bars    [][]OHLCV
}

// NewPriceTable builds a table and checks its alignment invariants.
func NewPriceTable(dates []time.Time, symbols []string, bars [][]OHLCV) (*PriceTable, error) {
	t := &PriceTable{Dates: dates, Symbols: symbols, Bars: bars}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that dates are strictly increasing and every instrument
// carries exactly one bar per date.
func (t *PriceTable) Validate() error {
	if t == nil || len(t.Dates) == 0 || len(t.Symbols) == 0 {
		return ErrNoData
	}
	if len(t.Bars) != len(t.Symbols) {
		return Errorf(ErrDomain, "%d symbols but %d bar series", len(t.Symbols), len(t.Bars))
	}
	for i := 1; i < len(t.Dates); i++ {
		if !t.Dates[i].After(t.Dates[i-1]) {
			return Errorf(ErrDomain, "dates not strictly increasing at %s", t.Dates[i].Format(DateLayout))
		}
	}
	for i, series := range t.Bars {
		if len(series) != len(t.Dates) {
			return Errorf(ErrDomain, "symbol %s has %d bars, want %d", t.Symbols[i], len(series), len(t.Dates))
		}
	}
	return nil
}

// NumDates returns the length of the date axis.
func (t *PriceTable) NumDates() int { return len(t.Dates) }

// NumInstruments returns the number of instruments.
func (t *PriceTable) NumInstruments() int { return len(t.Symbols) }

// IsSingle reports whether the table holds exactly one instrument.
func (t *PriceTable) IsSingle() bool { return len(t.Symbols) == 1 }

// Column returns a fresh copy of one raw field for instrument i.
// FieldVWAP is not stored and yields an error.
func (t *PriceTable) Column(f Field, i int) ([]float64, error) {
	out := make([]float64, len(t.Dates))
	for d, bar := range t.Bars[i] {
		switch f {
		case FieldOpen:
			out[d] = bar.Open
		case FieldHigh:
			out[d] = bar.High
		case FieldLow:
			out[d] = bar.Low
		case FieldClose:
			out[d] = bar.Close
		case FieldVolume:
			out[d] = bar.Volume
		default:
			return nil, fmt.Errorf("field %q is not stored in the price table", f)
		}
	}
	return out, nil
}

// FormatDates renders the date axis as ISO-8601 strings.
func (t *PriceTable) FormatDates() []string {
	out := make([]string, len(t.Dates))
	for i, d := range t.Dates {
		out[i] = d.Format(DateLayout)
	}
	return out
}

// DateRange restricts a table to [Start, End], both inclusive. A zero bound
// is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses optional YYYY-MM-DD bounds. Empty strings leave the
// bound open.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	for _, b := range []struct {
		name string
		raw  string
		dst  *time.Time
	}{{"start", start, &r.Start}, {"end", end, &r.End}} {
		raw := strings.TrimSpace(b.raw)
		if raw == "" {
			continue
		}
		d, err := time.Parse(DateLayout, raw)
		if err != nil {
			return DateRange{}, Errorf(ErrInvalidArgument, "%s date %q: want YYYY-MM-DD", b.name, raw)
		}
		*b.dst = d
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return DateRange{}, Errorf(ErrInvalidArgument, "end %s is before start %s",
			r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return r, nil
}

// IsZero reports whether both bounds are open.
func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

func (r DateRange) String() string {
	format := func(t time.Time, open string) string {
		if t.IsZero() {
			return open
		}
		return t.Format(DateLayout)
	}
	return format(r.Start, "start") + " to " + format(r.End, "end")
}

// Between returns the dates of t within [start, end] as a new table. Bars
// are shared with t. A zero bound is open; a window with no dates is an
// invalid argument.
func (t *PriceTable) Between(start, end time.Time) (*PriceTable, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, Errorf(ErrInvalidArgument, "end %s is before start %s", end.Format(DateLayout), start.Format(DateLayout))
	}

	lo, hi := 0, len(t.Dates)
	for lo < hi && !start.IsZero() && t.Dates[lo].Before(start) {
		lo++
	}
	for hi > lo && !end.IsZero() && t.Dates[hi-1].After(end) {
		hi--
	}
	if lo == hi {
		return nil, Errorf(ErrInvalidArgument, "no dates between %s", DateRange{start, end})
	}

	bars := make([][]OHLCV, len(t.Bars))
	for i, series := range t.Bars {
		bars[i] = series[lo:hi]
	}
	return NewPriceTable(t.Dates[lo:hi], t.Symbols, bars)
}

// Apply restricts t to the range. A zero range returns t itself.
func (r DateRange) Apply(t *PriceTable) (*PriceTable, error) {
	if r.IsZero() {
		return t, nil
	}
	return t.Between(r.Start, r.End)
}
