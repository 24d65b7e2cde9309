// Package dataset loads daily price bars from CSV files into an aligned
// price table.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/alphalab/internal/core"
)

// RequiredColumns must be present in every file, in any letter case.
var RequiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

var dateLayouts = []string{
	core.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"20060102",
}

// ErrMissingColumns marks a file without one of RequiredColumns.
var ErrMissingColumns = errors.New("missing required columns")

// ReadCSV parses one instrument's bars. The header row is matched
// case-insensitively and extra columns are ignored. Empty numeric cells
// become NaN. Bars are returned in date order; a repeated date is an error.
func ReadCSV(r io.Reader, symbol string) ([]core.OHLCV, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, core.Errorf(core.ErrNoData, "%s: empty file", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", symbol, err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	var bars []core.OHLCV
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		bar, err := parseRecord(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", symbol, line, err)
		}
		bar.Symbol = symbol
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, core.Errorf(core.ErrNoData, "%s: no rows", symbol)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	for i := 1; i < len(bars); i++ {
		if bars[i].Time.Equal(bars[i-1].Time) {
			return nil, fmt.Errorf("%s: duplicate date %s", symbol, bars[i].Time.Format(core.DateLayout))
		}
	}
	return bars, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRecord(rec []string, idx map[string]int) (core.OHLCV, error) {
	cell := func(name string) string {
		i := idx[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := parseDate(cell("date"))
	if err != nil {
		return core.OHLCV{}, err
	}
	bar := core.OHLCV{Time: date}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
		{"volume", &bar.Volume},
	} {
		s := cell(f.name)
		if s == "" {
			*f.dst = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.OHLCV{}, fmt.Errorf("column %s: invalid number %q", f.name, s)
		}
		*f.dst = v
	}
	return bar, nil
}

// parseDate accepts the common daily layouts and truncates to the day.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
