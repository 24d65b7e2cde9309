package evaluator

import (
	"math"

	"github.com/newthinker/alphalab/internal/alpha"
	"github.com/newthinker/alphalab/internal/core"
)

// bindField exposes one field of the table as a track (single instrument)
// or a panel.
func bindField(table *core.PriceTable, f core.Field) (alpha.Value, error) {
	rows, cols := table.NumDates(), table.NumInstruments()
	data := make([]float64, rows*cols)
	for j := 0; j < cols; j++ {
		var col []float64
		var err error
		if f == core.FieldVWAP {
			col = vwapColumn(table, j)
		} else if col, err = table.Column(f, j); err != nil {
			return alpha.Value{}, err
		}
		for t, v := range col {
			data[t*cols+j] = v
		}
	}
	if table.IsSingle() {
		return alpha.NewTrack(table.Dates, table.Symbols[0], data), nil
	}
	return alpha.NewPanel(table.Dates, table.Symbols, data), nil
}

func vwapColumn(table *core.PriceTable, j int) []float64 {
	bars := table.Bars[j]
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	volume := make([]float64, len(bars))
	for t, b := range bars {
		high[t], low[t], closes[t], volume[t] = b.High, b.Low, b.Close, b.Volume
	}
	return VWAP(high, low, closes, volume)
}

// VWAP is the expanding volume-weighted typical price from the first date:
// cumsum(tp*volume) / cumsum(volume) with tp = (high+low+close)/3. Undefined
// points are forward-filled, and anything still undefined (a leading run with
// zero volume) takes the typical price.
func VWAP(high, low, closes, volume []float64) []float64 {
	out := make([]float64, len(closes))
	typical := make([]float64, len(closes))
	var pv, vol float64
	for t := range closes {
		typical[t] = (high[t] + low[t] + closes[t]) / 3
		if x := typical[t] * volume[t]; !math.IsNaN(x) {
			pv += x
		}
		if !math.IsNaN(volume[t]) {
			vol += volume[t]
		}
		if vol == 0 {
			out[t] = math.NaN()
		} else {
			out[t] = pv / vol
		}
	}

	last := math.NaN()
	for t, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[t] = last
		} else {
			last = v
		}
		if math.IsNaN(out[t]) {
			out[t] = typical[t]
		}
	}
	return out
}
