package backtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// grid is a row-major dates x instruments matrix. Undefined entries are NaN.
type grid struct {
	rows, cols int
	data       []float64
}

func newGrid(rows, cols int) *grid {
	return &grid{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

func (g *grid) row(t int) []float64 { return g.data[t*g.cols : (t+1)*g.cols] }

func (g *grid) allEqual(x float64) bool {
	for _, v := range g.data {
		if v != x {
			return false
		}
	}
	return true
}

// neutralize subtracts the cross-sectional mean of the defined values on
// every date.
func neutralize(w *grid) {
	for t := 0; t < w.rows; t++ {
		row := w.row(t)
		mean, n := definedMean(row)
		if n == 0 {
			continue
		}
		floats.AddConst(-mean, row)
	}
}

func definedMean(xs []float64) (float64, int) {
	var sum float64
	n := 0
	for _, x := range xs {
		if !math.IsNaN(x) {
			sum += x
			n++
		}
	}
	if n == 0 {
		return math.NaN(), 0
	}
	return sum / float64(n), n
}

// truncate clips each date to [q(p), q(1-p)] of its defined values.
func truncate(w *grid, p float64) {
	if p <= 0 {
		return
	}
	sorted := make([]float64, 0, w.cols)
	for t := 0; t < w.rows; t++ {
		row := w.row(t)
		sorted = sorted[:0]
		for _, x := range row {
			if !math.IsNaN(x) {
				sorted = append(sorted, x)
			}
		}
		if len(sorted) == 0 {
			continue
		}
		sort.Float64s(sorted)
		lo, hi := quantile(sorted, p), quantile(sorted, 1-p)
		for j, x := range row {
			if math.IsNaN(x) {
				continue
			}
			row[j] = math.Min(math.Max(x, lo), hi)
		}
	}
}

// quantile interpolates linearly between order statistics at position
// (m-1)*q of an ascending slice.
func quantile(sorted []float64, q float64) float64 {
	pos := float64(len(sorted)-1) * q
	i := int(math.Floor(pos))
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

// normalize divides every date by the sum of its absolute defined values.
// A date with no defined value, or whose defined values sum to zero, gets
// equal weight 1/N for every instrument.
func normalize(w *grid) {
	for t := 0; t < w.rows; t++ {
		row := w.row(t)
		var sum float64
		defined := 0
		for _, x := range row {
			if !math.IsNaN(x) {
				sum += math.Abs(x)
				defined++
			}
		}
		switch {
		case defined == 0, sum == 0:
			for j := range row {
				row[j] = 1 / float64(w.cols)
			}
		default:
			floats.Scale(1/sum, row)
		}
	}
}

// decay replaces every weight with a linearly weighted moving average over
// the trailing n dates, the most recent date weighted n. A partial window of
// m dates near the start is weighted 1..m. Undefined entries are skipped.
func decay(w *grid, n int) *grid {
	if n <= 1 {
		return w
	}
	out := newGrid(w.rows, w.cols)
	for j := 0; j < w.cols; j++ {
		for t := 0; t < w.rows; t++ {
			var num, den float64
			m := min(n, t+1)
			for k := 0; k < m; k++ {
				x := w.data[(t-k)*w.cols+j]
				if math.IsNaN(x) {
					continue
				}
				weight := float64(m - k)
				num += weight * x
				den += weight
			}
			if den == 0 {
				out.data[t*w.cols+j] = math.NaN()
			} else {
				out.data[t*w.cols+j] = num / den
			}
		}
	}
	return out
}

// shift moves the weights forward by n dates, leaving the first n undefined.
func shift(w *grid, n int) *grid {
	if n <= 0 {
		return w
	}
	out := newGrid(w.rows, w.cols)
	for t := 0; t < w.rows; t++ {
		dst := out.row(t)
		if t < n {
			for j := range dst {
				dst[j] = math.NaN()
			}
			continue
		}
		copy(dst, w.row(t-n))
	}
	return out
}

// simpleReturns is close(t)/close(t-1) - 1 per instrument. The first date is
// undefined. A zero base yields an infinite or undefined return, which the
// caller treats like any other non-finite return.
func simpleReturns(closes *grid) *grid {
	out := newGrid(closes.rows, closes.cols)
	for j := 0; j < closes.cols; j++ {
		out.data[j] = math.NaN()
	}
	for t := 1; t < closes.rows; t++ {
		prev, cur, dst := closes.row(t-1), closes.row(t), out.row(t)
		for j := range dst {
			dst[j] = (cur[j] - prev[j]) / prev[j]
		}
	}
	return out
}

// weightedReturns is the per-date sum of weight*return over instruments where
// both are defined, or undefined when no instrument qualifies.
func weightedReturns(w, r *grid) []float64 {
	out := make([]float64, w.rows)
	for t := 0; t < w.rows; t++ {
		ws, rs := w.row(t), r.row(t)
		var sum float64
		n := 0
		for j := range ws {
			if math.IsNaN(ws[j]) || math.IsNaN(rs[j]) {
				continue
			}
			sum += ws[j] * rs[j]
			n++
		}
		if n == 0 {
			out[t] = math.NaN()
		} else {
			out[t] = sum
		}
	}
	return out
}

// equalWeightReturns is the plain mean of instrument returns per date. Dates
// with any undefined instrument return are undefined.
func equalWeightReturns(r *grid) []float64 {
	out := make([]float64, r.rows)
	for t := 0; t < r.rows; t++ {
		row := r.row(t)
		if floats.HasNaN(row) {
			out[t] = math.NaN()
			continue
		}
		var sum float64
		for _, x := range row {
			sum += x
		}
		out[t] = sum / float64(r.cols)
	}
	return out
}

// unitPositions maps a single-instrument alpha to -1, 0 or 1 by its sign.
// Undefined and zero alpha hold no position.
func unitPositions(a []float64) []float64 {
	out := make([]float64, len(a))
	for t, x := range a {
		switch {
		case x > 0:
			out[t] = 1
		case x < 0:
			out[t] = -1
		}
	}
	return out
}
