package operator

import (
	"math"
	"strings"

	"github.com/newthinker/alphalab/internal/alpha"
	"github.com/newthinker/alphalab/internal/core"
)

// Time-series operators run along the date axis of each instrument
// independently. Windows are trailing and include the current date.

func windowed(c *Call, param string, def int, f func(col []float64, n int) []float64) (alpha.Value, error) {
	x, err := c.Value("x")
	if err != nil {
		return alpha.Value{}, err
	}
	n, err := c.Window(param, def)
	if err != nil {
		return alpha.Value{}, err
	}
	return alpha.MapColumns(x, func(col []float64) []float64 { return f(col, n) }), nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rollingSum is a full-window rolling sum: the first n-1 outputs and any
// window containing an undefined value are undefined.
func rollingSum(col []float64, n int) []float64 {
	out := nanSlice(len(col))
	var sum float64
	bad := 0
	for i, v := range col {
		if math.IsNaN(v) {
			bad++
		} else {
			sum += v
		}
		if i >= n {
			old := col[i-n]
			if math.IsNaN(old) {
				bad--
			} else {
				sum -= old
			}
		}
		if i >= n-1 && bad == 0 {
			out[i] = sum
		}
	}
	return out
}

// partialSum sums the defined values of windows that may be shorter than n
// at the start. A window with no defined value is undefined.
func partialSum(col []float64, n int) []float64 {
	out := nanSlice(len(col))
	for i := range col {
		var sum float64
		seen := false
		for _, v := range col[max(0, i-n+1) : i+1] {
			if !math.IsNaN(v) {
				sum += v
				seen = true
			}
		}
		if seen {
			out[i] = sum
		}
	}
	return out
}

func delta(col []float64, n int) []float64 {
	out := nanSlice(len(col))
	for i := n; i < len(col); i++ {
		out[i] = col[i] - col[i-n]
	}
	return out
}

func pctChange(col []float64, n int) []float64 {
	out := nanSlice(len(col))
	for i := n; i < len(col); i++ {
		base := col[i-n]
		if base == 0 {
			continue
		}
		out[i] = (col[i] - base) / base
	}
	return out
}

// tsRank is the percentile of the latest value among the defined values of
// its window, with ties averaged. A lone defined value ranks 0.5.
func tsRank(col []float64, n int) []float64 {
	out := nanSlice(len(col))
	for i, cur := range col {
		if math.IsNaN(cur) {
			continue
		}
		less, equal, m := 0, 0, 0
		for _, v := range col[max(0, i-n+1) : i+1] {
			if math.IsNaN(v) {
				continue
			}
			m++
			switch {
			case v < cur:
				less++
			case v == cur:
				equal++
			}
		}
		if m <= 1 {
			out[i] = 0.5
			continue
		}
		avgRank := float64(less) + float64(equal+1)/2
		out[i] = (avgRank - 1) / float64(m-1)
	}
	return out
}

// argExtreme returns the offset of the extreme value in each window, 0 being
// the current date. better(a, b) reports whether a beats b; on ties the
// oldest occurrence wins.
func argExtreme(col []float64, n int, better func(a, b float64) bool) []float64 {
	out := nanSlice(len(col))
	for i := range col {
		best := -1
		for k := max(0, i-n+1); k <= i; k++ {
			if math.IsNaN(col[k]) {
				continue
			}
			if best < 0 || better(col[k], col[best]) {
				best = k
			}
		}
		if best >= 0 {
			out[i] = float64(i - best)
		}
	}
	return out
}

func avDiff(col []float64, n int) []float64 {
	out := nanSlice(len(col))
	for i, cur := range col {
		var sum float64
		m := 0
		for _, v := range col[max(0, i-n+1) : i+1] {
			if !math.IsNaN(v) {
				sum += v
				m++
			}
		}
		if m > 0 {
			out[i] = cur - sum/float64(m)
		}
	}
	return out
}

// backfill replaces an undefined value with the k-th most recent defined
// value among the previous lookback points, scanning the original series.
func backfill(col []float64, lookback, k int) []float64 {
	out := append([]float64(nil), col...)
	for i, cur := range col {
		if !math.IsNaN(cur) {
			continue
		}
		found := 0
		for j := i - 1; j >= max(0, i-lookback); j-- {
			if math.IsNaN(col[j]) {
				continue
			}
			found++
			if found == k {
				out[i] = col[j]
				break
			}
		}
	}
	return out
}

func tsBackfill(c *Call) (alpha.Value, error) {
	x, err := c.Value("x")
	if err != nil {
		return alpha.Value{}, err
	}
	lookback, err := c.Window("lookback", 252)
	if err != nil {
		return alpha.Value{}, err
	}
	k, err := c.Window("k", 1)
	if err != nil {
		return alpha.Value{}, err
	}
	ignore, err := c.String("ignore", "NAN")
	if err != nil {
		return alpha.Value{}, err
	}
	if !strings.EqualFold(ignore, "NAN") {
		return alpha.Value{}, core.Errorf(core.ErrInvalidArgument, "ts_backfill: unsupported ignore %q", ignore)
	}
	return alpha.MapColumns(x, func(col []float64) []float64 { return backfill(col, lookback, k) }), nil
}

// hump limits how far the output may move per date. The allowed move is
// threshold times |x(t)| for a single instrument, or threshold times the
// cross-sectional sum of |x(t)| for a panel; when that base is zero the
// allowed move is threshold itself.
func hump(c *Call) (alpha.Value, error) {
	x, err := c.Value("x")
	if err != nil {
		return alpha.Value{}, err
	}
	param := "threshold"
	if c.Has("hump_threshold") {
		param = "hump_threshold"
	}
	threshold, err := c.Float(param, 0.01)
	if err != nil {
		return alpha.Value{}, err
	}
	if x.IsScalar() {
		return x, nil
	}

	rows, cols := x.Rows(), x.Cols()
	src := x.Data()
	out := append([]float64(nil), src...)
	for t := 1; t < rows; t++ {
		today := src[t*cols : (t+1)*cols]
		var base float64
		for _, v := range today {
			if !math.IsNaN(v) {
				base += math.Abs(v)
			}
		}
		limit := threshold
		if base > 0 {
			limit = threshold * base
		}
		for j, cur := range today {
			prev := out[(t-1)*cols+j]
			if math.IsNaN(prev) || math.IsNaN(cur) {
				continue
			}
			change := cur - prev
			if math.Abs(change) < limit {
				out[t*cols+j] = prev
			} else {
				out[t*cols+j] = prev + sign(change)*limit
			}
		}
	}
	return x.WithData(out), nil
}

func sign(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func registerTimeSeries(r *Registry) {
	win := func(name, param, summary string, def int, f func([]float64, int) []float64) {
		required := 2
		if def > 0 {
			required = 1
		}
		r.Register(&Spec{
			Name:     name,
			Category: CategoryTimeSeries,
			Summary:  summary,
			Params:   []string{"x", param},
			Required: required,
			Fn: func(c *Call) (alpha.Value, error) {
				return windowed(c, param, def, f)
			},
		})
	}

	win("sum", "n", "rolling sum over the trailing n dates", 0, rollingSum)
	win("ts_sum", "n", "rolling sum of defined values, partial windows allowed", 0, partialSum)
	win("delta", "n", "x(t) - x(t-n)", 0, delta)
	win("ts_delta", "n", "x(t) - x(t-n), n defaults to 1", 1, delta)
	win("returns", "n", "(x(t) - x(t-n)) / x(t-n), n defaults to 1", 1, pctChange)
	win("ts_rank", "n", "percentile of x(t) within its trailing window", 0, tsRank)
	win("ts_argmax", "n", "dates since the window maximum", 0, func(col []float64, n int) []float64 {
		return argExtreme(col, n, func(a, b float64) bool { return a > b })
	})
	win("ts_arg_min", "d", "dates since the window minimum", 0, func(col []float64, n int) []float64 {
		return argExtreme(col, n, func(a, b float64) bool { return a < b })
	})
	win("ts_av_diff", "d", "x(t) minus the mean of the defined window values", 0, avDiff)

	r.Register(&Spec{
		Name:     "ts_backfill",
		Category: CategoryTimeSeries,
		Summary:  "fill undefined values from the k-th most recent defined value within lookback",
		Params:   []string{"x", "lookback", "k", "ignore"},
		Required: 1,
		Fn:       tsBackfill,
	})
	r.Register(&Spec{
		Name:     "hump",
		Category: CategoryTimeSeries,
		Summary:  "limit per-date changes to threshold times the absolute alpha",
		Params:   []string{"x", "threshold"},
		Required: 1,
		Keywords: []string{"hump_threshold"},
		Fn:       hump,
	})
}
