package operator

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/newthinker/alphalab/internal/alpha"
	"github.com/newthinker/alphalab/internal/core"
)

// Cross-sectional operators work per date across the instruments of a panel.
// A track has no cross-section, so they use the track's own date axis.

// averageRanks returns 1-based ranks of the defined values in xs, ties
// sharing the mean of their positions. Undefined inputs stay undefined.
// n is the number of defined values.
func averageRanks(xs []float64) (ranks []float64, n int) {
	idx := make([]int, 0, len(xs))
	for i, v := range xs {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	ranks = nanSlice(len(xs))
	for lo := 0; lo < len(idx); {
		hi := lo
		for hi+1 < len(idx) && xs[idx[hi+1]] == xs[idx[lo]] {
			hi++
		}
		avg := float64(lo+hi)/2 + 1
		for k := lo; k <= hi; k++ {
			ranks[idx[k]] = avg
		}
		lo = hi + 1
	}
	return ranks, len(idx)
}

// percentileRanks maps defined values to (rank-1)/(n-1), or 0.5 when only one
// value is defined.
func percentileRanks(xs []float64) []float64 {
	ranks, n := averageRanks(xs)
	for i, r := range ranks {
		if math.IsNaN(r) {
			continue
		}
		if n <= 1 {
			ranks[i] = 0.5
		} else {
			ranks[i] = (r - 1) / float64(n-1)
		}
	}
	return ranks
}

func rank(c *Call) (alpha.Value, error) {
	x, err := c.Value("x")
	if err != nil {
		return alpha.Value{}, err
	}
	return alpha.MapCross(x, percentileRanks), nil
}

type quantileDriver func(shifted []float64, sigma float64) []float64

var quantileDrivers = map[string]quantileDriver{
	"gaussian": inverseCDF(distuv.Normal{Mu: 0, Sigma: 1}.Quantile),
	"cauchy":   inverseCDF(distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 1}.Quantile),
	"uniform": func(shifted []float64, sigma float64) []float64 {
		defined := make([]float64, 0, len(shifted))
		for _, v := range shifted {
			if !math.IsNaN(v) {
				defined = append(defined, v)
			}
		}
		mean := stat.Mean(defined, nil)
		out := make([]float64, len(shifted))
		for i, v := range shifted {
			out[i] = (v - mean) * sigma
		}
		return out
	},
}

func inverseCDF(quantile func(p float64) float64) quantileDriver {
	return func(shifted []float64, sigma float64) []float64 {
		out := make([]float64, len(shifted))
		for i, p := range shifted {
			if math.IsNaN(p) {
				out[i] = math.NaN()
				continue
			}
			out[i] = quantile(p) * sigma
		}
		return out
	}
}

// quantileTransform ranks into [0,1], squeezes the ranks into
// [1/N, 1-1/N] and maps them through the driver's inverse CDF.
func quantileTransform(c *Call) (alpha.Value, error) {
	x, err := c.Value("x")
	if err != nil {
		return alpha.Value{}, err
	}
	name, err := c.String("driver", "gaussian")
	if err != nil {
		return alpha.Value{}, err
	}
	driver, ok := quantileDrivers[strings.ToLower(name)]
	if !ok {
		return alpha.Value{}, core.Errorf(core.ErrInvalidArgument, "quantile_transform: unknown driver %q", name)
	}
	sigma, err := c.Float("sigma", 1)
	if err != nil {
		return alpha.Value{}, err
	}

	return alpha.MapCross(x, func(xs []float64) []float64 {
		ranks, n := averageRanks(xs)
		if n <= 1 {
			for i, r := range ranks {
				if !math.IsNaN(r) {
					ranks[i] = 0
				}
			}
			return ranks
		}
		nf := float64(n)
		for i, r := range ranks {
			if !math.IsNaN(r) {
				ranks[i] = 1/nf + (r-1)/(nf-1)*(1-2/nf)
			}
		}
		return driver(ranks, sigma)
	}), nil
}

// bucketEdges resolves the bucket boundaries of a call, including the
// infinite sentinels that survive the skip flags.
func bucketEdges(c *Call) ([]float64, error) {
	bounds, hasBounds, err := c.List("buckets")
	if err != nil {
		return nil, err
	}
	if !hasBounds {
		bounds, hasBounds, err = c.List("boundaries")
		if err != nil {
			return nil, err
		}
	}
	spec, hasRange, err := c.List("range")
	if err != nil {
		return nil, err
	}
	switch {
	case hasBounds && hasRange:
		return nil, core.Errorf(core.ErrInvalidArgument, "bucket: cannot specify both buckets and range")
	case !hasBounds && !hasRange:
		return nil, core.Errorf(core.ErrInvalidArgument, "bucket: must specify either buckets or range")
	case hasRange:
		if len(spec) != 3 {
			return nil, core.Errorf(core.ErrInvalidArgument, "bucket: range must be start,end,step")
		}
		start, end, step := spec[0], spec[1], spec[2]
		if !(step > 0) {
			return nil, core.Errorf(core.ErrInvalidArgument, "bucket: range step must be positive")
		}
		// tolerate accumulated rounding on the last boundary
		eps := step * 1e-9
		for i := 0; ; i++ {
			v := start + float64(i)*step
			if v > end+eps {
				break
			}
			bounds = append(bounds, v)
		}
	}

	sort.Float64s(bounds)
	for i := 1; i < len(bounds); i++ {
		if bounds[i] == bounds[i-1] {
			return nil, core.Errorf(core.ErrInvalidArgument, "bucket: duplicate boundary %v", bounds[i])
		}
	}

	skipBoth, err := c.Bool("skipBoth", false)
	if err != nil {
		return nil, err
	}
	skipBegin, err := c.Bool("skipBegin", skipBoth)
	if err != nil {
		return nil, err
	}
	skipEnd, err := c.Bool("skipEnd", skipBoth)
	if err != nil {
		return nil, err
	}
	if skipBoth {
		skipBegin, skipEnd = true, true
	}

	edges := make([]float64, 0, len(bounds)+2)
	if !skipBegin {
		edges = append(edges, math.Inf(-1))
	}
	edges = append(edges, bounds...)
	if !skipEnd {
		edges = append(edges, math.Inf(1))
	}
	if len(edges) < 2 {
		return nil, core.Errorf(core.ErrInvalidArgument, "bucket: need at least one interval")
	}
	return edges, nil
}

// bucketIndex finds the right-closed interval holding v. The first interval
// is also closed on the left. Values outside the edges are undefined.
func bucketIndex(edges []float64, v float64) float64 {
	if math.IsNaN(v) || v < edges[0] || v > edges[len(edges)-1] {
		return math.NaN()
	}
	i := sort.SearchFloat64s(edges[1:], v)
	return float64(i)
}

func bucket(c *Call) (alpha.Value, error) {
	x, err := c.Value("x")
	if err != nil {
		return alpha.Value{}, err
	}
	edges, err := bucketEdges(c)
	if err != nil {
		return alpha.Value{}, err
	}
	nanGroup, err := c.Bool("nanGroup", false)
	if err != nil {
		return alpha.Value{}, err
	}
	if !nanGroup {
		if nanGroup, err = c.Bool("NANGroup", false); err != nil {
			return alpha.Value{}, err
		}
	}
	nanIndex := float64(len(edges) - 1)

	return alpha.Map(x, func(v float64) float64 {
		b := bucketIndex(edges, v)
		if math.IsNaN(b) && nanGroup {
			return nanIndex
		}
		return b
	}), nil
}

func groupNeutralize(c *Call) (alpha.Value, error) {
	x, err := c.Value("x")
	if err != nil {
		return alpha.Value{}, err
	}
	groups, err := c.Value("groups")
	if err != nil {
		return alpha.Value{}, err
	}
	return alpha.ZipCross(x, groups, func(xs, gs []float64) []float64 {
		type acc struct {
			sum float64
			n   int
		}
		means := make(map[float64]*acc)
		for i, g := range gs {
			if math.IsNaN(g) {
				continue
			}
			a, ok := means[g]
			if !ok {
				a = &acc{}
				means[g] = a
			}
			if !math.IsNaN(xs[i]) {
				a.sum += xs[i]
				a.n++
			}
		}
		out := append([]float64(nil), xs...)
		for i, g := range gs {
			if math.IsNaN(g) {
				continue
			}
			a := means[g]
			if a.n == 0 {
				out[i] = math.NaN()
				continue
			}
			out[i] = xs[i] - a.sum/float64(a.n)
		}
		return out
	})
}

func densify(c *Call) (alpha.Value, error) {
	x, err := c.Value("x")
	if err != nil {
		return alpha.Value{}, err
	}
	return alpha.MapCross(x, func(xs []float64) []float64 {
		distinct := make([]float64, 0, len(xs))
		seen := make(map[float64]bool, len(xs))
		for _, v := range xs {
			if !math.IsNaN(v) && !seen[v] {
				seen[v] = true
				distinct = append(distinct, v)
			}
		}
		sort.Float64s(distinct)
		index := make(map[float64]float64, len(distinct))
		for i, v := range distinct {
			index[v] = float64(i)
		}
		out := make([]float64, len(xs))
		for i, v := range xs {
			if math.IsNaN(v) {
				out[i] = v
			} else {
				out[i] = index[v]
			}
		}
		return out
	}), nil
}

// scale applies the long, short and overall factors, then renormalises so
// the absolute values sum to one per date (or over the track).
func scale(c *Call) (alpha.Value, error) {
	x, err := c.Value("x")
	if err != nil {
		return alpha.Value{}, err
	}
	factor, err := c.Float("scale", 1)
	if err != nil {
		return alpha.Value{}, err
	}
	long, err := c.Float("longscale", 1)
	if err != nil {
		return alpha.Value{}, err
	}
	short, err := c.Float("shortscale", 1)
	if err != nil {
		return alpha.Value{}, err
	}

	weigh := func(v float64) float64 {
		switch {
		case v > 0:
			v *= long
		case v < 0:
			v *= short
		}
		return v * factor
	}
	if x.IsScalar() {
		return alpha.Map(x, weigh), nil
	}

	return alpha.MapCross(x, func(xs []float64) []float64 {
		abs := make([]float64, 0, len(xs))
		for i, v := range xs {
			xs[i] = weigh(v)
			if !math.IsNaN(xs[i]) {
				abs = append(abs, math.Abs(xs[i]))
			}
		}
		if total := floats.Sum(abs); total > 0 {
			floats.Scale(1/total, xs)
		}
		return xs
	}), nil
}

func registerCrossSectional(r *Registry) {
	r.Register(&Spec{
		Name:     "rank",
		Category: CategoryCrossSectional,
		Summary:  "percentile rank in [0,1] across instruments (across dates for a track)",
		Params:   []string{"x"},
		Required: 1,
		Fn:       rank,
	})
	r.Register(&Spec{
		Name:     "quantile_transform",
		Category: CategoryCrossSectional,
		Summary:  "rank mapped through the inverse CDF of a gaussian, cauchy or uniform driver",
		Params:   []string{"x", "driver", "sigma"},
		Required: 1,
		Fn:       quantileTransform,
	})
	r.Register(&Spec{
		Name:     "bucket",
		Category: CategoryCrossSectional,
		Summary:  "integer bucket index from explicit boundaries or a start,end,step range",
		Params:   []string{"x"},
		Required: 1,
		Keywords: []string{"buckets", "boundaries", "range", "skipBegin", "skipEnd", "skipBoth", "nanGroup", "NANGroup"},
		Fn:       bucket,
	})
	r.Register(&Spec{
		Name:     "group_neutralize",
		Category: CategoryCrossSectional,
		Summary:  "subtract the mean of x within each group",
		Params:   []string{"x", "groups"},
		Required: 2,
		Fn:       groupNeutralize,
	})
	r.Register(&Spec{
		Name:     "densify",
		Category: CategoryCrossSectional,
		Summary:  "remap group ids to 0..k-1 by sorted order",
		Params:   []string{"x"},
		Required: 1,
		Fn:       densify,
	})
	r.Register(&Spec{
		Name:     "scale",
		Category: CategoryCrossSectional,
		Summary:  "apply long/short factors and renormalise to unit absolute sum",
		Params:   []string{"x", "scale", "longscale", "shortscale"},
		Required: 1,
		Fn:       scale,
	})
}
