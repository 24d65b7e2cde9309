package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/newthinker/alphalab/internal/core"
)

func TestDelta(t *testing.T) {
	x := track(1, 3, 6, 10, 15)
	for n := 1; n <= 3; n++ {
		got := call(t, "delta", args(x, n)).Data()
		for i := n; i < len(got); i++ {
			assert.Equal(t, x.Data()[i]-x.Data()[i-n], got[i])
		}
		for i := 0; i < n; i++ {
			assertSeries(t, []float64{nan}, got[i:i+1])
		}
	}
	assertSeries(t, []float64{nan, 2, 3, 4, 5}, call(t, "ts_delta", args(x)).Data())
}

func TestSum(t *testing.T) {
	assertSeries(t, []float64{nan, 3, 5, 7}, call(t, "sum", args(track(1, 2, 3, 4), 2)).Data())
	assertSeries(t, []float64{nan, 3, nan, nan, 9}, call(t, "sum", args(track(1, 2, nan, 4, 5), 2)).Data())
	assertSeries(t, []float64{1, 3, 5}, call(t, "ts_sum", args(track(1, 2, 3), 2)).Data())
	assertSeries(t, []float64{1, 1, nan}, call(t, "ts_sum", args(track(1, nan, nan), 2)).Data())
}

func TestSum_Panel(t *testing.T) {
	got := call(t, "sum", args(panel([]float64{1, 10}, []float64{2, 20}, []float64{3, 30}), 2))
	assertSeries(t, []float64{nan, nan, 3, 30, 5, 50}, got.Data())
}

func TestWindow_InvalidLength(t *testing.T) {
	x := track(1, 2, 3)
	assert.ErrorIs(t, callErr("sum", args(x, 0)), core.ErrInvalidArgument)
	assert.ErrorIs(t, callErr("sum", args(x, -2)), core.ErrInvalidArgument)
	assert.ErrorIs(t, callErr("sum", args(x, 1.5)), core.ErrInvalidArgument)
	assert.ErrorIs(t, callErr("sum", args(x, x)), core.ErrInvalidArgument)
	assert.ErrorIs(t, callErr("sum", args(x)), core.ErrArity)
	assert.ErrorIs(t, callErr("sum", args(x, 1, 2)), core.ErrArity)
}

func TestTsRank(t *testing.T) {
	got := call(t, "ts_rank", args(track(1, 3, 2, 2, nan), 3)).Data()
	// window [3,2,2] at t=3: 2 ties with one other 2 → rank 1.5 of 3
	assertSeries(t, []float64{0.5, 1, 0.5, 0.25, nan}, got)
}

func TestTsArgExtremes(t *testing.T) {
	assertSeries(t, []float64{0, 0, 1, 2}, call(t, "ts_argmax", args(track(1, 3, 3, 2), 3)).Data())
	assertSeries(t, []float64{0, 0, 1}, call(t, "ts_arg_min", args(track(3, 1, 2), 2)).Data())
	assertSeries(t, []float64{nan, 0, 0}, call(t, "ts_argmax", args(track(nan, 4, 5), 2)).Data())
	assertSeries(t, []float64{0, 1, 1}, call(t, "Ts_argmax", args(track(5, 4, nan), 2)).Data())
}

func TestTsAvDiff(t *testing.T) {
	got := call(t, "ts_av_diff", args(track(6, 2, 8, 5, 9, nan), 6)).Data()
	assertSeries(t, []float64{0, -2, 8 - 16.0/3, 5 - 21.0/4, 3, nan}, got)
}

func TestTsBackfill(t *testing.T) {
	got := call(t, "ts_backfill", args(track(1, nan, nan, 4)), kw("lookback", num(3)), kw("k", num(1)))
	assertSeries(t, []float64{1, 1, 1, 4}, got.Data())

	got = call(t, "ts_backfill", args(track(1, 2, nan, nan), 3, 2))
	assertSeries(t, []float64{1, 2, 1, 1}, got.Data())

	got = call(t, "ts_backfill", args(track(1, nan, nan, nan), 2))
	assertSeries(t, []float64{1, 1, 1, nan}, got.Data())

	assert.ErrorIs(t, callErr("ts_backfill", args(track(1), 3, 1, "ZERO")), core.ErrInvalidArgument)
}

func TestReturns(t *testing.T) {
	got := call(t, "returns", args(track(100, 102, 0, 5))).Data()
	assertSeries(t, []float64{nan, 0.02, -1, nan}, got)
	got = call(t, "Returns", args(track(100, 110, 121), 2)).Data()
	assertSeries(t, []float64{nan, nan, 0.21}, got)
}

func TestHump(t *testing.T) {
	got := call(t, "hump", args(track(1, 1.005, 2, nan, 3), 0.01)).Data()
	assertSeries(t, []float64{1, 1, 1.02, nan, 3}, got)

	// panel limit is threshold times the cross-sectional absolute sum
	p := panel([]float64{1, -1}, []float64{1.01, -2}, []float64{0, 0})
	got = call(t, "hump", args(p), kw("hump_threshold", num(0.1))).Data()
	// t=1: limit 0.301; first moves 0.01 → held, second moves -1 → -1.301
	// t=2: base 0 so limit falls back to 0.1
	assertSeries(t, []float64{1, -1, 1, -1.301, 0.9, -1.201}, got)

	s := call(t, "hump", args(5.0))
	assert.Equal(t, 5.0, s.Float())
}
