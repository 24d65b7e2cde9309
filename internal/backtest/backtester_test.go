package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/newthinker/alphalab/internal/alpha"
	"github.com/newthinker/alphalab/internal/core"
)

var nan = math.NaN()

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// priceTable builds a table from close series, one per symbol.
func priceTable(t *testing.T, closes ...[]float64) *core.PriceTable {
	t.Helper()
	symbols := []string{"AAA", "BBB", "CCC", "DDD"}[:len(closes)]
	dates := make([]time.Time, len(closes[0]))
	for i := range dates {
		dates[i] = day(i)
	}
	bars := make([][]core.OHLCV, len(closes))
	for j, series := range closes {
		for i, c := range series {
			bars[j] = append(bars[j], core.OHLCV{Symbol: symbols[j], Close: c, Open: c, High: c, Low: c, Time: dates[i]})
		}
	}
	table, err := core.NewPriceTable(dates, symbols, bars)
	require.NoError(t, err)
	return table
}

func panelValue(table *core.PriceTable, rows ...[]float64) alpha.Value {
	var data []float64
	for _, r := range rows {
		data = append(data, r...)
	}
	return alpha.NewPanel(table.Dates, table.Symbols, data)
}

func TestRun_SingleInstrument(t *testing.T) {
	table := priceTable(t, []float64{100, 102, 101, 105})
	value := alpha.NewTrack(table.Dates, "AAA", []float64{100, 102, 101, 105})

	res, err := Run(context.Background(), value, table, DefaultSettings())
	require.NoError(t, err)

	assert.Equal(t, ModeSingle, res.Mode)
	assert.Equal(t, []time.Time{day(1), day(2), day(3)}, res.Dates)
	assert.InDeltaSlice(t, []float64{1.02, 1.01, 1.05}, res.Values, 1e-12)
	// positions are long, so each return carries the sign of the price move
	assert.Greater(t, res.Returns[0], 0.0)
	assert.Less(t, res.Returns[1], 0.0)
	assert.Greater(t, res.Returns[2], 0.0)
	assert.InDelta(t, 0.05, res.Stats.TotalReturn, 1e-12)
	assert.Equal(t, "5.00%", res.Metrics["total_return_pct"])
	assert.Equal(t, "Off", res.Metrics["neutralization"])
	assert.NotContains(t, res.Metrics, "instrument_count")
	assert.Equal(t, []string{"2024-03-02", "2024-03-03", "2024-03-04"}, res.DateStrings())
}

func TestRun_SingleInstrumentShortAndFlat(t *testing.T) {
	table := priceTable(t, []float64{100, 110, 99, 99})
	// short, undefined (flat), long
	value := alpha.NewTrack(table.Dates, "AAA", []float64{-3, nan, 2, 0})

	s := DefaultSettings()
	res, err := Run(context.Background(), value, table, s)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-0.1, 0, 0}, res.Returns, 1e-12)

	s.Delay = 0
	res, err = Run(context.Background(), value, table, s)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, -0.1, 0}, res.Returns, 1e-12)
}

func TestRun_EqualWeightBaseline(t *testing.T) {
	table := priceTable(t,
		[]float64{10, 11, 12.1, 12},
		[]float64{20, 18, 18, 19},
		[]float64{5, 5.5, 5, 5.25},
	)

	baseline := make([]float64, 0, 3)
	for i := 1; i < 4; i++ {
		var sum float64
		for j := 0; j < 3; j++ {
			prev, cur := table.Bars[j][i-1].Close, table.Bars[j][i].Close
			sum += (cur - prev) / prev
		}
		baseline = append(baseline, sum/3)
	}

	ones := alpha.NewPanel(table.Dates, table.Symbols, make([]float64, 12)).Fill(1)
	for _, value := range []alpha.Value{ones, alpha.Scalar(1)} {
		res, err := Run(context.Background(), value, table, DefaultSettings())
		require.NoError(t, err)
		assert.Equal(t, baseline, res.Returns)
		assert.Equal(t, "equal_weight", res.Metrics["method"])
		assert.Equal(t, 3, res.Metrics["instrument_count"])
		assert.Equal(t, "2024-03-02 to 2024-03-04", res.Metrics["date_range"])
	}
}

func TestRun_PanelWeights(t *testing.T) {
	table := priceTable(t,
		[]float64{10, 11, 11},
		[]float64{10, 10, 12},
	)
	value := panelValue(table,
		[]float64{1, -1},
		[]float64{1, 3},
		[]float64{2, 2},
	)

	s := DefaultSettings()
	res, err := Run(context.Background(), value, table, s)
	require.NoError(t, err)
	assert.Equal(t, ModePanel, res.Mode)
	assert.InDeltaSlice(t, []float64{0.05, 0.15}, res.Returns, 1e-12)
	assert.InDeltaSlice(t, []float64{1.05, 1.05 * 1.15}, res.Values, 1e-12)
	assert.NotContains(t, res.Metrics, "method")

	s.Delay = 0
	res, err = Run(context.Background(), value, table, s)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.025, 0.1}, res.Returns, 1e-12)
}

func TestRun_PanelNeutralization(t *testing.T) {
	table := priceTable(t,
		[]float64{10, 11, 11},
		[]float64{10, 10, 12},
	)
	value := panelValue(table,
		[]float64{1, 3},
		[]float64{5, 5},
		[]float64{0, 0},
	)

	s := DefaultSettings()
	s.Neutralization = true
	res, err := Run(context.Background(), value, table, s)
	require.NoError(t, err)
	// day 1 weights [-0.5, 0.5]; day 2 weights equal after a zero-sum row
	assert.InDeltaSlice(t, []float64{-0.05, 0.1}, res.Returns, 1e-12)
	assert.Equal(t, "On", res.Metrics["neutralization"])
}

func TestRun_TrackAcrossPanel(t *testing.T) {
	table := priceTable(t,
		[]float64{10, 11, 11},
		[]float64{10, 10, 12},
	)
	value := alpha.NewTrack(table.Dates, "signal", []float64{2, 2, 2})

	res, err := Run(context.Background(), value, table, DefaultSettings())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.05, 0.1}, res.Returns, 1e-12)
}

func TestRun_UndefinedAlphaRowsEqualWeight(t *testing.T) {
	table := priceTable(t,
		[]float64{10, 11, 11, 12},
		[]float64{10, 10, 12, 12},
	)
	value := panelValue(table,
		[]float64{nan, nan},
		[]float64{1, 1},
		[]float64{1, nan},
		[]float64{nan, nan},
	)

	res, err := Run(context.Background(), value, table, DefaultSettings())
	require.NoError(t, err)
	// day 0 holds 1/N; day 2 holds only AAA
	assert.Equal(t, []time.Time{day(1), day(2), day(3)}, res.Dates)
	assert.InDeltaSlice(t, []float64{0.05, 0.1, 1.0 / 11}, res.Returns, 1e-12)
}

func TestRun_UndefinedAlphaRowKeptWithoutDelay(t *testing.T) {
	table := priceTable(t,
		[]float64{10, 11, 11, 12},
		[]float64{10, 9, 9, 9},
	)
	value := panelValue(table,
		[]float64{1, 2},
		[]float64{nan, nan},
		[]float64{1, 2},
		[]float64{2, 1},
	)
	s := DefaultSettings()
	s.Delay = 0

	res, err := Run(context.Background(), value, table, s)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(1), day(2), day(3)}, res.Dates)
	assert.InDeltaSlice(t, []float64{0, 0, 2.0 / 33}, res.Returns, 1e-12)

	res, err = Run(context.Background(), alpha.NaN(), table, s)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 1.0 / 22}, res.Returns, 1e-12)
}

func TestRun_InfiniteReturnReplaced(t *testing.T) {
	table := priceTable(t, []float64{0, 1, 2})
	logCore, logs := observer.New(zap.WarnLevel)
	b := New(WithLogger(zap.New(logCore)))

	res, err := b.Run(context.Background(), alpha.Scalar(1), table, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, res.Returns)
	assert.Equal(t, []float64{1, 2}, res.Values)
	assert.Equal(t, 1, logs.FilterMessage("infinite strategy return replaced with 0").Len())
	assert.Equal(t, 1, logs.FilterMessage("large daily return").Len())
}

func TestRun_Errors(t *testing.T) {
	table := priceTable(t,
		[]float64{10, 11, 11},
		[]float64{10, 10, 12},
	)
	ctx := context.Background()

	_, err := Run(ctx, alpha.NewTrack(table.Dates[:2], "X", []float64{1, 2}), table, DefaultSettings())
	assert.ErrorIs(t, err, core.ErrDomain)

	wide := alpha.NewPanel(table.Dates, []string{"A", "B", "C"}, make([]float64, 9))
	_, err = Run(ctx, wide, table, DefaultSettings())
	assert.ErrorIs(t, err, core.ErrDomain)

	_, err = Run(ctx, alpha.Scalar(1), table, Settings{Decay: 0, Delay: 1})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = Run(ctx, alpha.Scalar(1), &core.PriceTable{}, DefaultSettings())
	assert.ErrorIs(t, err, core.ErrNoData)

	single := priceTable(t, []float64{10})
	_, err = Run(ctx, alpha.Scalar(1), single, DefaultSettings())
	assert.ErrorIs(t, err, core.ErrEmptyResult)
}

func TestRun_Cancelled(t *testing.T) {
	table := priceTable(t,
		[]float64{10, 11, 11},
		[]float64{10, 10, 12},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, alpha.Scalar(2), table, DefaultSettings())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_DoesNotMutateAlpha(t *testing.T) {
	table := priceTable(t,
		[]float64{10, 11, 11},
		[]float64{10, 10, 12},
	)
	data := []float64{1, 3, 5, 5, 0, 0}
	value := alpha.NewPanel(table.Dates, table.Symbols, data)

	s := DefaultSettings()
	s.Neutralization = true
	_, err := Run(context.Background(), value, table, s)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 5, 5, 0, 0}, data)
}

type recordingObserver struct {
	calls []string
}

func (o *recordingObserver) RecordBacktest(mode, status string, _ float64) {
	o.calls = append(o.calls, mode+"/"+status)
}

func TestBacktester_Observer(t *testing.T) {
	obs := &recordingObserver{}
	b := New(WithObserver(obs))

	_, err := b.Run(context.Background(), alpha.Scalar(1), priceTable(t, []float64{1, 2}), DefaultSettings())
	require.NoError(t, err)
	wide := alpha.NewPanel([]time.Time{day(0), day(1)}, []string{"A", "B", "C"}, make([]float64, 6))
	_, err = b.Run(context.Background(), wide, priceTable(t, []float64{1, 2}, []float64{1, 2}), DefaultSettings())
	require.Error(t, err)

	assert.Equal(t, []string{"single/ok", "panel/error"}, obs.calls)
}
