package evaluator

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

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// newTable builds a table where every bar has open=high=low=close.
func newTable(t *testing.T, closes map[string][]float64, order ...string) *core.PriceTable {
	t.Helper()
	n := len(closes[order[0]])
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = day(i)
	}
	bars := make([][]core.OHLCV, len(order))
	for j, sym := range order {
		bars[j] = make([]core.OHLCV, n)
		for i, c := range closes[sym] {
			bars[j][i] = core.OHLCV{Symbol: sym, Open: c, High: c, Low: c, Close: c, Volume: 100, Time: dates[i]}
		}
	}
	table, err := core.NewPriceTable(dates, order, bars)
	require.NoError(t, err)
	return table
}

func singleTable(t *testing.T, closes ...float64) *core.PriceTable {
	return newTable(t, map[string][]float64{"AAA": closes}, "AAA")
}

func multiTable(t *testing.T) *core.PriceTable {
	return newTable(t, map[string][]float64{
		"AAA": {10, 11, 12},
		"BBB": {20, 19, 21},
		"CCC": {30, 33, 30},
	}, "AAA", "BBB", "CCC")
}

func TestEvaluate_FieldShapes(t *testing.T) {
	ctx := context.Background()

	v, err := Evaluate(ctx, singleTable(t, 1, 2, 3), "close")
	require.NoError(t, err)
	assert.Equal(t, alpha.KindTrack, v.Kind())
	assert.Equal(t, []float64{1, 2, 3}, v.Data())

	v, err = Evaluate(ctx, multiTable(t), "Close")
	require.NoError(t, err)
	assert.Equal(t, alpha.KindPanel, v.Kind())
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, v.Symbols())
	assert.Equal(t, []float64{10, 20, 30, 11, 19, 33, 12, 21, 30}, v.Data())
}

func TestEvaluate_CaseInsensitiveFields(t *testing.T) {
	v, err := Evaluate(context.Background(), multiTable(t), "CLOSE - close + Open - OPEN")
	require.NoError(t, err)
	assert.True(t, v.AllEqual(0))
}

func TestEvaluate_ResultRule(t *testing.T) {
	table := singleTable(t, 1, 2, 3)
	tests := []struct {
		name string
		src  string
		want []float64
	}{
		{"last statement", "a = close; a * 2", []float64{2, 4, 6}},
		{"designated alpha", "a = close; alpha = a * 2; b = a * 10", []float64{2, 4, 6}},
		{"most recent designation", "result = close; alpha = close + 1; x = 0", []float64{2, 3, 4}},
		{"df_alpha", "df_alpha = -close\nclose", []float64{-1, -2, -3}},
		{"reassignment", "a = close; a = a + 1; a", []float64{2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Evaluate(context.Background(), table, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Data())
		})
	}
}

func TestEvaluate_ScalarResult(t *testing.T) {
	v, err := Evaluate(context.Background(), multiTable(t), "2 ^ 3")
	require.NoError(t, err)
	require.True(t, v.IsScalar())
	assert.Equal(t, 8.0, v.Float())
}

func TestEvaluate_Operators(t *testing.T) {
	table := multiTable(t)
	ctx := context.Background()

	v, err := Evaluate(ctx, table, "rank(close)")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1, 0, 0.5, 1, 0, 0.5, 1}, v.Data())

	v, err = Evaluate(ctx, table, "bucket(rank(close), range='0,1,0.5')")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 0, 1, 2, 0, 1, 2}, v.Data())

	v, err = Evaluate(ctx, table, "bucket(close, buckets=[15, 25])")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 0, 1, 2, 0, 1, 2}, v.Data())

	v, err = Evaluate(ctx, table, "delta(close, 1) / 0")
	require.NoError(t, err)
	for _, d := range v.Data() {
		assert.True(t, math.IsNaN(d))
	}
}

func TestEvaluate_VWAP(t *testing.T) {
	dates := []time.Time{day(0), day(1), day(2)}
	bars := [][]core.OHLCV{{
		{High: 12, Low: 6, Close: 9, Volume: 0},
		{High: 12, Low: 9, Close: 9, Volume: 10},
		{High: 15, Low: 12, Close: 12, Volume: 30},
	}}
	table, err := core.NewPriceTable(dates, []string{"AAA"}, bars)
	require.NoError(t, err)

	v, err := Evaluate(context.Background(), table, "vwap")
	require.NoError(t, err)
	// leading zero volume falls back to typical price 9
	assert.InDeltaSlice(t, []float64{9, 10, (100 + 30*13) / 40.0}, v.Data(), 1e-12)
}

func TestVWAP_ForwardFill(t *testing.T) {
	got := VWAP(
		[]float64{10, 10, 10},
		[]float64{10, 10, 10},
		[]float64{10, math.NaN(), 10},
		[]float64{5, 0, 5},
	)
	assert.Equal(t, []float64{10, 10, 10}, got)
}

func TestEvaluate_Errors(t *testing.T) {
	table := multiTable(t)
	tests := []struct {
		src  string
		want *core.Error
	}{
		{"rank(close", core.ErrParse},
		{"", core.ErrParse},
		{"rank(foo)", core.ErrUnknownIdentifier},
		{"add(close)", core.ErrArity},
		{"quantile_transform(close, driver='weibull')", core.ErrInvalidArgument},
		{"sum(close, 0)", core.ErrInvalidArgument},
		{"bucket(close)", core.ErrInvalidArgument},
		{"'text'", core.ErrInvalidArgument},
		{"bucket(close, buckets=[close])", core.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Evaluate(context.Background(), table, tt.src)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEvaluate_InvalidTable(t *testing.T) {
	_, err := Evaluate(context.Background(), &core.PriceTable{}, "close")
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestEvaluate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Evaluate(ctx, multiTable(t), "close")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEvaluate_DoesNotMutateTable(t *testing.T) {
	table := multiTable(t)
	_, err := Evaluate(context.Background(), table, "a = scale(close); alpha = hump(a)")
	require.NoError(t, err)
	assert.Equal(t, 10.0, table.Bars[0][0].Close)
	assert.Equal(t, 33.0, table.Bars[2][1].Close)
}

type countingObserver struct {
	statuses  []string
	operators []string
}

func (o *countingObserver) RecordEvaluation(status string, _ float64) {
	o.statuses = append(o.statuses, status)
}

func (o *countingObserver) RecordOperator(name string) {
	o.operators = append(o.operators, name)
}

func TestEngine_ObserverAndLogging(t *testing.T) {
	obs := &countingObserver{}
	logCore, logs := observer.New(zap.DebugLevel)
	engine := New(WithObserver(obs), WithLogger(zap.New(logCore)))

	_, err := engine.Evaluate(context.Background(), multiTable(t), "rank(delta(close, 1))")
	require.NoError(t, err)
	_, err = engine.Evaluate(context.Background(), multiTable(t), "rank(")
	require.Error(t, err)

	assert.Equal(t, []string{"ok", "error"}, obs.statuses)
	assert.Equal(t, []string{"delta", "rank"}, obs.operators)
	assert.Equal(t, 1, logs.FilterMessage("formula evaluated").Len())
	assert.Equal(t, 1, logs.FilterMessage("formula evaluation failed").Len())
}
