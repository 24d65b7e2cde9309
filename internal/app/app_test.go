package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newthinker/alphalab/internal/config"
	"github.com/newthinker/alphalab/internal/core"
	"github.com/newthinker/alphalab/internal/metrics"
	"github.com/newthinker/alphalab/internal/storage/archive"
)

func testTable(t *testing.T) *core.PriceTable {
	t.Helper()
	symbols := []string{"AAA", "BBB"}
	closes := [][]float64{
		{10, 11, 12, 11, 13},
		{20, 19, 21, 22, 21},
	}
	var dates []time.Time
	for i := range closes[0] {
		dates = append(dates, time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC))
	}
	bars := make([][]core.OHLCV, len(symbols))
	for j, s := range symbols {
		for i, c := range closes[j] {
			bars[j] = append(bars[j], core.OHLCV{Symbol: s, Open: c, High: c, Low: c, Close: c, Volume: 100, Time: dates[i]})
		}
	}
	table, err := core.NewPriceTable(dates, symbols, bars)
	require.NoError(t, err)
	return table
}

func TestApp_NoData(t *testing.T) {
	a := New(config.Defaults(), nil)

	_, err := a.Table()
	assert.ErrorIs(t, err, core.ErrNoData)
	_, err = a.Backtest(context.Background(), "close", nil, core.DateRange{})
	assert.ErrorIs(t, err, core.ErrNoData)
	_, err = a.Evaluate(context.Background(), "close", core.DateRange{})
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestApp_LoadData(t *testing.T) {
	dir := t.TempDir()
	csv := "Date,Open,High,Low,Close,Volume\n2024-01-02,1,1,1,1,10\n2024-01-03,2,2,2,2,10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AAA.csv"), []byte(csv), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BBB_data.csv"), []byte(csv), 0644))

	cfg := config.Defaults()
	cfg.Data.Dir = dir
	a := New(cfg, zap.NewNop())
	require.NoError(t, a.LoadData())

	table, err := a.Table()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, table.Symbols)
}

func TestApp_Settings(t *testing.T) {
	cfg := config.Defaults()
	cfg.Backtest.Decay = 3
	a := New(cfg, nil)

	s, err := a.Settings(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Decay)
	assert.Equal(t, 1, s.Delay)

	s, err = a.Settings(map[string]any{"Decay": 5, "neutralization": "market", "commission": 0.001})
	require.NoError(t, err)
	assert.Equal(t, 5, s.Decay)
	assert.True(t, s.Neutralization)
	assert.Equal(t, 0.001, s.Extra["commission"])

	_, err = a.Settings(map[string]any{"delay": -1})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestApp_Evaluate(t *testing.T) {
	a := New(config.Defaults(), nil, WithTable(testTable(t)))

	v, err := a.Evaluate(context.Background(), "rank(close)", core.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 5, v.Rows())
	assert.Equal(t, 2, v.Cols())
	assert.True(t, a.Operators().Has("rank"))
}

func TestApp_BacktestArchives(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	results := archive.NewResults(store)
	reg := metrics.NewRegistry()

	a := New(config.Defaults(), zap.NewNop(),
		WithTable(testTable(t)),
		WithResults(results),
		WithMetrics(reg),
	)
	run, err := a.Backtest(context.Background(), "alpha = rank(close)", map[string]any{"delay": 0}, core.DateRange{})
	require.NoError(t, err)
	assert.True(t, run.Archived)
	assert.Equal(t, 0, run.Settings.Delay)

	rec, err := results.Load(context.Background(), run.Result.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "alpha = rank(close)", rec.Formula)

	for _, name := range []string{
		"alphalab_backtests_total",
		"alphalab_evaluations_total",
		"alphalab_results_archived_total",
	} {
		n, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err)
		assert.Equal(t, 1, n, name)
	}
	assert.Same(t, results, a.Results())
}

func TestApp_BacktestErrors(t *testing.T) {
	a := New(config.Defaults(), nil, WithTable(testTable(t)))

	_, err := a.Backtest(context.Background(), "rank(", nil, core.DateRange{})
	assert.ErrorIs(t, err, core.ErrParse)

	_, err = a.Backtest(context.Background(), "close", map[string]any{"decay": "x"}, core.DateRange{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestOpenResults(t *testing.T) {
	cfg := config.Defaults().Archive
	results, err := OpenResults(cfg)
	require.NoError(t, err)
	assert.Nil(t, results)

	cfg.Enabled = true
	cfg.Path = t.TempDir()
	results, err = OpenResults(cfg)
	require.NoError(t, err)
	assert.NotNil(t, results)

	cfg.Type = "ftp"
	_, err = OpenResults(cfg)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestApp_BacktestDateRange(t *testing.T) {
	a := New(config.Defaults(), nil, WithTable(testTable(t)))
	window, err := core.ParseDateRange("2024-01-03", "2024-01-05")
	require.NoError(t, err)

	run, err := a.Backtest(context.Background(), "close", map[string]any{"delay": 0}, window)
	require.NoError(t, err)
	// the first date of the window has no return
	assert.Equal(t, []string{"2024-01-04", "2024-01-05"}, run.Result.DateStrings())

	v, err := a.Evaluate(context.Background(), "delta(close, 1)", window)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Rows())

	table, err := a.Table()
	require.NoError(t, err)
	assert.Equal(t, 5, table.NumDates())

	_, err = a.Backtest(context.Background(), "close", nil, core.DateRange{Start: window.End, End: window.End})
	assert.ErrorIs(t, err, core.ErrEmptyResult)
	_, err = a.Evaluate(context.Background(), "close", core.DateRange{Start: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
