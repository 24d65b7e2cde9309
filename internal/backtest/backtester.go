// Package backtest turns an alpha value into portfolio weights and reports
// the resulting return stream.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/newthinker/alphalab/internal/alpha"
	"github.com/newthinker/alphalab/internal/core"
)

// Daily returns above this size are logged as suspicious.
const largeReturn = 1.0

// Observer receives backtest measurements.
type Observer interface {
	RecordBacktest(mode, status string, duration float64)
}

type nopObserver struct{}

func (nopObserver) RecordBacktest(string, string, float64) {}

// Backtester runs portfolio backtests of alpha values against price tables
type Backtester struct {
	logger   *zap.Logger
	observer Observer
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(b *Backtester) {
		if o != nil {
			b.observer = o
		}
	}
}

// New creates a new Backtester
func New(opts ...Option) *Backtester {
	b := &Backtester{logger: zap.NewNop(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var defaultBacktester = New()

// Run backtests value over table with a default Backtester.
func Run(ctx context.Context, value alpha.Value, table *core.PriceTable, settings Settings) (*Result, error) {
	return defaultBacktester.Run(ctx, value, table, settings)
}

// Run builds positions from value, applies them to the close-to-close
// returns of table and reports the cumulative curve. Neither input is
// modified.
func (b *Backtester) Run(ctx context.Context, value alpha.Value, table *core.PriceTable, settings Settings) (*Result, error) {
	start := time.Now()
	mode := ModePanel
	if table != nil && table.IsSingle() {
		mode = ModeSingle
	}

	res, err := b.run(ctx, value, table, settings, mode)
	status := "ok"
	if err != nil {
		status = "error"
	}
	b.observer.RecordBacktest(string(mode), status, time.Since(start).Seconds())
	if err != nil {
		b.logger.Debug("backtest failed", zap.String("mode", string(mode)), zap.Error(err))
		return nil, err
	}

	b.logger.Debug("backtest complete",
		zap.String("id", res.ID.String()),
		zap.String("mode", string(mode)),
		zap.Int("periods", res.Stats.Periods),
		zap.Float64("total_return", res.Stats.TotalReturn),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (b *Backtester) run(ctx context.Context, value alpha.Value, table *core.PriceTable, settings Settings, mode Mode) (*Result, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	weights, err := alignAlpha(value, table)
	if err != nil {
		return nil, err
	}
	closes, err := closeGrid(table)
	if err != nil {
		return nil, err
	}
	returns := simpleReturns(closes)
	b.warnLargeReturns(table, returns)

	fastPath := mode == ModePanel && weights.allEqual(1)

	var strategy []float64
	switch {
	case fastPath:
		strategy = equalWeightReturns(returns)
	case mode == ModeSingle:
		strategy, err = applySteps(ctx, weights, returns, singleSteps(settings))
	default:
		strategy, err = applySteps(ctx, weights, returns, panelSteps(settings))
	}
	if err != nil {
		return nil, err
	}

	res, err := b.report(table, strategy, mode)
	if err != nil {
		return nil, err
	}
	res.Metrics["neutralization"] = onOff(settings.Neutralization)
	if fastPath {
		res.Metrics["method"] = "equal_weight"
	}
	return res, nil
}

type step func(w *grid) *grid

func panelSteps(s Settings) []step {
	return []step{
		func(w *grid) *grid {
			if s.Neutralization {
				neutralize(w)
			}
			return w
		},
		func(w *grid) *grid { truncate(w, s.Truncation); return w },
		func(w *grid) *grid { normalize(w); return w },
		func(w *grid) *grid { return decay(w, s.Decay) },
		func(w *grid) *grid { return shift(w, s.Delay) },
	}
}

// singleSteps ignore truncation and decay: a one-instrument position is
// only ever -1, 0 or 1.
func singleSteps(s Settings) []step {
	return []step{
		func(w *grid) *grid {
			if s.Neutralization {
				if mean, n := definedMean(w.data); n > 0 {
					floats.AddConst(-mean, w.data)
				}
			}
			return w
		},
		func(w *grid) *grid { w.data = unitPositions(w.data); return w },
		func(w *grid) *grid { return shift(w, s.Delay) },
	}
}

// applySteps runs the weight steps in order, checking ctx between them, and
// weights the returns with the result.
func applySteps(ctx context.Context, w, r *grid, steps []step) ([]float64, error) {
	for _, st := range steps {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		w = st(w)
	}
	return weightedReturns(w, r), nil
}

// alignAlpha copies value into a dates x instruments grid shaped like table.
// A scalar or a track is broadcast across instruments.
func alignAlpha(value alpha.Value, table *core.PriceTable) (*grid, error) {
	rows, cols := table.NumDates(), table.NumInstruments()
	if !value.IsScalar() && value.Rows() != rows {
		return nil, core.Errorf(core.ErrDomain, "alpha covers %d dates, price table %d", value.Rows(), rows)
	}
	if value.Kind() == alpha.KindPanel && value.Cols() != cols {
		return nil, core.Errorf(core.ErrDomain, "alpha covers %d instruments, price table %d", value.Cols(), cols)
	}

	template := alpha.NewPanel(table.Dates, table.Symbols, make([]float64, rows*cols))
	if table.IsSingle() {
		template = alpha.NewTrack(table.Dates, table.Symbols[0], make([]float64, rows))
	}
	g := newGrid(rows, cols)
	copy(g.data, value.Expand(template))
	return g, nil
}

func closeGrid(table *core.PriceTable) (*grid, error) {
	g := newGrid(table.NumDates(), table.NumInstruments())
	for j := 0; j < g.cols; j++ {
		col, err := table.Column(core.FieldClose, j)
		if err != nil {
			return nil, err
		}
		for t, v := range col {
			g.data[t*g.cols+j] = v
		}
	}
	return g, nil
}

func (b *Backtester) warnLargeReturns(table *core.PriceTable, r *grid) {
	for t := 1; t < r.rows; t++ {
		for j, v := range r.row(t) {
			if math.Abs(v) > largeReturn {
				b.logger.Warn("large daily return",
					zap.String("symbol", table.Symbols[j]),
					zap.String("date", table.Dates[t].Format(core.DateLayout)),
					zap.Float64("return", v),
				)
			}
		}
	}
}

// report drops undefined periods, zeroes infinite ones and compounds the
// rest.
func (b *Backtester) report(table *core.PriceTable, strategy []float64, mode Mode) (*Result, error) {
	res := &Result{ID: uuid.New(), Mode: mode}
	cumulative := 1.0
	for t, r := range strategy {
		if math.IsNaN(r) {
			continue
		}
		if math.IsInf(r, 0) {
			b.logger.Warn("infinite strategy return replaced with 0",
				zap.String("date", table.Dates[t].Format(core.DateLayout)))
			r = 0
		}
		cumulative *= 1 + r
		res.Dates = append(res.Dates, table.Dates[t])
		res.Returns = append(res.Returns, r)
		res.Values = append(res.Values, cumulative)
	}
	if len(res.Dates) == 0 {
		return nil, core.ErrEmptyResult
	}

	res.Stats = CalculateStats(res.Returns)
	res.Stats.StartDate = res.Dates[0]
	res.Stats.EndDate = res.Dates[len(res.Dates)-1]
	res.Stats.Instruments = table.NumInstruments()
	res.Metrics = metricsMap(res)
	return res, nil
}

func metricsMap(res *Result) map[string]any {
	s := res.Stats
	m := map[string]any{
		"total_return":     s.TotalReturn,
		"total_return_pct": fmt.Sprintf("%.2f%%", s.TotalReturn*100),
		"periods":          s.Periods,
		"max_drawdown":     s.MaxDrawdown,
		"sharpe_ratio":     s.SharpeRatio,
		"hit_rate":         s.HitRate,
	}
	if res.Mode == ModePanel {
		m["instrument_count"] = s.Instruments
		m["date_range"] = fmt.Sprintf("%s to %s", s.StartDate.Format(core.DateLayout), s.EndDate.Format(core.DateLayout))
	}
	return m
}

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}
