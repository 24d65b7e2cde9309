// Package app wires the data, evaluation, backtest and archive layers into
// the runs served by the CLI and the HTTP API.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/alphalab/internal/alpha"
	"github.com/newthinker/alphalab/internal/backtest"
	"github.com/newthinker/alphalab/internal/config"
	"github.com/newthinker/alphalab/internal/core"
	"github.com/newthinker/alphalab/internal/dataset"
	"github.com/newthinker/alphalab/internal/evaluator"
	"github.com/newthinker/alphalab/internal/metrics"
	"github.com/newthinker/alphalab/internal/operator"
	"github.com/newthinker/alphalab/internal/storage/archive"
)

// Run is one completed formula backtest.
type Run struct {
	Formula  string
	Settings backtest.Settings
	Result   *backtest.Result
	Archived bool
}

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Registry
	engine     *evaluator.Engine
	backtester *backtest.Backtester
	loader     *dataset.Loader
	results    *archive.Results

	mu    sync.RWMutex
	table *core.PriceTable
}

// Option configures an App.
type Option func(*App)

// WithMetrics reports evaluations, backtests and archive writes to reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(a *App) { a.metrics = reg }
}

// WithResults archives every run into results.
func WithResults(results *archive.Results) Option {
	return func(a *App) { a.results = results }
}

// WithTable sets the resident price table instead of loading it from disk.
func WithTable(table *core.PriceTable) Option {
	return func(a *App) { a.table = table }
}

// New creates a new App instance
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	evalOpts := []evaluator.Option{evaluator.WithLogger(logger.Named("evaluator"))}
	btOpts := []backtest.Option{backtest.WithLogger(logger.Named("backtest"))}
	if a.metrics != nil {
		evalOpts = append(evalOpts, evaluator.WithObserver(a.metrics))
		btOpts = append(btOpts, backtest.WithObserver(a.metrics))
	}
	a.engine = evaluator.New(evalOpts...)
	a.backtester = backtest.New(btOpts...)
	a.loader = dataset.NewLoader(logger.Named("dataset"))
	return a
}

// OpenResults builds the result archive described by cfg, or returns nil
// when archiving is disabled.
func OpenResults(cfg config.ArchiveConfig) (*archive.Results, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := archive.Open(cfg.Type, cfg.Path, archive.S3Config{
		Bucket:    cfg.S3.Bucket,
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Prefix:    cfg.S3.Prefix,
	})
	if err != nil {
		return nil, err
	}
	return archive.NewResults(store), nil
}

// LoadData reads the configured price data and makes it resident.
func (a *App) LoadData() error {
	table, err := a.loader.Load(a.cfg.Data.Dir, a.cfg.Data.File)
	if err != nil {
		return err
	}
	a.SetTable(table)
	return nil
}

// SetTable replaces the resident price table.
func (a *App) SetTable(table *core.PriceTable) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.table = table
}

// Table returns the resident price table, or core.ErrNoData before any
// data has been loaded.
func (a *App) Table() (*core.PriceTable, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.table == nil {
		return nil, core.Errorf(core.ErrNoData, "no price data loaded")
	}
	return a.table, nil
}

// Results returns the archive, nil when archiving is disabled.
func (a *App) Results() *archive.Results { return a.results }

// Operators returns the operator catalogue used for evaluation.
func (a *App) Operators() *operator.Registry { return a.engine.Registry() }

// Evaluate evaluates formula over the resident table.
func (a *App) Evaluate(ctx context.Context, formula string, window core.DateRange) (alpha.Value, error) {
	table, err := a.TableIn(window)
	if err != nil {
		return alpha.Value{}, err
	}
	return a.engine.Evaluate(ctx, table, formula)
}

// TableIn returns the resident table restricted to window.
func (a *App) TableIn(window core.DateRange) (*core.PriceTable, error) {
	table, err := a.Table()
	if err != nil {
		return nil, err
	}
	return window.Apply(table)
}

// Settings merges overrides onto the configured backtest defaults. Keys
// match case-insensitively.
func (a *App) Settings(overrides map[string]any) (backtest.Settings, error) {
	merged := a.cfg.Backtest.Map()
	for k, v := range overrides {
		for dk := range merged {
			if strings.EqualFold(dk, k) {
				delete(merged, dk)
			}
		}
		merged[k] = v
	}
	return backtest.ParseSettings(merged)
}

// Backtest evaluates formula over the dates in window, backtests it with the
// merged settings and archives the result when an archive is configured. An
// archive failure is logged and does not fail the run.
func (a *App) Backtest(ctx context.Context, formula string, overrides map[string]any, window core.DateRange) (*Run, error) {
	settings, err := a.Settings(overrides)
	if err != nil {
		return nil, err
	}
	table, err := a.TableIn(window)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	value, err := a.engine.Evaluate(ctx, table, formula)
	if err != nil {
		return nil, err
	}
	res, err := a.backtester.Run(ctx, value, table, settings)
	if err != nil {
		return nil, err
	}

	run := &Run{Formula: formula, Settings: settings, Result: res}
	if a.results != nil {
		run.Archived = a.archive(ctx, run)
	}

	a.logger.Info("backtest finished",
		zap.String("id", res.ID.String()),
		zap.String("mode", string(res.Mode)),
		zap.Int("periods", res.Stats.Periods),
		zap.Float64("total_return", res.Stats.TotalReturn),
		zap.Bool("archived", run.Archived),
		zap.Duration("elapsed", time.Since(start)),
	)
	return run, nil
}

func (a *App) archive(ctx context.Context, run *Run) bool {
	err := a.results.Save(ctx, archive.NewRecord(run.Formula, run.Settings, run.Result))
	status := "ok"
	if err != nil {
		status = "error"
		a.logger.Warn("failed to archive result",
			zap.String("id", run.Result.ID.String()),
			zap.Error(err),
		)
	}
	if a.metrics != nil {
		a.metrics.RecordArchive(status)
	}
	return err == nil
}
