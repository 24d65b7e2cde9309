package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/alphalab/internal/app"
	"github.com/newthinker/alphalab/internal/config"
	"github.com/newthinker/alphalab/internal/core"
	"github.com/newthinker/alphalab/internal/report"
)

var (
	dataDir      string
	dataFile     string
	dataStart    string
	dataEnd      string
	settingFlags map[string]string
	chartPath    string
	chartFormat  string
	showCurve    bool
	noArchive    bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest <formula>",
	Short: "Backtest an alpha formula",
	Long: `Evaluate a formula over the configured price data, build portfolio
weights from it and report the cumulative return and summary metrics.

Example:
  alphalab backtest 'alpha = rank(-delta(close, 5))' --set decay=3 --set neutralization=market`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktest,
}

func init() {
	addDataFlags(backtestCmd)
	backtestCmd.Flags().StringToStringVar(&settingFlags, "set", nil, "backtest setting override, e.g. --set delay=0")
	backtestCmd.Flags().StringVar(&chartPath, "chart", "", "write the cumulative-return chart to this file")
	backtestCmd.Flags().StringVar(&chartFormat, "chart-format", "png", "chart format: png or svg")
	backtestCmd.Flags().BoolVar(&showCurve, "curve", false, "print the daily curve")
	backtestCmd.Flags().BoolVar(&noArchive, "no-archive", false, "do not archive the result")

	rootCmd.AddCommand(backtestCmd)
}

func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory of <SYMBOL>.csv price files (overrides config)")
	cmd.Flags().StringVar(&dataFile, "file", "", "single CSV price file (overrides config)")
	cmd.Flags().StringVar(&dataStart, "start", "", "first date to use, YYYY-MM-DD")
	cmd.Flags().StringVar(&dataEnd, "end", "", "last date to use, YYYY-MM-DD")
}

func dateWindow() (core.DateRange, error) {
	return core.ParseDateRange(dataStart, dataEnd)
}

// applyDataFlags lets command-line data locations win over the config.
func applyDataFlags(cfg *config.Config) {
	if dataFile != "" {
		cfg.Data.File = dataFile
		cfg.Data.Dir = ""
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
		cfg.Data.File = ""
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	formula := args[0]

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	applyDataFlags(cfg)

	format, err := report.ParseFormat(chartFormat)
	if err != nil {
		return err
	}
	window, err := dateWindow()
	if err != nil {
		return err
	}

	var opts []app.Option
	if !noArchive {
		results, err := app.OpenResults(cfg.Archive)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		if results != nil {
			opts = append(opts, app.WithResults(results))
		}
	}

	a := app.New(cfg, log, opts...)
	if err := a.LoadData(); err != nil {
		return fmt.Errorf("loading price data: %w", err)
	}

	overrides := make(map[string]any, len(settingFlags))
	for k, v := range settingFlags {
		overrides[k] = v
	}

	ctx, cancel := signalContext()
	defer cancel()

	run, err := a.Backtest(ctx, formula, overrides, window)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := report.WriteSummary(out, formula, run.Result); err != nil {
		return err
	}
	if showCurve {
		fmt.Fprintln(out)
		if err := report.WriteCurve(out, run.Result); err != nil {
			return err
		}
	}

	if chartPath != "" {
		img, err := report.RenderChart(formula, run.Result, format)
		if err != nil {
			return err
		}
		if err := os.WriteFile(chartPath, img, 0644); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}
		log.Info("chart written", zap.String("path", chartPath))
	}
	if run.Archived {
		fmt.Fprintf(out, "\nArchived as %s\n", run.Result.ID)
	}
	return nil
}
