package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/alphalab/internal/app"
	"github.com/newthinker/alphalab/internal/core"
	"github.com/newthinker/alphalab/internal/report"
	"github.com/newthinker/alphalab/internal/storage/archive"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Archived backtest results",
	Long:  `Commands for listing, showing, charting and deleting archived backtest results.`,
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived results",
	Args:  cobra.NoArgs,
	RunE:  runResultsList,
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an archived result",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsShow,
}

var resultsChartCmd = &cobra.Command{
	Use:   "chart <id>",
	Short: "Render the chart of an archived result",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsChart,
}

var resultsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an archived result",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsDelete,
}

var resultsOutput string

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsChartCmd)
	resultsCmd.AddCommand(resultsDeleteCmd)

	resultsShowCmd.Flags().BoolVar(&showCurve, "curve", false, "print the daily curve")
	resultsChartCmd.Flags().StringVarP(&resultsOutput, "output", "o", "", "output file (required)")
	resultsChartCmd.Flags().StringVar(&chartFormat, "format", "png", "chart format: png or svg")
	resultsChartCmd.MarkFlagRequired("output")
}

func openResults() (*archive.Results, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, err
	}
	defer log.Sync()

	results, err := app.OpenResults(cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	if results == nil {
		return nil, core.Errorf(core.ErrConfigMissing, "archive is disabled; set archive.enabled")
	}
	return results, nil
}

func loadRecord(id string) (*archive.Record, error) {
	results, err := openResults()
	if err != nil {
		return nil, err
	}
	return results.Load(context.Background(), id)
}

func runResultsList(cmd *cobra.Command, args []string) error {
	results, err := openResults()
	if err != nil {
		return err
	}
	ctx := context.Background()
	ids, err := results.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tMODE\tRETURN\tFORMULA\t")
	fmt.Fprintln(w, "--\t-------\t----\t------\t-------\t")
	for _, id := range ids {
		rec, err := results.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t(unreadable: %v)\t\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t\n",
			rec.ID, rec.CreatedAt.Format("2006-01-02 15:04"), rec.Mode, rec.Metrics["total_return_pct"], rec.Formula)
	}
	return w.Flush()
}

func runResultsShow(cmd *cobra.Command, args []string) error {
	rec, err := loadRecord(args[0])
	if err != nil {
		return err
	}
	res, err := rec.Result()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := report.WriteSummary(out, rec.Formula, res); err != nil {
		return err
	}
	if showCurve {
		fmt.Fprintln(out)
		return report.WriteCurve(out, res)
	}
	return nil
}

func runResultsChart(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(chartFormat)
	if err != nil {
		return err
	}
	rec, err := loadRecord(args[0])
	if err != nil {
		return err
	}
	res, err := rec.Result()
	if err != nil {
		return err
	}
	img, err := report.RenderChart(rec.Formula, res, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(resultsOutput, img, 0644); err != nil {
		return fmt.Errorf("writing chart: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Chart written to %s\n", resultsOutput)
	return nil
}

func runResultsDelete(cmd *cobra.Command, args []string) error {
	results, err := openResults()
	if err != nil {
		return err
	}
	if err := results.Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
