package main

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/alphalab/internal/alpha"
	"github.com/newthinker/alphalab/internal/app"
	"github.com/newthinker/alphalab/internal/core"
)

var evalTail int

var evalCmd = &cobra.Command{
	Use:   "eval <formula>",
	Short: "Evaluate a formula and print the resulting alpha",
	Args:  cobra.ExactArgs(1),
	RunE:  runEval,
}

func init() {
	addDataFlags(evalCmd)
	evalCmd.Flags().IntVar(&evalTail, "tail", 10, "number of trailing dates to print")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	applyDataFlags(cfg)
	window, err := dateWindow()
	if err != nil {
		return err
	}

	a := app.New(cfg, log)
	if err := a.LoadData(); err != nil {
		return fmt.Errorf("loading price data: %w", err)
	}
	table, err := a.TableIn(window)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	v, err := a.Evaluate(ctx, args[0], window)
	if err != nil {
		return err
	}
	return printValue(cmd, table, v, evalTail)
}

func printValue(cmd *cobra.Command, table *core.PriceTable, v alpha.Value, tail int) error {
	out := cmd.OutOrStdout()
	if v.IsScalar() {
		fmt.Fprintf(out, "scalar: %s\n", formatCell(v.Float()))
		return nil
	}

	fmt.Fprintf(out, "%s: %d dates x %d instruments\n\n", v.Kind(), v.Rows(), v.Cols())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "DATE\t")
	if v.Kind() == alpha.KindPanel {
		for _, s := range table.Symbols {
			fmt.Fprintf(w, "%s\t", s)
		}
	} else {
		fmt.Fprint(w, "VALUE\t")
	}
	fmt.Fprintln(w)

	data := v.Data()
	start := 0
	if tail > 0 && v.Rows() > tail {
		start = v.Rows() - tail
	}
	for t := start; t < v.Rows(); t++ {
		fmt.Fprintf(w, "%s\t", table.Dates[t].Format(core.DateLayout))
		for j := 0; j < v.Cols(); j++ {
			fmt.Fprintf(w, "%s\t", formatCell(data[t*v.Cols()+j]))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func formatCell(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return fmt.Sprintf("%.6g", f)
}
