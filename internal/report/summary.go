// Package report renders backtest results for people: a plain-text summary
// and a chart of the cumulative-return curve.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/newthinker/alphalab/internal/backtest"
	"github.com/newthinker/alphalab/internal/core"
)

// metricOrder fixes the position of the standard metrics; anything else is
// appended alphabetically.
var metricOrder = []string{
	"total_return_pct",
	"periods",
	"max_drawdown",
	"sharpe_ratio",
	"hit_rate",
	"neutralization",
	"instrument_count",
	"date_range",
	"method",
}

// WriteSummary prints the run header and the metrics table.
func WriteSummary(w io.Writer, formula string, res *backtest.Result) error {
	if res == nil || len(res.Values) == 0 {
		return core.ErrEmptyResult
	}

	fmt.Fprintln(w, "=== Backtest Result ===")
	fmt.Fprintf(w, "ID:      %s\n", res.ID)
	fmt.Fprintf(w, "Mode:    %s\n", res.Mode)
	if formula != "" {
		fmt.Fprintf(w, "Formula: %s\n", formula)
	}
	fmt.Fprintf(w, "Period:  %s to %s\n",
		res.Dates[0].Format(core.DateLayout), res.Dates[len(res.Dates)-1].Format(core.DateLayout))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE\t")
	fmt.Fprintln(tw, "------\t-----\t")
	for _, key := range orderedKeys(res.Metrics) {
		fmt.Fprintf(tw, "%s\t%s\t\n", key, formatMetric(res.Metrics[key]))
	}
	return tw.Flush()
}

// WriteCurve prints one date/value/return row per reported period.
func WriteCurve(w io.Writer, res *backtest.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DATE\tVALUE\tRETURN\t")
	for i, d := range res.Dates {
		fmt.Fprintf(tw, "%s\t%.4f\t%+.4f%%\t\n", d.Format(core.DateLayout), res.Values[i], res.Returns[i]*100)
	}
	return tw.Flush()
}

func orderedKeys(m map[string]any) []string {
	seen := make(map[string]bool, len(m))
	var keys []string
	for _, k := range metricOrder {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] && k != "total_return" {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func formatMetric(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", x)
	default:
		return fmt.Sprint(x)
	}
}
