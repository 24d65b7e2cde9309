package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/alphalab/internal/operator"
)

var operatorsCmd = &cobra.Command{
	Use:   "operators",
	Short: "List the operators available in formulas",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tSIGNATURE\tDESCRIPTION\t")
		fmt.Fprintln(w, "--------\t---------\t-----------\t")
		for _, op := range operator.Default().GetAll() {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", op.Category, op.Signature(), op.Summary)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(operatorsCmd)
}
