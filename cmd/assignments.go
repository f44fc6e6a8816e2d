package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var assignmentsCmd = &cobra.Command{
	Use:   "assignments <run-id>",
	Short: "Show the stored assignments of a classify --save run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, st, closeFn, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		rows, err := st.Assignments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(rows) == 0 {
			fmt.Fprintf(w, "No assignments stored for run %s.\n", args[0])
			return nil
		}

		fmt.Fprintf(w, "%-5s  %-20s  %-12s  %-8s  %-14s  %-5s  %-5s  %s\n",
			"#", "Query", "Status", "TaxID", "Rank", "Hits", "Lifts", "Name")
		fmt.Fprintln(w, strings.Repeat("─", 100))
		for _, a := range rows {
			query := a.QueryID
			if len(query) > 20 {
				query = query[:20]
			}
			taxID := ""
			if a.TaxID != 0 {
				taxID = fmt.Sprint(a.TaxID)
			}
			fmt.Fprintf(w, "%-5d  %-20s  %-12s  %-8s  %-14s  %-5d  %-5d  %s\n",
				a.Position, query, a.Status, taxID, a.Rank, a.HitsUsed, a.Lifts, a.Name)
		}
		return nil
	},
}
