package cmd

import (
	"fmt"

	"github.com/abhisek/taxassign/internal/taxonomy"
	"github.com/abhisek/taxassign/internal/ui/theme"
	"github.com/spf13/cobra"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Inspect the taxonomic rank order",
}

var rankListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ranks from the root down to the most specific",
	Run: func(cmd *cobra.Command, args []string) {
		for _, r := range taxonomy.AllRanks() {
			fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", int(r), theme.Rank.Render(r.String()))
		}
	},
}

func init() {
	rankCmd.AddCommand(rankListCmd)
}
