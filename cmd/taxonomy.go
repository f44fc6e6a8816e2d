package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abhisek/taxassign/internal/taxonomy"
	"github.com/spf13/cobra"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Inspect and edit the reference taxonomy",
}

var taxonomyAddCmd = &cobra.Command{
	Use:   "add <taxid> <parent> <rank> <name...>",
	Short: "Add or replace one taxon",
	Long: `Adds a taxon under parent. The root of life is added as its own parent.
Ranks may be written with underscores, e.g. species_group.`,
	Args: cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaxID(args[0])
		if err != nil {
			return err
		}
		parent, err := parseTaxID(args[1])
		if err != nil {
			return err
		}
		rank, err := taxonomy.ParseRank(args[2])
		if err != nil {
			return err
		}
		rec := taxonomy.Record{ID: id, Parent: parent, Rank: rank, Name: strings.Join(args[3:], " ")}
		if id == parent {
			rec.Rank = taxonomy.RankRoot
		}

		_, _, st, closeFn, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx := cmd.Context()
		if !rec.IsRoot() {
			if _, ok, err := st.Taxon(ctx, parent); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("parent taxon %d not found", parent)
			}
		}
		if err := st.PutTaxon(ctx, rec); err != nil {
			return err
		}
		renderTaxon(cmd.OutOrStdout(), 0, rec.ID, rec.Rank, rec.Name)
		return nil
	},
}

var taxonomyMapCmd = &cobra.Command{
	Use:   "map <accession> <taxid>",
	Short: "File a reference sequence under a taxon",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		acc, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || acc < 0 {
			return fmt.Errorf("invalid accession %q", args[0])
		}
		id, err := parseTaxID(args[1])
		if err != nil {
			return err
		}

		_, _, st, closeFn, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx := cmd.Context()
		if _, ok, err := st.Taxon(ctx, id); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("taxon %d not found", id)
		}
		if err := st.PutAccession(ctx, acc, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d -> %d\n", acc, id)
		return nil
	},
}

var taxonomyLineageCmd = &cobra.Command{
	Use:   "lineage <taxid>",
	Short: "Print the ancestors of a taxon, root first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaxID(args[0])
		if err != nil {
			return err
		}

		_, logger, st, closeFn, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx := cmd.Context()
		r := taxonomy.NewResolver(st)
		tree := taxonomy.NewTree()
		ref, ok, err := r.Resolve(ctx, tree, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("taxon %d not found", id)
		}
		if err := taxonomy.WithLogging(r, logger).AttachFullLineage(ctx, tree, ref); err != nil {
			return err
		}
		if err := tree.Validate(); err != nil {
			logger.Warn("stored lineage is inconsistent", "taxid", id, "error", err)
		}

		lineage := tree.Lineage(ref)
		for depth := range lineage {
			n := lineage[len(lineage)-1-depth]
			renderTaxon(cmd.OutOrStdout(), depth, tree.ID(n), tree.Rank(n), tree.Name(n))
		}
		return nil
	},
}

var taxonomyChildrenCmd = &cobra.Command{
	Use:   "children <taxid>",
	Short: "List the direct children of a taxon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaxID(args[0])
		if err != nil {
			return err
		}

		_, _, st, closeFn, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		children, err := st.ChildrenOf(cmd.Context(), id)
		if err != nil {
			return err
		}
		if len(children) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Taxon %d has no children.\n", id)
			return nil
		}
		for _, c := range children {
			renderTaxon(cmd.OutOrStdout(), 0, c.ID, c.Rank, c.Name)
		}
		return nil
	},
}

var taxonomyRelatedCmd = &cobra.Command{
	Use:   "related <parent> <taxid>",
	Short: "Check whether parent is an ancestor or sibling of a taxon",
	Long: `Reports "yes" when parent is an ancestor of taxid or shares its direct
parent, and "no" otherwise. A taxon is not related to itself.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, err := parseTaxID(args[0])
		if err != nil {
			return err
		}
		id, err := parseTaxID(args[1])
		if err != nil {
			return err
		}

		_, logger, st, closeFn, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		related, err := taxonomy.WithLogging(taxonomy.NewResolver(st), logger).IsParentOrSibling(cmd.Context(), parent, id)
		if err != nil {
			return err
		}
		answer := "no"
		if related {
			answer = "yes"
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	taxonomyCmd.AddCommand(taxonomyAddCmd)
	taxonomyCmd.AddCommand(taxonomyMapCmd)
	taxonomyCmd.AddCommand(taxonomyLineageCmd)
	taxonomyCmd.AddCommand(taxonomyChildrenCmd)
	taxonomyCmd.AddCommand(taxonomyRelatedCmd)
}

func parseTaxID(s string) (taxonomy.TaxID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid taxid %q", s)
	}
	return taxonomy.TaxID(n), nil
}
