package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/abhisek/taxassign/internal/classify"
	"github.com/abhisek/taxassign/internal/taxonomy"
	"github.com/abhisek/taxassign/internal/ui/theme"
)

func renderOutcome(w io.Writer, o classify.Outcome, withLineage bool) {
	if o.Err != nil {
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.QueryID, theme.Failed.Render("failed"), theme.Hint.Render(o.Err.Error()))
		return
	}

	r := o.Result
	if !r.Classified() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.QueryID, theme.Unclassified.Render(string(r.Status)),
			theme.Hint.Render(fmt.Sprintf("%d hits, %d passed cutoffs, %d placed", r.HitsTotal, r.HitsPassed, r.HitsPlaced)))
		return
	}

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		r.QueryID,
		theme.Classified.Render(string(r.Status)),
		theme.TaxID.Render(fmt.Sprint(r.TaxID)),
		theme.Rank.Render(r.RankName()),
		theme.TaxonName.Render(r.Name),
		theme.Hint.Render(fmt.Sprintf("lifts=%d hits=%d/%d", r.Lifts, r.HitsPlaced, r.HitsTotal)))
	if withLineage {
		fmt.Fprintf(w, "\t%s\n", renderLineage(r.Lineage))
	}
}

// renderLineage joins entries root-first on one line.
func renderLineage(entries []classify.LineageEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = theme.TaxonName.Render(e.Name)
	}
	return strings.Join(parts, theme.Separator.Render(" › "))
}

// renderTaxon prints one taxon as an indented line.
func renderTaxon(w io.Writer, depth int, id taxonomy.TaxID, rank taxonomy.Rank, name string) {
	fmt.Fprintf(w, "%s%s  %s  %s\n",
		strings.Repeat("  ", depth),
		theme.TaxID.Render(fmt.Sprintf("%-8d", id)),
		theme.Rank.Render(fmt.Sprintf("%-14s", rank)),
		theme.TaxonName.Render(name))
}

func renderSummary(w io.Writer, total, classified, unclassified, failed int, runID string) {
	fmt.Fprintf(w, "%s %d of %d queries classified (%d unclassified, %d failed)\n",
		theme.Title.Render("taxassign"), classified, total, unclassified, failed)
	if runID != "" {
		fmt.Fprintf(w, "%s %s\n", theme.Hint.Render("saved as run"), runID)
	}
}
