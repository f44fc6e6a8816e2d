package classify

import (
	"github.com/abhisek/taxassign/internal/taxonomy"
)

// Status is the outcome of classifying one query.
type Status string

const (
	StatusClassified   Status = "classified"
	StatusUnclassified Status = "unclassified"
)

// Result is the taxonomic assignment of one query.
type Result struct {
	QueryID string         `json:"query_id"`
	Status  Status         `json:"status"`
	TaxID   taxonomy.TaxID `json:"tax_id,omitempty"`
	Rank    *taxonomy.Rank `json:"rank,omitempty"`
	Name    string         `json:"name,omitempty"`
	Lineage []LineageEntry `json:"lineage,omitempty"`

	// HitsTotal counts the hits supplied, HitsPassed those meeting the quality
	// cutoffs and HitsPlaced those the taxonomy could place.
	HitsTotal  int `json:"hits_total"`
	HitsPassed int `json:"hits_passed"`
	HitsPlaced int `json:"hits_placed"`

	// Lifts counts how many times the pivot hit was moved up one rank.
	Lifts int `json:"lifts"`
}

// LineageEntry is one ancestor of the assigned node.
type LineageEntry struct {
	TaxID taxonomy.TaxID `json:"tax_id"`
	Rank  taxonomy.Rank  `json:"rank"`
	Name  string         `json:"name"`
}

// Classified reports whether the query received an assignment.
func (r *Result) Classified() bool {
	return r.Status == StatusClassified
}

// RankName returns the display name of the assigned rank, or "" when the
// query is unclassified.
func (r *Result) RankName() string {
	if r.Rank == nil {
		return ""
	}
	return r.Rank.String()
}

func unclassified(queryID string, total, passed, placed int) *Result {
	return &Result{
		QueryID:    queryID,
		Status:     StatusUnclassified,
		HitsTotal:  total,
		HitsPassed: passed,
		HitsPlaced: placed,
	}
}

// assigned builds a classified result for ref, with its lineage root-first.
func assigned(queryID string, tree *taxonomy.Tree, ref taxonomy.NodeRef) *Result {
	rank := tree.Rank(ref)
	lineage := tree.Lineage(ref)
	entries := make([]LineageEntry, 0, len(lineage))
	for i := len(lineage) - 1; i >= 0; i-- {
		n := lineage[i]
		entries = append(entries, LineageEntry{TaxID: tree.ID(n), Rank: tree.Rank(n), Name: tree.Name(n)})
	}
	return &Result{
		QueryID: queryID,
		Status:  StatusClassified,
		TaxID:   tree.ID(ref),
		Rank:    &rank,
		Name:    tree.Name(ref),
		Lineage: entries,
	}
}
