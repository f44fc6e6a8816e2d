// Package classify assigns a query sequence to a taxon by reconciling its
// search hits against a reference taxonomy.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/abhisek/taxassign/internal/hits"
	"github.com/abhisek/taxassign/internal/taxonomy"
)

// QueryClassifier classifies the hits of one query.
type QueryClassifier interface {
	Classify(ctx context.Context, queryID string, hs []*hits.Hit) (*Result, error)
}

// Classifier is the rank-lifting consensus classifier. It holds no per-query
// state; every call builds its own taxonomy.Tree.
type Classifier struct {
	lookup  taxonomy.Lookup
	policy  CutoffPolicy
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger used for per-query diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// New returns a classifier that resolves hits through lookup and filters
// them with policy.
func New(lookup taxonomy.Lookup, policy CutoffPolicy, opts ...Option) *Classifier {
	c := &Classifier{
		lookup: lookup,
		policy: policy,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "classify")
	return c
}

// Policy returns the cutoff policy in use.
func (c *Classifier) Policy() CutoffPolicy {
	return c.policy
}

// Classify reconciles the hits of one query into a single assignment.
//
// Hits failing the quality cutoffs are dropped, the rest are ordered by
// e-value (ties keep input order) and placed in the taxonomy. The best hit
// becomes the pivot. Each following candidate that is neither far enough
// away in e-value nor already covered by the pivot's taxonomy makes the pivot
// move up one rank, until the candidate is covered or the pivot reaches the
// root. The pivot's final position is the assignment.
//
// A query with no usable hits is unclassified. Lookup failures abort the
// query and are returned as errors.
func (c *Classifier) Classify(ctx context.Context, queryID string, hs []*hits.Hit) (*Result, error) {
	start := time.Now()
	res, err := c.classify(ctx, queryID, hs)
	if err != nil {
		c.metrics.IncrementFailure(failureKind(err))
		return nil, err
	}
	c.metrics.ObserveResult(res, time.Since(start))
	return res, nil
}

func (c *Classifier) classify(ctx context.Context, queryID string, hs []*hits.Hit) (*Result, error) {
	logger := c.logger.With("query", queryID)

	passed := make([]*hits.Hit, 0, len(hs))
	for _, h := range hs {
		if c.policy.PassesQualityCutoffs(h) {
			passed = append(passed, h)
		}
	}
	c.metrics.IncrementDropped("quality", len(hs)-len(passed))

	slices.SortStableFunc(passed, func(a, b *hits.Hit) int {
		switch {
		case a.Evalue < b.Evalue:
			return -1
		case a.Evalue > b.Evalue:
			return 1
		}
		return 0
	})

	tree := taxonomy.NewTree()
	placed := make([]*hits.Hit, 0, len(passed))
	for _, h := range passed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := c.place(ctx, tree, h)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", queryID, err)
		}
		if !ok {
			logger.Debug("hit has no taxonomy", "accession", h.Accession)
			continue
		}
		placed = append(placed, h)
	}
	c.metrics.IncrementDropped("unplaced", len(passed)-len(placed))

	if len(placed) == 0 {
		logger.Debug("query unclassified", "hits", len(hs), "passed", len(passed))
		return unclassified(queryID, len(hs), len(passed), 0), nil
	}

	pivot := placed[0]
	lifts := 0
	for _, candidate := range placed[1:] {
		for !c.policy.IsSeparatedByEvalue(candidate, pivot) && pivot.RefusesParenthood(tree, candidate) {
			if tree.IsRoot(pivot.Focus) {
				break
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			lifted, err := c.lookup.LiftRank(ctx, tree, pivot.Focus)
			if err != nil {
				return nil, fmt.Errorf("query %s: %w", queryID, err)
			}
			logger.Debug("lifted pivot",
				"from", tree.ID(pivot.Focus), "from_rank", tree.Rank(pivot.Focus),
				"to", tree.ID(lifted), "to_rank", tree.Rank(lifted),
				"candidate", candidate.Accession)
			pivot.Assign(lifted)
			lifts++
		}
		if tree.IsRoot(pivot.Focus) {
			break
		}
	}

	res := assigned(queryID, tree, pivot.Focus)
	res.HitsTotal = len(hs)
	res.HitsPassed = len(passed)
	res.HitsPlaced = len(placed)
	res.Lifts = lifts
	logger.Debug("query classified", "taxid", res.TaxID, "rank", res.RankName(), "lifts", lifts)
	return res, nil
}

// place resolves the taxonomy of h with its full lineage and points its
// taxonomy and focus at the resolved node.
func (c *Classifier) place(ctx context.Context, tree *taxonomy.Tree, h *hits.Hit) (bool, error) {
	h.Assign(taxonomy.NoNode)

	ref, ok, err := c.lookup.AssignTaxonomy(ctx, tree, h.Accession)
	if err != nil || !ok {
		return false, err
	}
	if err := c.lookup.AttachFullLineage(ctx, tree, ref); err != nil {
		return false, err
	}
	h.Assign(ref)
	return true, nil
}

// ClassifyQuery normalizes the raw hits of q and classifies them. Format
// errors abort the query.
func ClassifyQuery(ctx context.Context, qc QueryClassifier, q hits.Query) (*Result, error) {
	hs, err := hits.Normalize(q.Hits)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.ID, err)
	}
	return qc.Classify(ctx, q.ID, hs)
}

// Outcome is the classification of one query in a batch. Exactly one of
// Result and Err is set.
type Outcome struct {
	QueryID string
	Result  *Result
	Err     error
}

// ClassifyAll classifies queries one after another in input order. A query
// that fails is reported in its Outcome and the batch continues; cancellation
// stops the batch and is returned with the outcomes gathered so far.
func ClassifyAll(ctx context.Context, qc QueryClassifier, queries []hits.Query) ([]Outcome, error) {
	out := make([]Outcome, 0, len(queries))
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := ClassifyQuery(ctx, qc, q)
		if err != nil && ctx.Err() != nil {
			return out, ctx.Err()
		}
		out = append(out, Outcome{QueryID: q.ID, Result: res, Err: err})
	}
	return out, nil
}

func failureKind(err error) string {
	var fe *hits.FormatError
	var le *taxonomy.LookupError
	switch {
	case errors.As(err, &fe):
		return "format"
	case errors.As(err, &le):
		return "lookup"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
