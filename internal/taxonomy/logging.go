package taxonomy

import (
	"context"
	"log/slog"
	"time"
)

// LoggingLookup is a decorator that logs every Lookup call at debug level.
type LoggingLookup struct {
	inner  Lookup
	logger *slog.Logger
}

// WithLogging wraps a Lookup with call logging.
func WithLogging(l Lookup, logger *slog.Logger) Lookup {
	return &LoggingLookup{inner: l, logger: logger.With("component", "taxonomy")}
}

func (l *LoggingLookup) AssignTaxonomy(ctx context.Context, tree *Tree, accession int64) (NodeRef, bool, error) {
	start := time.Now()
	ref, ok, err := l.inner.AssignTaxonomy(ctx, tree, accession)
	l.log(ctx, "assign", err, "accession", accession, "found", ok, "latency", time.Since(start))
	return ref, ok, err
}

func (l *LoggingLookup) LiftRank(ctx context.Context, tree *Tree, ref NodeRef) (NodeRef, error) {
	start := time.Now()
	lifted, err := l.inner.LiftRank(ctx, tree, ref)
	attrs := []any{"from", tree.ID(ref), "from_rank", tree.Rank(ref), "latency", time.Since(start)}
	if err == nil {
		attrs = append(attrs, "to", tree.ID(lifted), "to_rank", tree.Rank(lifted))
	}
	l.log(ctx, "lift", err, attrs...)
	return lifted, err
}

func (l *LoggingLookup) AttachChildren(ctx context.Context, tree *Tree, ref NodeRef) error {
	start := time.Now()
	err := l.inner.AttachChildren(ctx, tree, ref)
	l.log(ctx, "children", err, "taxid", tree.ID(ref), "latency", time.Since(start))
	return err
}

func (l *LoggingLookup) AttachFullLineage(ctx context.Context, tree *Tree, ref NodeRef) error {
	start := time.Now()
	err := l.inner.AttachFullLineage(ctx, tree, ref)
	l.log(ctx, "lineage", err, "taxid", tree.ID(ref), "latency", time.Since(start))
	return err
}

func (l *LoggingLookup) IsParentOrSibling(ctx context.Context, parent, id TaxID) (bool, error) {
	start := time.Now()
	ok, err := l.inner.IsParentOrSibling(ctx, parent, id)
	l.log(ctx, "parent-or-sibling", err, "parent", parent, "taxid", id, "result", ok, "latency", time.Since(start))
	return ok, err
}

func (l *LoggingLookup) log(ctx context.Context, op string, err error, attrs ...any) {
	attrs = append(attrs, "op", op)
	if err != nil {
		l.logger.ErrorContext(ctx, "taxonomy lookup failed", append(attrs, "error", err)...)
		return
	}
	l.logger.DebugContext(ctx, "taxonomy lookup", attrs...)
}
