package taxonomy

import (
	"context"
	"errors"
	"fmt"
)

// ErrNodeNotFound indicates a taxonomic id that the lookup has no record of.
var ErrNodeNotFound = errors.New("taxonomy node not found")

// Lookup resolves reference identifiers and lineage data into a Tree. Each
// call is synchronous and may fail; a miss in AssignTaxonomy is reported with
// ok == false, not as an error.
//
// Implementations must be safe for concurrent use when a Tree is not shared
// between callers.
type Lookup interface {
	// AssignTaxonomy resolves accession to its base node, adds it to tree with
	// its direct children, and returns its ref. Deeper descendants are only
	// loaded by AttachChildren.
	AssignTaxonomy(ctx context.Context, tree *Tree, accession int64) (ref NodeRef, ok bool, err error)

	// LiftRank returns the nearest ranked ancestor of ref, linking it into
	// tree. Lifting the root returns the root.
	LiftRank(ctx context.Context, tree *Tree, ref NodeRef) (NodeRef, error)

	// AttachChildren populates the full child subtree of ref.
	AttachChildren(ctx context.Context, tree *Tree, ref NodeRef) error

	// AttachFullLineage populates the ancestor chain of ref up to the root.
	AttachFullLineage(ctx context.Context, tree *Tree, ref NodeRef) error

	// IsParentOrSibling reports whether parent is an ancestor of id, or
	// whether both share the same direct parent. A taxon is not related to
	// itself.
	IsParentOrSibling(ctx context.Context, parent, id TaxID) (bool, error)
}

// LookupError wraps a failure returned by a Lookup implementation.
type LookupError struct {
	Op  string
	ID  int64
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("taxonomy %s %d: %v", e.Op, e.ID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// WrapLookupError returns err wrapped in a LookupError, or nil.
func WrapLookupError(op string, id int64, err error) error {
	if err == nil {
		return nil
	}
	var le *LookupError
	if errors.As(err, &le) {
		return err
	}
	return &LookupError{Op: op, ID: id, Err: err}
}
