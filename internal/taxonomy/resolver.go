package taxonomy

import (
	"context"
	"fmt"
)

// Record is one persisted taxon row.
type Record struct {
	ID     TaxID
	Parent TaxID
	Rank   Rank
	Name   string
}

// IsRoot reports whether the record is the root of life, which is stored as
// its own parent.
func (r Record) IsRoot() bool {
	return r.Parent == r.ID || r.Rank == RankRoot
}

// Source is row-level read access to a persisted taxonomy.
type Source interface {
	// Taxon returns the record for id, or ok == false when unknown.
	Taxon(ctx context.Context, id TaxID) (rec Record, ok bool, err error)

	// ChildrenOf returns the direct children of id.
	ChildrenOf(ctx context.Context, id TaxID) ([]Record, error)

	// Accession returns the taxon a reference sequence is filed under.
	Accession(ctx context.Context, accession int64) (id TaxID, ok bool, err error)
}

// Resolver implements Lookup on top of a row Source.
type Resolver struct {
	src Source
}

// NewResolver returns a Lookup that reads from src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

var _ Lookup = (*Resolver)(nil)

func (r *Resolver) AssignTaxonomy(ctx context.Context, tree *Tree, accession int64) (NodeRef, bool, error) {
	id, ok, err := r.src.Accession(ctx, accession)
	if err != nil {
		return NoNode, false, WrapLookupError("assign", accession, err)
	}
	if !ok {
		return NoNode, false, nil
	}

	rec, ok, err := r.src.Taxon(ctx, id)
	if err != nil {
		return NoNode, false, WrapLookupError("assign", accession, err)
	}
	if !ok {
		return NoNode, false, WrapLookupError("assign", accession,
			fmt.Errorf("accession maps to taxon %d: %w", id, ErrNodeNotFound))
	}

	ref := addRecord(tree, rec)
	children, err := r.src.ChildrenOf(ctx, id)
	if err != nil {
		return NoNode, false, WrapLookupError("assign", accession, err)
	}
	for _, c := range children {
		if c.ID != id {
			tree.Link(ref, addRecord(tree, c))
		}
	}
	return ref, true, nil
}

func (r *Resolver) LiftRank(ctx context.Context, tree *Tree, ref NodeRef) (NodeRef, error) {
	if tree.IsRoot(ref) {
		return ref, nil
	}

	target := tree.Rank(ref).Previous()
	if tree.Rank(ref) == RankNoRank {
		target = RankForma
	}

	cur := ref
	for steps := 0; ; steps++ {
		if steps > maxLineageDepth {
			return NoNode, WrapLookupError("lift", int64(tree.ID(ref)), errLineageTooDeep)
		}
		parent, err := r.parentOf(ctx, tree, cur)
		if err != nil {
			return NoNode, WrapLookupError("lift", int64(tree.ID(ref)), err)
		}
		cur = parent
		rank := tree.Rank(cur)
		if tree.IsRoot(cur) || (rank != RankNoRank && rank <= target) {
			break
		}
	}
	return cur, nil
}

func (r *Resolver) AttachChildren(ctx context.Context, tree *Tree, ref NodeRef) error {
	queue := []NodeRef{ref}
	seen := map[NodeRef]bool{ref: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		children, err := r.src.ChildrenOf(ctx, tree.ID(cur))
		if err != nil {
			return WrapLookupError("children", int64(tree.ID(ref)), err)
		}
		for _, rec := range children {
			if rec.ID == tree.ID(cur) {
				continue
			}
			child := addRecord(tree, rec)
			tree.Link(cur, child)
			if !seen[child] {
				seen[child] = true
				queue = append(queue, child)
			}
		}
	}
	return nil
}

func (r *Resolver) AttachFullLineage(ctx context.Context, tree *Tree, ref NodeRef) error {
	cur := ref
	for steps := 0; !tree.IsRoot(cur); steps++ {
		if steps > maxLineageDepth {
			return WrapLookupError("lineage", int64(tree.ID(ref)), errLineageTooDeep)
		}
		parent, err := r.parentOf(ctx, tree, cur)
		if err != nil {
			return WrapLookupError("lineage", int64(tree.ID(ref)), err)
		}
		cur = parent
	}
	return nil
}

// IsParentOrSibling reports false when parent == id: a taxon is neither its
// own ancestor nor its own sibling.
func (r *Resolver) IsParentOrSibling(ctx context.Context, parent, id TaxID) (bool, error) {
	if parent == id {
		return false, nil
	}
	rec, ok, err := r.src.Taxon(ctx, id)
	if err != nil {
		return false, WrapLookupError("parent-or-sibling", int64(id), err)
	}
	if !ok {
		return false, nil
	}

	// Sibling: both hang off the same direct parent.
	if prec, ok, err := r.src.Taxon(ctx, parent); err != nil {
		return false, WrapLookupError("parent-or-sibling", int64(parent), err)
	} else if ok && !prec.IsRoot() && !rec.IsRoot() && prec.Parent == rec.Parent {
		return true, nil
	}

	for steps := 0; !rec.IsRoot(); steps++ {
		if steps > maxLineageDepth {
			return false, WrapLookupError("parent-or-sibling", int64(id), errLineageTooDeep)
		}
		if rec.Parent == parent {
			return true, nil
		}
		rec, ok, err = r.src.Taxon(ctx, rec.Parent)
		if err != nil {
			return false, WrapLookupError("parent-or-sibling", int64(id), err)
		}
		if !ok {
			return false, nil
		}
	}
	return false, nil
}

// Resolve adds the taxon id to tree without its children or ancestors.
func (r *Resolver) Resolve(ctx context.Context, tree *Tree, id TaxID) (NodeRef, bool, error) {
	if ref, ok := tree.Lookup(id); ok {
		return ref, true, nil
	}
	rec, ok, err := r.src.Taxon(ctx, id)
	if err != nil {
		return NoNode, false, WrapLookupError("resolve", int64(id), err)
	}
	if !ok {
		return NoNode, false, nil
	}
	return addRecord(tree, rec), true, nil
}

// parentOf returns the parent of ref, fetching and linking it when it has not
// been attached yet.
func (r *Resolver) parentOf(ctx context.Context, tree *Tree, ref NodeRef) (NodeRef, error) {
	if p, ok := tree.Parent(ref); ok {
		return p, nil
	}

	rec, ok, err := r.src.Taxon(ctx, tree.ID(ref))
	if err != nil {
		return NoNode, err
	}
	if !ok {
		return NoNode, fmt.Errorf("taxon %d: %w", tree.ID(ref), ErrNodeNotFound)
	}
	if rec.IsRoot() {
		return tree.AddRoot(rec.ID, rec.Name), nil
	}

	prec, ok, err := r.src.Taxon(ctx, rec.Parent)
	if err != nil {
		return NoNode, err
	}
	if !ok {
		return NoNode, fmt.Errorf("parent %d of taxon %d: %w", rec.Parent, rec.ID, ErrNodeNotFound)
	}
	parent := addRecord(tree, prec)
	tree.Link(parent, ref)
	return parent, nil
}

// maxLineageDepth bounds parent walks over persisted data, which is not
// guaranteed to be acyclic.
const maxLineageDepth = 256

var errLineageTooDeep = fmt.Errorf("lineage deeper than %d levels", maxLineageDepth)

func addRecord(tree *Tree, rec Record) NodeRef {
	if rec.IsRoot() {
		return tree.AddRoot(rec.ID, rec.Name)
	}
	return tree.Add(rec.ID, rec.Rank, rec.Name)
}
