package taxonomy

import (
	"fmt"
	"slices"
	"strings"
)

// TaxID is the integer identifier of a taxonomic unit.
type TaxID int64

// NodeRef addresses a node inside a Tree. Refs are only meaningful for the
// tree that issued them.
type NodeRef int32

// NoNode is the zero-information ref returned when a node is absent.
const NoNode NodeRef = -1

// node is one taxonomic unit stored in a Tree.
type node struct {
	ID   TaxID
	Rank Rank
	Name string

	parent   NodeRef
	children []NodeRef
	root     bool
}

// Tree is an arena of taxonomy nodes addressed by NodeRef. Parent and child
// links are stored as refs, so moving a focus pointer up the tree is a plain
// index lookup.
//
// A Tree is not safe for concurrent mutation. Once populated it may be read
// from several goroutines.
type Tree struct {
	nodes []node
	index map[TaxID]NodeRef
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{index: make(map[TaxID]NodeRef)}
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Add inserts a node without links and returns its ref. Adding an id that is
// already present returns the existing ref unchanged.
func (t *Tree) Add(id TaxID, rank Rank, name string) NodeRef {
	if ref, ok := t.index[id]; ok {
		return ref
	}
	ref := NodeRef(len(t.nodes))
	t.nodes = append(t.nodes, node{ID: id, Rank: rank, Name: name, parent: NoNode})
	t.index[id] = ref
	return ref
}

// AddRoot inserts the root of life. The root is its own parent.
func (t *Tree) AddRoot(id TaxID, name string) NodeRef {
	ref := t.Add(id, RankRoot, name)
	n := &t.nodes[ref]
	n.Rank = RankRoot
	n.parent = ref
	n.root = true
	return ref
}

// Lookup returns the ref for id, if the node has been added.
func (t *Tree) Lookup(id TaxID) (NodeRef, bool) {
	ref, ok := t.index[id]
	return ref, ok
}

// ID returns the taxonomic id of the node at ref.
func (t *Tree) ID(ref NodeRef) TaxID {
	return t.nodes[ref].ID
}

// Rank returns the rank of the node at ref.
func (t *Tree) Rank(ref NodeRef) Rank {
	return t.nodes[ref].Rank
}

// Name returns the scientific name of the node at ref.
func (t *Tree) Name(ref NodeRef) string {
	return t.nodes[ref].Name
}

// IsRoot reports whether the node at ref is the root of life.
func (t *Tree) IsRoot(ref NodeRef) bool {
	return t.nodes[ref].root
}

// Parent returns the parent of ref. The root returns itself. ok is false when
// the parent has not been attached yet.
func (t *Tree) Parent(ref NodeRef) (NodeRef, bool) {
	p := t.nodes[ref].parent
	return p, p != NoNode
}

// Children returns the direct children attached to ref.
func (t *Tree) Children(ref NodeRef) []NodeRef {
	return slices.Clone(t.nodes[ref].children)
}

// SetParent records parent as the parent of child. It does not touch the
// parent's child list; use Link to set both sides.
func (t *Tree) SetParent(child, parent NodeRef) {
	t.nodes[child].parent = parent
}

// AddChild appends child to the child list of parent. It does not set the
// child's parent pointer; use Link to set both sides.
func (t *Tree) AddChild(parent, child NodeRef) {
	if slices.Contains(t.nodes[parent].children, child) {
		return
	}
	t.nodes[parent].children = append(t.nodes[parent].children, child)
}

// Link makes parent the parent of child and child a child of parent.
func (t *Tree) Link(parent, child NodeRef) {
	if parent == child {
		return
	}
	t.SetParent(child, parent)
	t.AddChild(parent, child)
}

// IsAncestorOf reports whether any node below ref, direct or transitive,
// carries the id candidate. The node itself is not its own ancestor.
func (t *Tree) IsAncestorOf(ref NodeRef, candidate TaxID) bool {
	stack := slices.Clone(t.nodes[ref].children)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.nodes[cur].ID == candidate {
			return true
		}
		stack = append(stack, t.nodes[cur].children...)
	}
	return false
}

// IsDescendantOf walks the parent chain of ref looking for candidate. The
// root compares its own id since its parent is itself.
func (t *Tree) IsDescendantOf(ref NodeRef, candidate TaxID) bool {
	cur := ref
	for steps := 0; steps <= len(t.nodes); steps++ {
		n := t.nodes[cur]
		if n.root {
			return n.ID == candidate
		}
		if n.parent == NoNode {
			return false
		}
		if t.nodes[n.parent].ID == candidate {
			return true
		}
		cur = n.parent
	}
	return false
}

// Covers reports whether candidate is the node at ref or lies in its subtree.
func (t *Tree) Covers(ref NodeRef, candidate TaxID) bool {
	return t.nodes[ref].ID == candidate || t.IsAncestorOf(ref, candidate)
}

// Lineage returns the chain of refs from ref up to the root, or up to the
// highest attached ancestor when the lineage is incomplete.
func (t *Tree) Lineage(ref NodeRef) []NodeRef {
	lineage := []NodeRef{ref}
	cur := ref
	for len(lineage) <= len(t.nodes) {
		n := t.nodes[cur]
		if n.root || n.parent == NoNode {
			break
		}
		cur = n.parent
		lineage = append(lineage, cur)
	}
	return lineage
}

// FormatLineage renders the lineage of ref root-first, separated by sep.
func (t *Tree) FormatLineage(ref NodeRef, sep string) string {
	lineage := t.Lineage(ref)
	names := make([]string, 0, len(lineage))
	for i := len(lineage) - 1; i >= 0; i-- {
		names = append(names, t.nodes[lineage[i]].Name)
	}
	return strings.Join(names, sep)
}

// Validate checks link consistency, rank ordering and acyclicity. It returns
// one error describing every problem found, or nil.
func (t *Tree) Validate() error {
	var errs []string

	roots := 0
	for ref := range t.nodes {
		n := t.nodes[ref]
		if n.root {
			roots++
			if n.parent != NodeRef(ref) {
				errs = append(errs, fmt.Sprintf("root %d is not its own parent", n.ID))
			}
			continue
		}
		if n.parent == NoNode {
			continue
		}
		p := t.nodes[n.parent]
		if !slices.Contains(p.children, NodeRef(ref)) {
			errs = append(errs, fmt.Sprintf("node %d names parent %d, which does not list it as a child", n.ID, p.ID))
		}
		if n.Rank != RankNoRank && p.Rank != RankNoRank && p.Rank.MoreSpecificThan(n.Rank) {
			errs = append(errs, fmt.Sprintf("node %d (%s) sits below more specific parent %d (%s)", n.ID, n.Rank, p.ID, p.Rank))
		}
	}

	for ref := range t.nodes {
		for _, c := range t.nodes[ref].children {
			if t.nodes[c].parent != NodeRef(ref) {
				errs = append(errs, fmt.Sprintf("node %d lists child %d, whose parent is not %d", t.nodes[ref].ID, t.nodes[c].ID, t.nodes[ref].ID))
			}
		}
	}

	if roots > 1 {
		errs = append(errs, fmt.Sprintf("tree has %d roots, want at most 1", roots))
	}

	// A chain longer than the node count can only come from a cycle.
	for ref := range t.nodes {
		cur := NodeRef(ref)
		steps := 0
		for {
			n := t.nodes[cur]
			if n.root || n.parent == NoNode {
				break
			}
			cur = n.parent
			steps++
			if steps > len(t.nodes) {
				errs = append(errs, fmt.Sprintf("cycle detected above node %d", t.nodes[ref].ID))
				break
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("taxonomy tree validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
