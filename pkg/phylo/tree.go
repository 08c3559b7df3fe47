package phylo

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrTooSmall is returned when a tree or taxon set has fewer than three
	// tips. Nothing below that size has a bifurcating topology to speak of.
	ErrTooSmall = errors.New("tree needs at least 3 tips")

	// ErrNotBinary is returned by [FromEdges] when the edge list does not
	// describe a strictly bifurcating tree. Polytomies must be resolved
	// before a tree enters the search.
	ErrNotBinary = errors.New("tree is not bifurcating")

	// ErrBadNode is returned when a node id is out of range for the arena,
	// references a freed id, or is otherwise not where the caller claims.
	ErrBadNode = errors.New("invalid node id")

	// ErrBadEdge is returned when an (parent, child) pair is not an edge of
	// the tree.
	ErrBadEdge = errors.New("invalid edge")
)

// Edge is a directed parent→child pair in the rooted view of the tree.
type Edge struct {
	Parent int
	Child  int
}

// Tree is a strictly bifurcating tree over tips 1..nTips, stored as an
// arena indexed by node id. Index 0 is unused. The root has exactly two
// children; every other internal node has a parent and exactly two children.
//
// The zero value is not usable — build trees with [NewTriple] or [FromEdges].
// Tree is not safe for concurrent use.
type Tree struct {
	nTips  int
	root   int
	parent []int   // parent[id], 0 for the root and detached nodes
	kids   []int   // flattened children: kids[2*id], kids[2*id+1], 0 = none
	free   []int   // internal ids available for reuse
}

// arenaCap returns the arena size for n tips: ids 1..2n−1 plus unused slot 0.
func arenaCap(nTips int) int { return 2 * nTips }

// NewTriple creates the unique tree over three of the eventual nTips taxa:
// tips a, b and c joined at a single internal node, with the root placed on
// the edge above a. This is the seed topology for stepwise addition.
func NewTriple(a, b, c, nTips int) (*Tree, error) {
	if nTips < 3 {
		return nil, ErrTooSmall
	}
	for _, tip := range []int{a, b, c} {
		if tip < 1 || tip > nTips {
			return nil, fmt.Errorf("%w: tip %d out of 1..%d", ErrBadNode, tip, nTips)
		}
	}
	if a == b || a == c || b == c {
		return nil, fmt.Errorf("%w: tips must be distinct", ErrBadNode)
	}

	t := &Tree{
		nTips:  nTips,
		root:   nTips + 1,
		parent: make([]int, arenaCap(nTips)),
		kids:   make([]int, 2*arenaCap(nTips)),
	}
	x := nTips + 2
	t.setKids(t.root, a, x)
	t.setKids(x, b, c)
	t.parent[a] = t.root
	t.parent[x] = t.root
	t.parent[b] = x
	t.parent[c] = x

	// Remaining internal ids become available for grafts, smallest first.
	for id := 2*nTips - 1; id >= nTips+3; id-- {
		t.free = append(t.free, id)
	}
	return t, nil
}

// FromEdges builds a tree from a directed edge list over tips 1..nTips and
// internal ids nTips+1..2·nTips−1 rooted at root. The edge list may be in
// any order. Returns ErrNotBinary if the result is not strictly bifurcating,
// ErrTooSmall for fewer than three tips.
func FromEdges(nTips, root int, edges []Edge) (*Tree, error) {
	if nTips < 3 {
		return nil, ErrTooSmall
	}
	arena := arenaCap(nTips)
	if root <= nTips || root >= arena {
		return nil, fmt.Errorf("%w: root %d", ErrBadNode, root)
	}
	t := &Tree{
		nTips:  nTips,
		root:   root,
		parent: make([]int, arena),
		kids:   make([]int, 2*arena),
	}
	used := make([]bool, arena)
	used[root] = true
	for _, e := range edges {
		if e.Parent < 1 || e.Parent >= arena || e.Child < 1 || e.Child >= arena {
			return nil, fmt.Errorf("%w: edge %d→%d", ErrBadNode, e.Parent, e.Child)
		}
		if e.Parent <= nTips {
			return nil, fmt.Errorf("%w: tip %d has children", ErrNotBinary, e.Parent)
		}
		if t.parent[e.Child] != 0 || e.Child == root {
			return nil, fmt.Errorf("%w: node %d has two parents", ErrNotBinary, e.Child)
		}
		if !t.addKid(e.Parent, e.Child) {
			return nil, fmt.Errorf("%w: node %d has more than 2 children", ErrNotBinary, e.Parent)
		}
		t.parent[e.Child] = e.Parent
		used[e.Parent], used[e.Child] = true, true
	}
	for id := arena - 1; id > nTips; id-- {
		if !used[id] {
			t.free = append(t.free, id)
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// NTips returns the number of tips the tree is defined over.
func (t *Tree) NTips() int { return t.nTips }

// Root returns the id of the designated root node.
func (t *Tree) Root() int { return t.root }

// Cap returns the arena capacity: node ids are always below Cap.
// Scoring buffers indexed by node id can be sized once with this.
func (t *Tree) Cap() int { return arenaCap(t.nTips) }

// IsTip reports whether id denotes a leaf taxon.
func (t *Tree) IsTip(id int) bool { return id >= 1 && id <= t.nTips }

// Parent returns the parent of id, or 0 for the root and detached nodes.
func (t *Tree) Parent(id int) int { return t.parent[id] }

// Children returns the children of id as a slice of length 0, 1 or 2.
// The result aliases internal storage only by value; it is freshly allocated.
func (t *Tree) Children(id int) []int {
	a, b := t.kids[2*id], t.kids[2*id+1]
	switch {
	case a == 0 && b == 0:
		return nil
	case b == 0:
		return []int{a}
	case a == 0:
		return []int{b}
	}
	return []int{a, b}
}

// Sibling returns the other child of id's parent, or 0 if id is the root.
func (t *Tree) Sibling(id int) int {
	p := t.parent[id]
	if p == 0 {
		return 0
	}
	if t.kids[2*p] == id {
		return t.kids[2*p+1]
	}
	return t.kids[2*p]
}

// Postorder returns the edge list in postorder: every edge below a node
// appears before the edge into that node. This is the traversal order the
// Fitch bottom-up pass consumes. The root contributes no incoming edge, so
// the list has one entry per non-root node in the tree.
func (t *Tree) Postorder() []Edge {
	edges := make([]Edge, 0, 2*t.nTips-2)
	// Iterative DFS; emit the edge into a node when the node is left.
	type frame struct{ node, next int }
	stack := []frame{{t.root, 0}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		ch := t.childAt(top.node, top.next)
		if ch != 0 {
			top.next++
			stack = append(stack, frame{ch, 0})
			continue
		}
		stack = stack[:len(stack)-1]
		if p := t.parent[top.node]; p != 0 {
			edges = append(edges, Edge{p, top.node})
		}
	}
	return edges
}

// PostorderNodes returns all nodes of the tree with children before parents,
// ending at the root.
func (t *Tree) PostorderNodes() []int {
	edges := t.Postorder()
	nodes := make([]int, 0, len(edges)+1)
	for _, e := range edges {
		nodes = append(nodes, e.Child)
	}
	return append(nodes, t.root)
}

// HasEdge reports whether (parent, child) is a current edge of the tree.
func (t *Tree) HasEdge(e Edge) bool {
	return e.Child >= 1 && e.Child < t.Cap() && t.parent[e.Child] == e.Parent && e.Parent != 0
}

// Clone returns a deep copy sharing no state with t.
func (t *Tree) Clone() *Tree {
	return &Tree{
		nTips:  t.nTips,
		root:   t.root,
		parent: slices.Clone(t.parent),
		kids:   slices.Clone(t.kids),
		free:   slices.Clone(t.free),
	}
}

// Validate checks the bifurcating invariant: the root has exactly two
// children, every reachable internal node exactly two, tips none, and all
// nTips tips are reachable from the root. Returns ErrNotBinary or ErrBadNode
// on violations.
func (t *Tree) Validate() error {
	seenTips := 0
	seen := make([]bool, t.Cap())
	stack := []int{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			return fmt.Errorf("%w: node %d visited twice", ErrBadNode, n)
		}
		seen[n] = true
		kids := t.Children(n)
		if t.IsTip(n) {
			if len(kids) != 0 {
				return fmt.Errorf("%w: tip %d has children", ErrNotBinary, n)
			}
			seenTips++
			continue
		}
		if len(kids) != 2 {
			return fmt.Errorf("%w: internal node %d has %d children", ErrNotBinary, n, len(kids))
		}
		for _, c := range kids {
			if t.parent[c] != n {
				return fmt.Errorf("%w: parent link of %d broken", ErrBadNode, c)
			}
			stack = append(stack, c)
		}
	}
	if seenTips != t.nTips {
		return fmt.Errorf("%w: %d of %d tips reachable", ErrBadNode, seenTips, t.nTips)
	}
	return nil
}

// childAt returns the i-th child (0 or 1) of node, or 0 when exhausted.
func (t *Tree) childAt(node, i int) int {
	if i > 1 {
		return 0
	}
	// Skip over a cleared slot so single-child states during edits iterate.
	a, b := t.kids[2*node], t.kids[2*node+1]
	if i == 0 {
		if a != 0 {
			return a
		}
		return b
	}
	if a != 0 {
		return b
	}
	return 0
}

func (t *Tree) setKids(node, a, b int) {
	t.kids[2*node] = a
	t.kids[2*node+1] = b
}

// addKid appends a child slot, reporting false when both slots are taken.
func (t *Tree) addKid(node, child int) bool {
	switch {
	case t.kids[2*node] == 0:
		t.kids[2*node] = child
	case t.kids[2*node+1] == 0:
		t.kids[2*node+1] = child
	default:
		return false
	}
	return true
}

// replaceKid swaps child old for new under node, preserving slot order.
func (t *Tree) replaceKid(node, old, new int) bool {
	switch {
	case t.kids[2*node] == old:
		t.kids[2*node] = new
	case t.kids[2*node+1] == old:
		t.kids[2*node+1] = new
	default:
		return false
	}
	return true
}

// popFree takes an internal id off the reuse stack.
func (t *Tree) popFree() (int, bool) {
	if len(t.free) == 0 {
		return 0, false
	}
	id := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	return id, true
}
