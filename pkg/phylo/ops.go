package phylo

import (
	"errors"
	"fmt"
)

// ErrDegeneratePrune is returned by [Tree.Prune] when detaching the subtree
// would leave the remaining tree rooted at a single tip. Such prunes are
// skipped by the search rather than treated as failures.
var ErrDegeneratePrune = errors.New("prune would degenerate the tree")

// Graft inserts tip as the sibling of the subtree reached by edge e,
// creating one new internal node on e. The tip must currently be detached.
// Returns the id of the new internal node.
func (t *Tree) Graft(tip int, e Edge) (int, error) {
	if !t.IsTip(tip) {
		return 0, fmt.Errorf("%w: %d is not a tip", ErrBadNode, tip)
	}
	if t.parent[tip] != 0 {
		return 0, fmt.Errorf("%w: tip %d is already attached", ErrBadNode, tip)
	}
	return t.Regraft(tip, e)
}

// Prune detaches the subtree rooted at v. The parent of v becomes a
// degree-two node and is spliced out: its other two neighbors are joined
// into a single edge and its id is released for reuse. When v hangs off the
// root, the root's other child takes over as root instead.
//
// The detached subtree keeps its internal structure; v stays its root and
// can be reinserted with [Tree.Regraft]. The returned edge is the splice
// point: regrafting v there restores the original topology exactly. A
// returned edge with Parent == 0 means "above the current root".
func (t *Tree) Prune(v int) (Edge, error) {
	if v == t.root {
		return Edge{}, fmt.Errorf("%w: cannot prune the root", ErrBadNode)
	}
	p := t.parent[v]
	if p == 0 {
		return Edge{}, fmt.Errorf("%w: node %d is detached", ErrBadNode, v)
	}
	w := t.Sibling(v)

	if p == t.root {
		if t.IsTip(w) {
			return Edge{}, ErrDegeneratePrune
		}
		t.parent[v] = 0
		t.parent[w] = 0
		t.setKids(p, 0, 0)
		t.root = w
		t.free = append(t.free, p)
		return Edge{0, w}, nil
	}

	g := t.parent[p]
	t.replaceKid(g, p, w)
	t.parent[w] = g
	t.parent[v] = 0
	t.parent[p] = 0
	t.setKids(p, 0, 0)
	t.free = append(t.free, p)
	return Edge{g, w}, nil
}

// Regraft attaches the detached subtree rooted at v onto edge e, reusing a
// freed internal id for the node that subdivides e. An edge with Parent == 0
// attaches v above the current root, making the new node the root — the
// inverse of pruning a child of the root.
func (t *Tree) Regraft(v int, e Edge) (int, error) {
	if v < 1 || v >= t.Cap() || t.parent[v] != 0 || v == t.root {
		return 0, fmt.Errorf("%w: %d is not a detached subtree root", ErrBadNode, v)
	}
	if e.Parent == 0 {
		if e.Child != t.root {
			return 0, fmt.Errorf("%w: %d is not the root", ErrBadEdge, e.Child)
		}
		x, ok := t.popFree()
		if !ok {
			return 0, fmt.Errorf("%w: no free internal id", ErrBadNode)
		}
		t.setKids(x, e.Child, v)
		t.parent[e.Child] = x
		t.parent[v] = x
		t.root = x
		return x, nil
	}
	if !t.HasEdge(e) {
		return 0, fmt.Errorf("%w: %d→%d", ErrBadEdge, e.Parent, e.Child)
	}
	x, ok := t.popFree()
	if !ok {
		return 0, fmt.Errorf("%w: no free internal id", ErrBadNode)
	}
	t.replaceKid(e.Parent, e.Child, x)
	t.parent[x] = e.Parent
	t.setKids(x, e.Child, v)
	t.parent[e.Child] = x
	t.parent[v] = x
	return x, nil
}

// SwapEdge exchanges the positions of subtrees a and b: each is re-hung
// under the other's parent. This is the NNI primitive — for an internal
// edge, swapping a child from one side with a subtree from the other side
// yields one of the edge's two nearest-neighbor interchanges. Neither node
// may be an ancestor of the other; the search guarantees this by always
// swapping across a single internal edge.
func (t *Tree) SwapEdge(a, b int) error {
	pa, pb := t.parent[a], t.parent[b]
	if pa == 0 || pb == 0 {
		return fmt.Errorf("%w: swap nodes must be attached non-roots", ErrBadNode)
	}
	if pa == pb {
		return fmt.Errorf("%w: %d and %d are siblings", ErrBadEdge, a, b)
	}
	t.replaceKid(pa, a, b)
	t.replaceKid(pb, b, a)
	t.parent[a] = pb
	t.parent[b] = pa
	return nil
}

// Reroot moves the designated root onto the edge above v, relabeling parent
// links accordingly. The unrooted topology — and therefore the parsimony
// score — is unchanged; only the traversal orientation moves. Rerooting at
// the root itself or at one of its children is a no-op, since the root
// already subdivides that edge.
func (t *Tree) Reroot(v int) error {
	if v < 1 || v >= t.Cap() {
		return fmt.Errorf("%w: %d", ErrBadNode, v)
	}
	if v == t.root {
		return nil
	}
	if t.parent[v] == 0 {
		return fmt.Errorf("%w: node %d is detached", ErrBadNode, v)
	}
	if t.parent[v] == t.root {
		return nil
	}

	// Neighbor lists of the unrooted topology, with the current root
	// suppressed (its two children joined).
	adj := make([][]int, t.Cap())
	link := func(a, b int) {
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}
	c1, c2 := t.kids[2*t.root], t.kids[2*t.root+1]
	link(c1, c2)
	for id := 1; id < t.Cap(); id++ {
		if p := t.parent[id]; p != 0 && p != t.root {
			link(p, id)
		}
	}

	// u is v's neighbor on the far side of the new root position.
	u := t.parent[v]
	if u == t.root {
		u = t.Sibling(v)
	}

	// Re-orient everything away from the root's new position.
	root := t.root
	for i := range t.parent {
		t.parent[i] = 0
	}
	for i := range t.kids {
		t.kids[i] = 0
	}
	t.setKids(root, u, v)
	t.parent[u] = root
	t.parent[v] = root
	var orient func(node, from int)
	orient = func(node, from int) {
		for _, n := range adj[node] {
			if n == from {
				continue
			}
			t.addKid(node, n)
			t.parent[n] = node
			orient(n, node)
		}
	}
	orient(v, u)
	orient(u, v)
	return nil
}
