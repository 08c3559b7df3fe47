package parsimony

import (
	"math"

	"github.com/partree/partree/pkg/phylo"
)

// Prep is the prepared scoring context for one fixed topology. It holds the
// bottom-up Fitch set of every node (the state set of the subtree below it)
// and the top-down set (the state set of the rest of the tree with that
// subtree excised). Together these price insertions and nearest-neighbor
// interchanges exactly, in O(patterns) per candidate.
//
// A Prep is a snapshot: any edit to the tree it was prepared from makes it
// stale, and batched answers from a stale Prep are meaningless. Prepare again
// after every Graft, Prune, Regraft or SwapEdge.
type Prep struct {
	eng   *Engine
	tree  *phylo.Tree
	edges []phylo.Edge // postorder snapshot, one entry per non-root node
	down  []uint32     // down[v*nPat+s], subtree state sets
	up    []uint32     // up[v*nPat+s], complement state sets, root row unused
	total int
}

// Prepare runs the two Fitch passes over t and returns the batched scoring
// context. The bottom-up pass is the same fold [Engine.Score] runs; the
// top-down pass derives each node's complement set from its parent's
// complement and its sibling's subtree set.
func (e *Engine) Prepare(t *phylo.Tree) (*Prep, error) {
	if err := e.checkTree(t); err != nil {
		return nil, err
	}
	nPat := e.nPat
	p := &Prep{
		eng:   e,
		tree:  t,
		edges: t.Postorder(),
		down:  make([]uint32, t.Cap()*nPat),
		up:    make([]uint32, t.Cap()*nPat),
	}
	counts := make([]int32, nPat)
	e.fitchDown(p.edges, t.Cap(), p.down, counts)
	p.total = e.weighted(counts)

	// Reverse postorder visits every parent before its children, so each
	// node's complement set is ready when its children need it. The change
	// counts here would double-book changes already charged bottom-up, so
	// this pass only folds sets.
	root := t.Root()
	for i := len(p.edges) - 1; i >= 0; i-- {
		ed := p.edges[i]
		sib := p.down[t.Sibling(ed.Child)*nPat : (t.Sibling(ed.Child)+1)*nPat]
		dst := p.up[ed.Child*nPat : (ed.Child+1)*nPat]
		if ed.Parent == root {
			copy(dst, sib)
			continue
		}
		par := p.up[ed.Parent*nPat : (ed.Parent+1)*nPat]
		for s := range dst {
			if inter := par[s] & sib[s]; inter != 0 {
				dst[s] = inter
			} else {
				dst[s] = par[s] | sib[s]
			}
		}
	}
	return p, nil
}

// Score returns the total parsimony score of the prepared topology.
func (p *Prep) Score() int { return p.total }

// Edges returns the prepared topology's edges in postorder. Indices into this
// slice identify insertion points for [Prep.InsertScores] and
// [Prep.BestInsertion].
func (p *Prep) Edges() []phylo.Edge {
	return append([]phylo.Edge(nil), p.edges...)
}

// edgeSet writes the state set of edge i, the fold of the two directional
// sets meeting there, into out.
func (p *Prep) edgeSet(i int, out []uint32) {
	nPat := p.eng.nPat
	v := p.edges[i].Child
	down := p.down[v*nPat : (v+1)*nPat]
	up := p.up[v*nPat : (v+1)*nPat]
	for s := range out {
		if inter := down[s] & up[s]; inter != 0 {
			out[s] = inter
		} else {
			out[s] = down[s] | up[s]
		}
	}
}

// InsertScores returns, for every edge of the prepared topology, the exact
// total score of the tree formed by subdividing that edge and attaching the
// profiled subtree there. Result indices align with [Prep.Edges]. The two
// edges below the root describe the same unrooted branch and always price
// identically.
func (p *Prep) InsertScores(pr Profile) []int {
	nPat := p.eng.nPat
	weights := p.eng.weights
	out := make([]int, len(p.edges))
	set := make([]uint32, nPat)
	for i := range p.edges {
		p.edgeSet(i, set)
		score := p.total + pr.Cost
		for s, f := range set {
			if pr.Set[s]&f == 0 {
				score += weights[s]
			}
		}
		out[i] = score
	}
	return out
}

// BestInsertion returns the index of the edge whose insertion score is
// lowest, together with that score. Ties go to the earliest edge in postorder.
// Candidates are abandoned as soon as their running score reaches the best
// found, which with heavy patterns sorted first prunes most of the scan.
func (p *Prep) BestInsertion(pr Profile) (int, int) {
	nPat := p.eng.nPat
	weights := p.eng.weights
	firstUnit := p.eng.firstUnit
	bestEdge, best := -1, math.MaxInt
	set := make([]uint32, nPat)
	for i := range p.edges {
		p.edgeSet(i, set)
		score := p.total + pr.Cost
		if score >= best {
			continue
		}
		ok := true
		for s, f := range set {
			if pr.Set[s]&f != 0 {
				continue
			}
			if s < firstUnit {
				score += weights[s]
			} else {
				score++
			}
			if score >= best {
				ok = false
				break
			}
		}
		if ok && score < best {
			bestEdge, best = i, score
		}
	}
	return bestEdge, best
}

// NNIMove is one nearest-neighbor interchange across an internal edge of the
// prepared topology: exchanging the parents of SwapA and SwapB. Delta is the
// exact score change; negative means the move improves the tree.
type NNIMove struct {
	Edge         phylo.Edge
	SwapA, SwapB int
	Delta        int
}

// NNIMoves prices both interchanges across every internal edge of the
// prepared topology. The branch the root subdivides counts as one internal
// edge when both root children are internal. Moves are returned in no
// particular order; apply one with [phylo.Tree.SwapEdge] and prepare again.
func (p *Prep) NNIMoves() []NNIMove {
	t := p.tree
	nPat := p.eng.nPat
	root := t.Root()
	var moves []NNIMove

	row := func(buf []uint32, v int) []uint32 { return buf[v*nPat : (v+1)*nPat] }

	for _, v := range t.PostorderNodes() {
		if t.IsTip(v) || v == root {
			continue
		}
		u := t.Parent(v)
		if u == root {
			continue // the root-subdivided branch is handled below
		}
		kids := t.Children(v)
		x1, x2 := kids[0], kids[1]
		w := t.Sibling(v)
		a, b := row(p.down, x1), row(p.down, x2)
		c, d := row(p.down, w), row(p.up, u)
		cur := p.pairCost(a, b, c, d)
		moves = append(moves,
			NNIMove{Edge: phylo.Edge{Parent: u, Child: v}, SwapA: x1, SwapB: w, Delta: p.pairCost(b, c, a, d) - cur},
			NNIMove{Edge: phylo.Edge{Parent: u, Child: v}, SwapA: x2, SwapB: w, Delta: p.pairCost(a, c, b, d) - cur},
		)
	}

	rk := t.Children(root)
	v, w := rk[0], rk[1]
	if !t.IsTip(v) && !t.IsTip(w) {
		vk, wk := t.Children(v), t.Children(w)
		a, b := row(p.down, vk[0]), row(p.down, vk[1])
		c, d := row(p.down, wk[0]), row(p.down, wk[1])
		cur := p.pairCost(a, b, c, d)
		moves = append(moves,
			NNIMove{Edge: phylo.Edge{Parent: root, Child: v}, SwapA: vk[0], SwapB: wk[0], Delta: p.pairCost(b, c, a, d) - cur},
			NNIMove{Edge: phylo.Edge{Parent: root, Child: v}, SwapA: vk[0], SwapB: wk[1], Delta: p.pairCost(a, c, b, d) - cur},
		)
	}
	return moves
}

// pairCost is the exact junction cost of pairing (a,b) on one side of an
// edge and (c,d) on the other: one change per empty intersection, weighted.
func (p *Prep) pairCost(a, b, c, d []uint32) int {
	weights := p.eng.weights
	total := 0
	for s := range a {
		cost := 0
		ab := a[s] & b[s]
		if ab == 0 {
			ab = a[s] | b[s]
			cost++
		}
		cd := c[s] & d[s]
		if cd == 0 {
			cd = c[s] | d[s]
			cost++
		}
		if ab&cd == 0 {
			cost++
		}
		total += cost * weights[s]
	}
	return total
}
