package parsimony

import (
	"github.com/partree/partree/pkg/align"
	"github.com/partree/partree/pkg/errors"
	"github.com/partree/partree/pkg/phylo"
)

// Engine computes parsimony scores for trees over a fixed character matrix.
// It is cheap to construct and carries no per-topology state; topology-bound
// state lives in [Prep]. An Engine is not safe for concurrent use because
// full-score queries share a scratch buffer — independent search runs should
// each build their own.
type Engine struct {
	mat      *align.Matrix
	nTips    int
	nPat     int
	states   int
	weights  []int
	contrast []uint32
	tips     [][]uint32 // tips[id] is the state row for tip id, index 0 unused

	// firstUnit is the start of the trailing run of weight-1 patterns, per
	// unitSuffix. Everything at or after this index charges exactly 1 per
	// change, so batched comparisons can skip the weight lookup there.
	firstUnit int

	scratch []uint32 // node-state buffer reused by full-score queries
	counts  []int32  // per-site change counts reused by full-score queries
}

// New builds an engine over the matrix. The number of canonical states is
// taken from the matrix; masks must fit it. Weights must be non-negative
// (zero only appears in ratchet-perturbed weight vectors).
func New(mat *align.Matrix) (*Engine, error) {
	if mat.NTaxa() < 3 {
		return nil, errors.New(errors.ErrCodeTreeTooSmall,
			"matrix has %d taxa, need at least 3", mat.NTaxa())
	}
	if mat.States < 2 || mat.States > 32 {
		return nil, errors.New(errors.ErrCodeInvalidAlphabet,
			"%d states per site, want 2..32", mat.States)
	}
	limit := uint32(1)<<uint(mat.States) - 1
	for _, m := range mat.Contrast[1:] {
		if m == 0 || m&^limit != 0 {
			return nil, errors.New(errors.ErrCodeInvalidAlphabet,
				"contrast mask %#x outside %d-state range", m, mat.States)
		}
	}
	for _, w := range mat.Weights {
		if w < 0 {
			return nil, errors.New(errors.ErrCodeInvalidOption, "negative pattern weight")
		}
	}

	e := &Engine{
		mat:      mat,
		nTips:    mat.NTaxa(),
		nPat:     mat.NPatterns(),
		states:   mat.States,
		weights:  mat.Weights,
		contrast: mat.Contrast,
	}
	e.firstUnit = unitSuffix(e.weights)

	// Decode each taxon row once; the per-site loops then touch nothing
	// but flat uint32 slices.
	e.tips = make([][]uint32, e.nTips+1)
	for taxon := 0; taxon < e.nTips; taxon++ {
		row := make([]uint32, e.nPat)
		codes := mat.Codes[taxon]
		for p := range row {
			row[p] = e.contrast[codes[p]]
		}
		e.tips[taxon+1] = row
	}

	arena := 2 * e.nTips
	e.scratch = make([]uint32, arena*e.nPat)
	e.counts = make([]int32, e.nPat)
	return e, nil
}

// Matrix returns the matrix the engine scores against.
func (e *Engine) Matrix() *align.Matrix { return e.mat }

// NTips returns the size of the taxon set the engine requires of trees.
func (e *Engine) NTips() int { return e.nTips }

// WithWeights returns an engine over the same characters with a different
// pattern weight vector, sharing the decoded tip rows. Used by the ratchet
// to score under perturbed weights without re-encoding the matrix.
func (e *Engine) WithWeights(w []int) (*Engine, error) {
	if len(w) != e.nPat {
		return nil, errors.New(errors.ErrCodeInvalidOption,
			"weight vector has %d entries, matrix has %d patterns", len(w), e.nPat)
	}
	out := *e
	out.mat = e.mat.WithWeights(w)
	out.weights = out.mat.Weights
	out.firstUnit = unitSuffix(out.weights)
	out.scratch = make([]uint32, len(e.scratch))
	out.counts = make([]int32, e.nPat)
	return &out, nil
}

// unitSuffix returns the start of the trailing run of weights that are
// exactly 1. Only patterns in that suffix may take the `score++` shortcut in
// [Prep.BestInsertion]: ratchet weight vectors are not sorted, so a weight-1
// entry can be followed by a heavier one and disqualifies nothing before it.
func unitSuffix(weights []int) int {
	first := len(weights)
	for i := len(weights) - 1; i >= 0 && weights[i] == 1; i-- {
		first = i
	}
	return first
}

// checkTree rejects trees over a different taxon set before any scoring.
func (e *Engine) checkTree(t *phylo.Tree) error {
	if t.NTips() != e.nTips {
		return errors.New(errors.ErrCodeTaxonMismatch,
			"tree has %d tips, matrix has %d taxa", t.NTips(), e.nTips)
	}
	return nil
}

// Score returns the total parsimony score of the tree: the weighted sum of
// per-site change counts from one bottom-up Fitch pass.
func (e *Engine) Score(t *phylo.Tree) (int, error) {
	counts, err := e.siteCounts(t)
	if err != nil {
		return 0, err
	}
	return e.weighted(counts), nil
}

// SiteScores returns the per-pattern change counts (unweighted) of the tree,
// aligned with the matrix pattern order.
func (e *Engine) SiteScores(t *phylo.Tree) ([]int, error) {
	counts, err := e.siteCounts(t)
	if err != nil {
		return nil, err
	}
	out := make([]int, e.nPat)
	for i, c := range counts {
		out[i] = int(c)
	}
	return out, nil
}

// siteCounts runs the bottom-up pass into the shared scratch buffer.
func (e *Engine) siteCounts(t *phylo.Tree) ([]int32, error) {
	if err := e.checkTree(t); err != nil {
		return nil, err
	}
	for i := range e.counts {
		e.counts[i] = 0
	}
	e.fitchDown(t.Postorder(), t.Cap(), e.scratch, e.counts)
	return e.counts, nil
}

// fitchDown folds child state sets upward along a postorder edge list.
// buf receives the state row of every node touched; counts accumulates one
// change per site for every union taken. Tip rows are copied into buf so
// callers can treat all rows uniformly.
func (e *Engine) fitchDown(edges []phylo.Edge, arena int, buf []uint32, counts []int32) {
	nPat := e.nPat
	started := make([]bool, arena)
	for _, ed := range edges {
		var child []uint32
		if ed.Child <= e.nTips {
			child = e.tips[ed.Child]
			copy(buf[ed.Child*nPat:(ed.Child+1)*nPat], child)
		} else {
			child = buf[ed.Child*nPat : (ed.Child+1)*nPat]
		}
		dst := buf[ed.Parent*nPat : (ed.Parent+1)*nPat]
		if !started[ed.Parent] {
			copy(dst, child)
			started[ed.Parent] = true
			continue
		}
		for s, cs := range child {
			if inter := dst[s] & cs; inter != 0 {
				dst[s] = inter
			} else {
				dst[s] |= cs
				counts[s]++
			}
		}
	}
}

// weighted folds per-site counts into the total score.
func (e *Engine) weighted(counts []int32) int {
	total := 0
	for s, c := range counts {
		total += int(c) * e.weights[s]
	}
	return total
}

// Profile is the Fitch summary of a detached subtree: its state set per
// pattern and the weighted cost already incurred inside it. Combined with a
// [Prep] of the remaining tree it prices every reattachment point.
type Profile struct {
	Set  []uint32
	Cost int
}

// TipProfile returns the profile of a bare tip: its contrast row, cost zero.
func (e *Engine) TipProfile(tip int) (Profile, error) {
	if tip < 1 || tip > e.nTips {
		return Profile{}, errors.New(errors.ErrCodeTaxonMismatch, "tip %d out of 1..%d", tip, e.nTips)
	}
	return Profile{Set: e.tips[tip]}, nil
}

// SubtreeProfile computes the profile of the detached subtree of t rooted at
// v, as left in place by [phylo.Tree.Prune]. For a tip it is equivalent to
// [Engine.TipProfile].
func (e *Engine) SubtreeProfile(t *phylo.Tree, v int) (Profile, error) {
	if v <= e.nTips {
		return e.TipProfile(v)
	}
	// Postorder over the detached component only.
	var edges []phylo.Edge
	var walk func(node int)
	walk = func(node int) {
		for _, c := range t.Children(node) {
			walk(c)
			edges = append(edges, phylo.Edge{Parent: node, Child: c})
		}
	}
	walk(v)

	buf := make([]uint32, t.Cap()*e.nPat)
	counts := make([]int32, e.nPat)
	e.fitchDown(edges, t.Cap(), buf, counts)
	set := make([]uint32, e.nPat)
	copy(set, buf[v*e.nPat:(v+1)*e.nPat])
	return Profile{Set: set, Cost: e.weighted(counts)}, nil
}
