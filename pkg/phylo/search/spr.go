package search

import (
	stderrors "errors"

	"github.com/partree/partree/pkg/phylo"
	"github.com/partree/partree/pkg/phylo/parsimony"
)

// SPR runs one subtree-pruning-and-regrafting sweep over t, mutating it in
// place. Candidate subtrees are taken from a snapshot of the tree, tips
// first and then internal nodes bottom-up. Each candidate is pruned, every
// reattachment edge of the reduced tree is priced in one batched pass, and
// the subtree goes back at the cheapest location, ties and no-gain cases
// resolving to where it came from. Accepted relocations are confirmed by a
// full rescore before they stand. Returns the final score and the number of
// accepted relocations.
func SPR(eng *parsimony.Engine, t *phylo.Tree) (int, int, error) {
	score, err := eng.Score(t)
	if err != nil {
		return 0, 0, err
	}
	if t.NTips() < 4 {
		return score, 0, nil
	}

	var tips, internals []int
	for _, v := range t.PostorderNodes() {
		switch {
		case t.IsTip(v):
			tips = append(tips, v)
		case v != t.Root():
			internals = append(internals, v)
		}
	}

	moves := 0
	for _, v := range append(tips, internals...) {
		if v == t.Root() {
			continue // a relocation may have promoted this node
		}
		origin, err := t.Prune(v)
		if stderrors.Is(err, phylo.ErrDegeneratePrune) {
			continue
		}
		if err != nil {
			return 0, moves, err
		}

		prep, err := eng.Prepare(t)
		if err != nil {
			return 0, moves, err
		}
		profile, err := eng.SubtreeProfile(t, v)
		if err != nil {
			return 0, moves, err
		}
		idx, best := prep.BestInsertion(profile)

		target := origin
		if idx >= 0 && best < score {
			target = prep.Edges()[idx]
		}
		if _, err := t.Regraft(v, target); err != nil {
			return 0, moves, err
		}
		if target == origin {
			continue
		}
		confirmed, err := eng.Score(t)
		if err != nil {
			return 0, moves, err
		}
		if confirmed < score {
			score = confirmed
			moves++
			continue
		}
		// Unconfirmed improvement: put the subtree back where it was.
		if _, err := t.Prune(v); err != nil {
			return 0, moves, err
		}
		if _, err := t.Regraft(v, origin); err != nil {
			return 0, moves, err
		}
	}
	return score, moves, nil
}
