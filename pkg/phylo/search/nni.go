package search

import (
	"sort"

	"github.com/partree/partree/pkg/phylo"
	"github.com/partree/partree/pkg/phylo/parsimony"
)

// NNI hill-climbs t by nearest-neighbor interchange until no move improves
// the score, mutating t in place. Each round prices every internal edge's
// two configurations in one batched pass, then tries candidates from most
// improving to least: a candidate is committed only when a full rescore
// confirms strict improvement, otherwise it is undone and the next one is
// tried. Returns the final score and the number of accepted swaps.
//
// Trees with fewer than four tips have no internal edge to rearrange and
// return immediately.
func NNI(eng *parsimony.Engine, t *phylo.Tree) (int, int, error) {
	score, err := eng.Score(t)
	if err != nil {
		return 0, 0, err
	}
	if t.NTips() < 4 {
		return score, 0, nil
	}

	swaps := 0
	for {
		prep, err := eng.Prepare(t)
		if err != nil {
			return 0, swaps, err
		}
		score = prep.Score()

		moves := prep.NNIMoves()
		sort.SliceStable(moves, func(a, b int) bool { return moves[a].Delta < moves[b].Delta })

		accepted := false
		for _, mv := range moves {
			if mv.Delta >= 0 {
				break
			}
			if err := t.SwapEdge(mv.SwapA, mv.SwapB); err != nil {
				return 0, swaps, err
			}
			confirmed, err := eng.Score(t)
			if err != nil {
				return 0, swaps, err
			}
			if confirmed < score {
				score = confirmed
				swaps++
				accepted = true
				break
			}
			// Unconfirmed improvement: undo and try the next candidate.
			// SwapEdge is its own inverse.
			if err := t.SwapEdge(mv.SwapA, mv.SwapB); err != nil {
				return 0, swaps, err
			}
		}
		if !accepted {
			return score, swaps, nil
		}
	}
}
