package search

import (
	"math/rand"

	"github.com/partree/partree/pkg/phylo"
	"github.com/partree/partree/pkg/phylo/parsimony"
)

// Stepwise builds a starting tree by random-order sequential addition: a
// triple of taxa seeds the topology, then each remaining taxon is grafted
// onto whichever edge yields the lowest total score, ties to the earliest
// edge. The result depends on the addition order drawn from rng; it is a
// greedy heuristic with no optimality guarantee.
func Stepwise(eng *parsimony.Engine, rng *rand.Rand) (*phylo.Tree, int, error) {
	nTips := eng.NTips()
	order := rng.Perm(nTips)

	t, err := phylo.NewTriple(order[0]+1, order[1]+1, order[2]+1, nTips)
	if err != nil {
		return nil, 0, err
	}
	for _, i := range order[3:] {
		tip := i + 1
		prep, err := eng.Prepare(t)
		if err != nil {
			return nil, 0, err
		}
		profile, err := eng.TipProfile(tip)
		if err != nil {
			return nil, 0, err
		}
		idx, _ := prep.BestInsertion(profile)
		if _, err := t.Graft(tip, prep.Edges()[idx]); err != nil {
			return nil, 0, err
		}
	}
	score, err := eng.Score(t)
	if err != nil {
		return nil, 0, err
	}
	return t, score, nil
}
