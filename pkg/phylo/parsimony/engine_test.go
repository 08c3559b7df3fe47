package parsimony

import (
	"testing"

	"github.com/partree/partree/pkg/align"
	"github.com/partree/partree/pkg/phylo"
)

// binaryMatrix builds a two-state matrix from rows of '0'/'1'/'?' strings,
// one row per taxon, all weights 1.
func binaryMatrix(t *testing.T, rows ...string) *align.Matrix {
	t.Helper()
	a := &align.Alignment{}
	for i, row := range rows {
		a.Names = append(a.Names, string(rune('a'+i)))
		a.Seqs = append(a.Seqs, []byte(row))
	}
	m, err := align.NewMatrix(a, align.Binary)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	return m
}

// pairedQuartet is the 4-tip tree pairing (1,2) and (3,4).
func pairedQuartet(t *testing.T) *phylo.Tree {
	t.Helper()
	tr, err := phylo.FromEdges(4, 5, []phylo.Edge{
		{Parent: 5, Child: 6}, {Parent: 5, Child: 7},
		{Parent: 6, Child: 1}, {Parent: 6, Child: 2},
		{Parent: 7, Child: 3}, {Parent: 7, Child: 4},
	})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}
	return tr
}

// crossedQuartet is the 4-tip tree pairing (1,3) and (2,4).
func crossedQuartet(t *testing.T) *phylo.Tree {
	t.Helper()
	tr, err := phylo.FromEdges(4, 5, []phylo.Edge{
		{Parent: 5, Child: 6}, {Parent: 5, Child: 7},
		{Parent: 6, Child: 1}, {Parent: 6, Child: 3},
		{Parent: 7, Child: 2}, {Parent: 7, Child: 4},
	})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}
	return tr
}

func TestScore_Quartet(t *testing.T) {
	mat := binaryMatrix(t, "0", "0", "1", "1")
	eng, err := New(mat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	score, err := eng.Score(pairedQuartet(t))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != 1 {
		t.Errorf("paired quartet score = %d, want 1", score)
	}

	score, err = eng.Score(crossedQuartet(t))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != 2 {
		t.Errorf("crossed quartet score = %d, want 2", score)
	}
}

func TestScore_WeightsAndAmbiguity(t *testing.T) {
	// Two identical columns collapse into one pattern of weight 2; the '?'
	// taxon never forces a change on its own.
	mat := binaryMatrix(t,
		"001?",
		"001?",
		"110?",
		"1101",
	)
	if mat.NPatterns() != 3 {
		t.Fatalf("patterns = %d, want 3", mat.NPatterns())
	}
	eng, err := New(mat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	score, err := eng.Score(pairedQuartet(t))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// Columns 1, 2 and 3 each cost one change, column 4 none.
	if score != 3 {
		t.Errorf("score = %d, want 3", score)
	}
}

func TestScore_RerootInvariant(t *testing.T) {
	mat := binaryMatrix(t,
		"0011",
		"0101",
		"1100",
		"1010",
		"0110",
	)
	eng, err := New(mat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := phylo.FromEdges(5, 6, []phylo.Edge{
		{Parent: 6, Child: 7}, {Parent: 6, Child: 8},
		{Parent: 7, Child: 1}, {Parent: 7, Child: 2},
		{Parent: 8, Child: 3}, {Parent: 8, Child: 9},
		{Parent: 9, Child: 4}, {Parent: 9, Child: 5},
	})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}
	want, err := eng.Score(tr)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	for v := 1; v < tr.Cap(); v++ {
		clone := tr.Clone()
		if err := clone.Reroot(v); err != nil {
			t.Fatalf("Reroot(%d): %v", v, err)
		}
		got, err := eng.Score(clone)
		if err != nil {
			t.Fatalf("Score after Reroot(%d): %v", v, err)
		}
		if got != want {
			t.Errorf("Reroot(%d): score = %d, want %d", v, got, want)
		}
	}
}

func TestEngine_TaxonMismatch(t *testing.T) {
	mat := binaryMatrix(t, "01", "10", "11", "00", "01")
	eng, err := New(mat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := eng.Score(pairedQuartet(t)); err == nil {
		t.Fatal("expected taxon mismatch error for 4-tip tree against 5-taxon matrix")
	}
}

func TestInsertScores_MatchFullRecompute(t *testing.T) {
	mat := binaryMatrix(t,
		"00110",
		"01010",
		"11001",
		"10100",
		"01100",
	)
	eng, err := New(mat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := phylo.FromEdges(5, 6, []phylo.Edge{
		{Parent: 6, Child: 7}, {Parent: 6, Child: 8},
		{Parent: 7, Child: 1}, {Parent: 7, Child: 2},
		{Parent: 8, Child: 3}, {Parent: 8, Child: 9},
		{Parent: 9, Child: 4}, {Parent: 9, Child: 5},
	})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}

	// Prune every prunable subtree in turn and compare the batched insertion
	// vector against grafting at each edge and rescoring from scratch.
	for v := 1; v < tr.Cap(); v++ {
		if v == tr.Root() {
			continue
		}
		work := tr.Clone()
		origin, err := work.Prune(v)
		if err != nil {
			continue // degenerate prune, nothing to compare
		}
		prep, err := eng.Prepare(work)
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		profile, err := eng.SubtreeProfile(work, v)
		if err != nil {
			t.Fatalf("SubtreeProfile(%d): %v", v, err)
		}
		batched := prep.InsertScores(profile)

		for i, e := range prep.Edges() {
			check := work.Clone()
			if _, err := check.Regraft(v, e); err != nil {
				t.Fatalf("Regraft(%d, %v): %v", v, e, err)
			}
			full, err := eng.Score(check)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if batched[i] != full {
				t.Errorf("prune %d, edge %v: batched %d != full %d", v, e, batched[i], full)
			}
		}

		bestIdx, bestScore := prep.BestInsertion(profile)
		wantIdx, wantScore := 0, batched[0]
		for i, s := range batched {
			if s < wantScore {
				wantIdx, wantScore = i, s
			}
		}
		if bestScore != wantScore || batched[bestIdx] != wantScore {
			t.Errorf("prune %d: BestInsertion = (%d, %d), want score %d at %d",
				v, bestIdx, bestScore, wantScore, wantIdx)
		}

		// Restoring the original location restores the original tree.
		if _, err := work.Regraft(v, origin); err != nil {
			t.Fatalf("Regraft at origin: %v", err)
		}
		restored, err := eng.Score(work)
		if err != nil {
			t.Fatalf("Score restored: %v", err)
		}
		full, err := eng.Score(tr)
		if err != nil {
			t.Fatalf("Score original: %v", err)
		}
		if restored != full {
			t.Errorf("prune %d: restored score %d != original %d", v, restored, full)
		}
	}
}

func TestBestInsertion_PerturbedWeights(t *testing.T) {
	// Base weights come out sorted descending ([2 1 1]); reweighting a
	// pattern in the unit tail produces the unsorted vector the ratchet
	// works with ([2 1 2]). BestInsertion must still agree with the exact
	// insertion vector, earliest edge on ties.
	mat := binaryMatrix(t,
		"0001",
		"0010",
		"1100",
		"1111",
		"0011",
	)
	if got := mat.Weights; len(got) != 3 || got[0] != 2 {
		t.Fatalf("weights = %v, want [2 1 1]", got)
	}
	base, err := New(mat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng, err := base.WithWeights([]int{2, 1, 2})
	if err != nil {
		t.Fatalf("WithWeights: %v", err)
	}

	tr, err := phylo.FromEdges(5, 6, []phylo.Edge{
		{Parent: 6, Child: 7}, {Parent: 6, Child: 8},
		{Parent: 7, Child: 1}, {Parent: 7, Child: 2},
		{Parent: 8, Child: 3}, {Parent: 8, Child: 9},
		{Parent: 9, Child: 4}, {Parent: 9, Child: 5},
	})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}

	for v := 1; v < tr.Cap(); v++ {
		if v == tr.Root() {
			continue
		}
		work := tr.Clone()
		if _, err := work.Prune(v); err != nil {
			continue
		}
		prep, err := eng.Prepare(work)
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		profile, err := eng.SubtreeProfile(work, v)
		if err != nil {
			t.Fatalf("SubtreeProfile(%d): %v", v, err)
		}

		batched := prep.InsertScores(profile)
		for i, e := range prep.Edges() {
			check := work.Clone()
			if _, err := check.Regraft(v, e); err != nil {
				t.Fatalf("Regraft(%d, %v): %v", v, e, err)
			}
			full, err := eng.Score(check)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if batched[i] != full {
				t.Errorf("prune %d, edge %v: batched %d != full %d", v, e, batched[i], full)
			}
		}

		wantIdx, wantScore := 0, batched[0]
		for i, s := range batched {
			if s < wantScore {
				wantIdx, wantScore = i, s
			}
		}
		gotIdx, gotScore := prep.BestInsertion(profile)
		if gotIdx != wantIdx || gotScore != wantScore {
			t.Errorf("prune %d: BestInsertion = (%d, %d), want (%d, %d), vector %v",
				v, gotIdx, gotScore, wantIdx, wantScore, batched)
		}
	}
}

func TestNNIMoves_MatchFullRecompute(t *testing.T) {
	mat := binaryMatrix(t,
		"001101",
		"010110",
		"110010",
		"101001",
		"011000",
		"100111",
	)
	eng, err := New(mat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := phylo.FromEdges(6, 7, []phylo.Edge{
		{Parent: 7, Child: 8}, {Parent: 7, Child: 9},
		{Parent: 8, Child: 1}, {Parent: 8, Child: 10},
		{Parent: 10, Child: 2}, {Parent: 10, Child: 3},
		{Parent: 9, Child: 11}, {Parent: 9, Child: 6},
		{Parent: 11, Child: 4}, {Parent: 11, Child: 5},
	})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}

	prep, err := eng.Prepare(tr)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	base := prep.Score()
	if full, _ := eng.Score(tr); full != base {
		t.Fatalf("Prep.Score %d != full score %d", base, full)
	}

	moves := prep.NNIMoves()
	if len(moves) == 0 {
		t.Fatal("expected NNI moves on a 6-tip tree")
	}
	for _, mv := range moves {
		check := tr.Clone()
		if err := check.SwapEdge(mv.SwapA, mv.SwapB); err != nil {
			t.Fatalf("SwapEdge(%d, %d): %v", mv.SwapA, mv.SwapB, err)
		}
		full, err := eng.Score(check)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if got := full - base; got != mv.Delta {
			t.Errorf("move %+v: batched delta %d != full delta %d", mv, mv.Delta, got)
		}
	}
}

func TestWithWeights(t *testing.T) {
	mat := binaryMatrix(t, "01", "01", "10", "10")
	eng, err := New(mat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr := crossedQuartet(t)
	base, err := eng.Score(tr)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	doubled, err := eng.WithWeights([]int{2, 2})
	if err != nil {
		t.Fatalf("WithWeights: %v", err)
	}
	score, err := doubled.Score(tr)
	if err != nil {
		t.Fatalf("Score under new weights: %v", err)
	}
	if score != 2*base {
		t.Errorf("doubled weights: score = %d, want %d", score, 2*base)
	}

	// The original engine must be unaffected.
	again, err := eng.Score(tr)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if again != base {
		t.Errorf("original engine score changed: %d -> %d", base, again)
	}

	if _, err := eng.WithWeights([]int{1}); err == nil {
		t.Error("expected error for wrong-length weight vector")
	}
}
