package search

import (
	"io"
	"math"
	"math/rand"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/partree/partree/pkg/align"
	"github.com/partree/partree/pkg/errors"
	"github.com/partree/partree/pkg/phylo"
	"github.com/partree/partree/pkg/phylo/parsimony"
)

// Rearrangement modes accepted by [Options.Mode].
const (
	ModeNNI    = "nni"     // NNI hill climbing only
	ModeNNISPR = "nni+spr" // alternate NNI and SPR until neither improves
)

// ValidModes is the set of supported rearrangement modes.
var ValidModes = map[string]bool{
	ModeNNI:    true,
	ModeNNISPR: true,
}

const (
	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = int64(42)

	// DefaultMaxRounds caps the NNI/SPR alternation loop. Convergence
	// normally ends the loop long before this; the cap is the hard stop
	// the caller can rely on.
	DefaultMaxRounds = 50

	// DefaultPerturbStrength is the fraction of site patterns the ratchet
	// reweights per round.
	DefaultPerturbStrength = 0.25
)

// Options configures a search run.
type Options struct {
	// Mode selects the rearrangement neighborhood, ModeNNISPR by default.
	Mode string `json:"mode,omitempty"`

	// MaxRounds is the hard cap on NNI/SPR alternation rounds per climb.
	MaxRounds int `json:"max_rounds,omitempty"`

	// RatchetRounds is the number of perturb-and-reoptimize rounds run
	// after the initial climb converges. Zero disables the ratchet.
	RatchetRounds int `json:"ratchet_rounds,omitempty"`

	// PerturbStrength is the fraction (0, 1] of patterns whose weight is
	// doubled in each ratchet round.
	PerturbStrength float64 `json:"perturb_strength,omitempty"`

	// Seed seeds the random source when Rand is nil.
	Seed int64 `json:"seed,omitempty"`

	// StartTree, when set, replaces stepwise construction. It must span
	// the matrix's full taxon set; duplicate-taxon removal is skipped so
	// that tip ids keep their meaning.
	StartTree *phylo.Tree `json:"-"`

	// Runtime options (not serialized)
	Rand   *rand.Rand  `json:"-"`
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks fields and applies defaults. Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Mode == "" {
		o.Mode = ModeNNISPR
	}
	if !ValidModes[o.Mode] {
		return errors.New(errors.ErrCodeInvalidOption,
			"invalid mode %q (must be one of: nni, nni+spr)", o.Mode)
	}
	if o.MaxRounds == 0 {
		o.MaxRounds = DefaultMaxRounds
	}
	if o.MaxRounds < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "max_rounds must be positive")
	}
	if o.RatchetRounds < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "ratchet_rounds must be non-negative")
	}
	if o.PerturbStrength == 0 {
		o.PerturbStrength = DefaultPerturbStrength
	}
	if o.PerturbStrength < 0 || o.PerturbStrength > 1 {
		return errors.New(errors.ErrCodeInvalidOption,
			"perturb_strength %v outside (0, 1]", o.PerturbStrength)
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(o.Seed))
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Result is the outcome of a search run.
type Result struct {
	// Tree is the best topology found, over the matrix's full taxon set.
	Tree *phylo.Tree

	// Score is the tree's parsimony score under the original weights,
	// including the constant cost of uninformative patterns.
	Score int

	// Swaps counts accepted rearrangements across the whole run.
	Swaps int

	// Rounds counts NNI/SPR alternation rounds of the initial climb.
	Rounds int

	// RatchetAccepted counts ratchet rounds that improved the best tree.
	RatchetAccepted int
}

// Run searches for a minimum-parsimony topology over the matrix.
//
// Preprocessing drops patterns whose cost no topology can change, carrying
// their constant cost as a base added to every reported score, and removes
// taxa that duplicate another taxon's full character pattern. The reduced
// matrix is reordered heaviest-pattern-first, a starting tree is built by
// stepwise addition (or taken from opts.StartTree), and NNI/SPR climbing
// plus optional ratchet rounds refine it. Removed duplicates are reattached
// as zero-cost siblings of their twins before the result is returned.
func Run(mat *align.Matrix, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger

	dups := map[int]int{}
	keep := []int(nil)
	reduced := mat
	if opts.StartTree == nil {
		dups = mat.DuplicateTaxa()
		if len(dups) > 0 && mat.NTaxa()-len(dups) >= 3 {
			drop := make([]int, 0, len(dups))
			for d := range dups {
				drop = append(drop, d)
			}
			sort.Ints(drop)
			reduced, keep = mat.WithoutTaxa(drop)
			logger.Debug("removed duplicate taxa", "count", len(drop))
		} else {
			dups = map[int]int{}
		}
	}

	informative, base := reduced.SplitInformative()
	logger.Debug("matrix reduced",
		"taxa", informative.NTaxa(),
		"patterns", informative.NPatterns(),
		"base_cost", base)

	eng, err := parsimony.New(informative.SortedByWeight())
	if err != nil {
		return nil, err
	}

	var t *phylo.Tree
	var score int
	if opts.StartTree != nil {
		t = opts.StartTree.Clone()
		if err := t.Validate(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeNotBifurcating, err, "start tree")
		}
		if score, err = eng.Score(t); err != nil {
			return nil, err
		}
	} else {
		if t, score, err = Stepwise(eng, opts.Rand); err != nil {
			return nil, err
		}
	}
	logger.Info("starting tree built", "score", score+base)

	res := &Result{}
	if score, err = climb(eng, t, &opts, res); err != nil {
		return nil, err
	}
	logger.Info("climb converged", "score", score+base, "swaps", res.Swaps)

	if score, err = ratchet(eng, t, score, &opts, res); err != nil {
		return nil, err
	}

	if len(dups) > 0 {
		if t, err = reattachDuplicates(t, keep, mat.NTaxa(), dups); err != nil {
			return nil, err
		}
	}
	res.Tree = t
	res.Score = score + base
	logger.Info("search finished",
		"score", res.Score,
		"swaps", res.Swaps,
		"ratchet_accepted", res.RatchetAccepted)
	return res, nil
}

// climb alternates NNI convergence and single SPR sweeps until neither
// improves, honoring the round cap as a hard stop.
func climb(eng *parsimony.Engine, t *phylo.Tree, opts *Options, res *Result) (int, error) {
	score := 0
	for round := 1; ; round++ {
		s, swaps, err := NNI(eng, t)
		if err != nil {
			return 0, err
		}
		score = s
		res.Swaps += swaps
		res.Rounds = round
		opts.Logger.Debug("nni converged", "round", round, "score", score, "swaps", swaps)
		if opts.Mode == ModeNNI {
			return score, nil
		}

		s, moves, err := SPR(eng, t)
		if err != nil {
			return 0, err
		}
		res.Swaps += moves
		opts.Logger.Debug("spr sweep done", "round", round, "score", s, "moves", moves)
		if s >= score || round >= opts.MaxRounds {
			if s < score {
				score = s
			}
			return score, nil
		}
		score = s
	}
}

// ratchet runs perturb-and-reoptimize rounds: double the weight of a random
// pattern subset, re-climb a copy of the current best tree under the
// perturbed weights, and keep the result only when it strictly improves the
// best score under the original weights.
func ratchet(eng *parsimony.Engine, t *phylo.Tree, score int, opts *Options, res *Result) (int, error) {
	if opts.RatchetRounds == 0 {
		return score, nil
	}
	mat := eng.Matrix()
	nPat := mat.NPatterns()
	k := int(math.Ceil(opts.PerturbStrength * float64(nPat)))
	if k > nPat {
		k = nPat
	}

	for round := 1; round <= opts.RatchetRounds; round++ {
		w := append([]int(nil), mat.Weights...)
		for _, p := range opts.Rand.Perm(nPat)[:k] {
			w[p] *= 2
		}
		perturbed, err := eng.WithWeights(w)
		if err != nil {
			return 0, err
		}

		trial := t.Clone()
		var sub Result
		if _, err := climb(perturbed, trial, opts, &sub); err != nil {
			return 0, err
		}
		res.Swaps += sub.Swaps
		trialScore, err := eng.Score(trial)
		if err != nil {
			return 0, err
		}
		if trialScore < score {
			score = trialScore
			copyTreeInto(t, trial)
			res.RatchetAccepted++
			opts.Logger.Info("ratchet improved", "round", round, "score", score)
		} else {
			opts.Logger.Debug("ratchet round rejected", "round", round, "score", trialScore)
		}
	}
	return score, nil
}

// copyTreeInto overwrites dst's topology with src's. Both trees come from
// the same taxon set, so the arenas line up.
func copyTreeInto(dst, src *phylo.Tree) {
	*dst = *src.Clone()
}

// reattachDuplicates rebuilds the searched topology over the full taxon set
// and grafts each removed duplicate as the sibling of its retained twin.
// Duplicate attachment adds no changes at any site, so the score is
// unaffected.
func reattachDuplicates(reduced *phylo.Tree, keep []int, nTips int, dups map[int]int) (*phylo.Tree, error) {
	next := nTips + 1
	imap := make(map[int]int)
	mapNode := func(v int) int {
		if reduced.IsTip(v) {
			return keep[v-1] + 1
		}
		if id, ok := imap[v]; ok {
			return id
		}
		imap[v] = next
		next++
		return imap[v]
	}

	parentOf := make(map[int]int)
	for _, e := range reduced.Postorder() {
		parentOf[mapNode(e.Child)] = mapNode(e.Parent)
	}
	root := mapNode(reduced.Root())

	dupTips := make([]int, 0, len(dups))
	for d := range dups {
		dupTips = append(dupTips, d)
	}
	sort.Ints(dupTips)
	for _, d := range dupTips {
		twin, dup := dups[d]+1, d+1
		x := next
		next++
		parentOf[x] = parentOf[twin]
		parentOf[twin] = x
		parentOf[dup] = x
	}

	edges := make([]phylo.Edge, 0, len(parentOf))
	for c, p := range parentOf {
		edges = append(edges, phylo.Edge{Parent: p, Child: c})
	}
	return phylo.FromEdges(nTips, root, edges)
}
