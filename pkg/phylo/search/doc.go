// Package search finds low-parsimony tree topologies over an encoded
// character matrix.
//
// The building blocks are [Stepwise] construction, [NNI] hill climbing and
// [SPR] sweeps; [Run] wires them into the full driver: preprocessing
// (uninformative pattern removal, duplicate taxon removal), NNI/SPR
// alternation to convergence, optional ratchet rounds to escape local
// optima, and postprocessing that restores removed taxa.
//
// All of it is heuristic. Scores only ever go down during a run, but no
// routine here guarantees a global optimum; re-running with a different
// random seed can find a different, sometimes better, tree.
package search
