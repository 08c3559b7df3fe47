// Package align reads sequence alignments and compresses them into the
// weighted site-pattern matrix consumed by the parsimony engine.
//
// An [Alignment] is the raw input: named sequences of equal length, read
// from FASTA or sequential PHYLIP. A [Matrix] is the encoded form: identical
// alignment columns are collapsed into one site pattern carrying an integer
// weight, and every observed symbol is mapped through an [Alphabet] to a
// bitmask over the canonical character states (the contrast table).
// Ambiguity codes map to the union of their compatible states, so an 'R' in
// DNA data is simply the mask A|G and needs no special handling downstream.
//
// The matrix is built once and then treated as immutable by the search;
// the transformations the search driver applies before a run — dropping
// parsimony-uninformative patterns, removing duplicate taxa, reordering
// patterns by weight — all produce fresh matrices.
package align
