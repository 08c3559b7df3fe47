// Package phylo provides the mutable tree structure used by parsimony search.
//
// A [Tree] is a strictly bifurcating phylogenetic tree over taxa 1..nTips,
// stored as an arena of integer node ids rather than a pointer graph. Tips
// carry ids 1..nTips; internal nodes carry ids above nTips. The tree is
// unrooted by convention, but a designated root of degree two is tracked so
// that bottom-up traversals have a fixed starting point. The root simply
// subdivides one edge of the unrooted topology, so any quantity that is
// rooting-invariant (notably the parsimony score) is unaffected by where it
// sits.
//
// Structural edits — [Tree.Graft], [Tree.Prune], [Tree.Regraft],
// [Tree.Reroot] and [Tree.SwapEdge] — mutate the tree in place and preserve
// the bifurcating invariant: every internal node keeps exactly three
// incident edges (the root two), every tip exactly one. Internal node ids
// freed by Prune are reused by the next Graft, so the arena never grows past
// 2·nTips−1 ids and scoring buffers can be sized once.
//
// The package is purely structural: it knows nothing about characters or
// scores. See pkg/phylo/parsimony for scoring and pkg/phylo/search for the
// rearrangement heuristics built on these primitives.
package phylo
