// Package parsimony scores tree topologies against an encoded character
// matrix using Fitch's bit-set algorithm.
//
// An [Engine] is built once per matrix and answers two kinds of queries.
// Full queries ([Engine.Score], [Engine.SiteScores]) run a single bottom-up
// pass: each node's state set per site is the bitwise AND of its children's
// sets when that intersection is non-empty, otherwise their OR, and every OR
// counts one change at that site. The total is the weighted sum over
// patterns.
//
// Batched queries go through a [Prep], the prepared scoring context produced
// by [Engine.Prepare]. Preparation runs the bottom-up pass and a second,
// top-down pass that gives every node the Fitch set of the rest of the tree
// with its subtree excised. With both directions in hand, the exact score of
// inserting a subtree on any edge — or of either nearest-neighbor
// interchange across any internal edge — costs O(patterns) per candidate
// instead of a full traversal. These batched results are the same integers a
// full rescore would produce, not approximations; the search layer still
// confirms accepted moves against [Engine.Score] before committing.
//
// A Prep describes one fixed topology. Any edit to the tree invalidates it;
// callers must call Prepare again before issuing further batched queries.
// Making that context an explicit value, rather than cached state inside the
// Engine, turns the invalidation rule into something the type system shows.
package parsimony
