// Package pkg provides the core libraries for partree parsimony tree search.
//
// # Overview
//
// partree infers phylogenetic trees from sequence alignments under the
// maximum-parsimony criterion. The pkg directory is organized into four
// main areas:
//
//  1. [align] - Alignment reading and site-pattern compression
//  2. [phylo] - Tree arena, parsimony scoring, and search algorithms
//  3. [pipeline] - Orchestration (read → search → render) with caching
//  4. [render] - Tree drawing via Graphviz
//
// # Architecture
//
// The typical data flow through partree:
//
//	FASTA / PHYLIP alignment
//	         ↓
//	align (pattern compression, duplicate removal)
//	         ↓
//	phylo/search (stepwise addition, NNI/SPR, ratchet)
//	         ↓
//	phylo/newick (Newick text)
//	         ↓
//	render (DOT, SVG, PNG)
//
// Cross-cutting packages support the flow: [cache] stores search results
// and rendered artifacts keyed by content hashes, [errors] defines coded
// errors shared across layers, [observability] exposes instrumentation
// hooks, and [buildinfo] carries version metadata.
package pkg
