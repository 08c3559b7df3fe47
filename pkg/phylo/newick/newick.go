// Package newick reads and writes tree topologies in Newick format, the
// parenthesized notation most phylogenetics tools exchange trees in.
//
// Taxon names in the text are bound to tip ids by position in the caller's
// taxon list, so a parsed tree can be scored directly against the matrix
// that list came from. Branch lengths and internal node labels are accepted
// on input and discarded; multifurcations are resolved arbitrarily into
// bifurcations, which leaves the parsimony score unchanged for any
// resolution.
package newick

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/partree/partree/pkg/errors"
	"github.com/partree/partree/pkg/phylo"
)

type treeExpr struct {
	Root *nodeExpr `parser:"@@ ';'?"`
}

type nodeExpr struct {
	Children []*nodeExpr `parser:"('(' @@ (',' @@)* ')')?"`
	Label    string      `parser:"@(Name | Number)?"`
	Length   string      `parser:"(':' @Number)?"`
}

var newickLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Punct", Pattern: `[();,:]`},
	{Name: "Number", Pattern: `[-+]?\d+(\.\d+)?([eE][-+]?\d+)?`},
	{Name: "Name", Pattern: `[^\s();,:]+`},
	{Name: "whitespace", Pattern: `\s+`},
})

var newickParser = participle.MustBuild[treeExpr](
	participle.Lexer(newickLexer),
)

// Parse reads a Newick tree over the given taxon list. Taxon i (0-based) in
// the list becomes tip id i+1; every taxon must appear exactly once.
// Multifurcations, including the conventional trifurcating root of unrooted
// trees, are resolved left to right.
func Parse(src string, taxa []string) (*phylo.Tree, error) {
	nTips := len(taxa)
	if nTips < 3 {
		return nil, errors.New(errors.ErrCodeTreeTooSmall,
			"taxon list has %d entries, need at least 3", nTips)
	}
	ast, err := newickParser.ParseString("", src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidNewick, err, "parse newick")
	}

	tipOf := make(map[string]int, nTips)
	for i, name := range taxa {
		tipOf[name] = i + 1
	}
	used := make([]bool, nTips+1)
	next := nTips + 1
	var edges []phylo.Edge

	newInternal := func() (int, error) {
		if next >= 2*nTips {
			return 0, errors.New(errors.ErrCodeInvalidNewick,
				"tree has more than %d internal nodes", nTips-1)
		}
		id := next
		next++
		return id, nil
	}

	var build func(n *nodeExpr) (int, error)
	build = func(n *nodeExpr) (int, error) {
		if len(n.Children) == 0 {
			if n.Label == "" {
				return 0, errors.New(errors.ErrCodeInvalidNewick, "unnamed leaf")
			}
			tip, ok := tipOf[n.Label]
			if !ok {
				return 0, errors.New(errors.ErrCodeTaxonMismatch,
					"taxon %q is not in the matrix", n.Label)
			}
			if used[tip] {
				return 0, errors.New(errors.ErrCodeInvalidNewick,
					"taxon %q appears twice", n.Label)
			}
			used[tip] = true
			return tip, nil
		}

		ids := make([]int, 0, len(n.Children))
		for _, c := range n.Children {
			id, err := build(c)
			if err != nil {
				return 0, err
			}
			ids = append(ids, id)
		}
		// Unary nestings collapse; larger groups resolve pairwise.
		for len(ids) > 1 {
			v, err := newInternal()
			if err != nil {
				return 0, err
			}
			edges = append(edges,
				phylo.Edge{Parent: v, Child: ids[0]},
				phylo.Edge{Parent: v, Child: ids[1]})
			ids = append([]int{v}, ids[2:]...)
		}
		return ids[0], nil
	}

	root, err := build(ast.Root)
	if err != nil {
		return nil, err
	}
	for tip := 1; tip <= nTips; tip++ {
		if !used[tip] {
			return nil, errors.New(errors.ErrCodeTaxonMismatch,
				"taxon %q missing from the tree", taxa[tip-1])
		}
	}
	t, err := phylo.FromEdges(nTips, root, edges)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidNewick, err, "assemble tree")
	}
	return t, nil
}

// Taxa extracts the leaf names of a Newick tree in appearance order,
// without building a topology. Useful when the tree file is the only
// source of the taxon list.
func Taxa(src string) ([]string, error) {
	ast, err := newickParser.ParseString("", src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidNewick, err, "parse newick")
	}
	seen := make(map[string]bool)
	var taxa []string
	var walk func(n *nodeExpr) error
	walk = func(n *nodeExpr) error {
		if len(n.Children) == 0 {
			if n.Label == "" {
				return errors.New(errors.ErrCodeInvalidNewick, "unnamed leaf")
			}
			if seen[n.Label] {
				return errors.New(errors.ErrCodeInvalidNewick,
					"taxon %q appears twice", n.Label)
			}
			seen[n.Label] = true
			taxa = append(taxa, n.Label)
			return nil
		}
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(ast.Root); err != nil {
		return nil, err
	}
	return taxa, nil
}

// Write renders the tree in Newick notation using the taxon list that
// defined its tip ids. No branch lengths are emitted.
func Write(t *phylo.Tree, taxa []string) (string, error) {
	if len(taxa) != t.NTips() {
		return "", errors.New(errors.ErrCodeTaxonMismatch,
			"taxon list has %d entries, tree has %d tips", len(taxa), t.NTips())
	}
	for _, name := range taxa {
		if err := errors.ValidateTaxonName(name); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	var walk func(v int)
	walk = func(v int) {
		if t.IsTip(v) {
			b.WriteString(taxa[v-1])
			return
		}
		b.WriteByte('(')
		for i, c := range t.Children(v) {
			if i > 0 {
				b.WriteByte(',')
			}
			walk(c)
		}
		b.WriteByte(')')
	}
	walk(t.Root())
	b.WriteByte(';')
	return b.String(), nil
}
