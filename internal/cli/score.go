package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/partree/partree/pkg/align"
	"github.com/partree/partree/pkg/phylo/newick"
	"github.com/partree/partree/pkg/phylo/parsimony"
)

// scoreOpts holds the command-line flags for the score command.
type scoreOpts struct {
	format   string // alignment format: auto, fasta, phylip
	alphabet string // symbol alphabet: dna, binary
	sites    bool   // print per-site scores instead of the total
}

// newScoreCmd creates the score command, which evaluates a given tree
// against an alignment without searching.
func newScoreCmd() *cobra.Command {
	opts := scoreOpts{}

	cmd := &cobra.Command{
		Use:   "score [alignment] [tree]",
		Short: "Compute the parsimony score of a tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), args[0], args[1], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "", "alignment format: auto (default), fasta, phylip")
	cmd.Flags().StringVar(&opts.alphabet, "alphabet", "", "alphabet: dna (default), binary")
	cmd.Flags().BoolVar(&opts.sites, "sites", false, "print per-pattern scores")

	return cmd
}

func runScore(ctx context.Context, alignPath, treePath string, opts *scoreOpts) error {
	logger := loggerFromContext(ctx)

	mat, err := readMatrix(alignPath, opts.format, opts.alphabet)
	if err != nil {
		return err
	}
	logger.Debugf("Alignment: %d taxa, %d patterns", mat.NTaxa(), mat.NPatterns())

	src, err := os.ReadFile(treePath)
	if err != nil {
		return fmt.Errorf("read tree: %w", err)
	}
	tree, err := newick.Parse(string(src), mat.Taxa)
	if err != nil {
		return err
	}

	eng, err := parsimony.New(mat)
	if err != nil {
		return err
	}

	if opts.sites {
		scores, err := eng.SiteScores(tree)
		if err != nil {
			return err
		}
		for i, s := range scores {
			fmt.Printf("%d\t%d\t%d\n", i, mat.Weights[i], s)
		}
		return nil
	}

	score, err := eng.Score(tree)
	if err != nil {
		return err
	}
	fmt.Println(score)
	return nil
}

// readMatrix loads an alignment file and compresses it into a matrix.
func readMatrix(path, format, alphabet string) (*align.Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alignment: %w", err)
	}

	var aln *align.Alignment
	switch format {
	case "fasta":
		aln, err = align.ReadFasta(bytes.NewReader(data))
	case "phylip":
		aln, err = align.ReadPhylip(bytes.NewReader(data))
	default:
		aln, err = align.ReadAuto(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}

	if alphabet == "" {
		alphabet = "dna"
	}
	ab, err := align.AlphabetByName(alphabet)
	if err != nil {
		return nil, err
	}
	return align.NewMatrix(aln, ab)
}
