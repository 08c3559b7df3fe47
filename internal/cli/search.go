package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/partree/partree/pkg/pipeline"
)

// searchOpts holds the command-line flags for the search command.
type searchOpts struct {
	format      string   // alignment format: auto, fasta, phylip
	alphabet    string   // symbol alphabet: dna, binary
	mode        string   // swap strategy: nni, nni+spr
	maxRounds   int      // max NNI/SPR alternation rounds
	ratchet     int      // number of ratchet perturbation rounds
	perturb     float64  // fraction of patterns to reweight per ratchet round
	seed        int64    // random seed for reproducible searches
	start       string   // file with a starting tree in Newick format
	output      string   // output file (or base path for multiple formats)
	formats     []string // output formats: newick, dot, svg, png
	detailed    bool     // label internal nodes in rendered output
	interactive bool     // show a live TUI during the search
	noCache     bool     // bypass the cache entirely
	refresh     bool     // recompute even on a cache hit
}

// newSearchCmd creates the search command, the main entry point of the
// tool. It reads an alignment, searches for a minimum-parsimony tree, and
// writes the result in the requested formats.
func newSearchCmd() *cobra.Command {
	var formatsStr string
	opts := searchOpts{}

	cmd := &cobra.Command{
		Use:   "search [alignment]",
		Short: "Search for a minimum-parsimony tree",
		Long: `Search reads a sequence alignment (FASTA or PHYLIP), builds a starting
tree by stepwise addition, and improves it with NNI and SPR branch
swapping. With --ratchet, additional perturbation rounds reweight a
random subset of site patterns to escape local optima.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			return runSearch(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "", "alignment format: auto (default), fasta, phylip")
	cmd.Flags().StringVar(&opts.alphabet, "alphabet", "", "alphabet: dna (default), binary")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "swap strategy: "+searchModes()+" (default nni+spr)")
	cmd.Flags().IntVar(&opts.maxRounds, "max-rounds", 0, "maximum NNI/SPR alternation rounds")
	cmd.Flags().IntVarP(&opts.ratchet, "ratchet", "r", 0, "number of ratchet perturbation rounds")
	cmd.Flags().Float64Var(&opts.perturb, "perturb", 0, "fraction of patterns reweighted per ratchet round")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed (default 42)")
	cmd.Flags().StringVar(&opts.start, "start", "", "starting tree file in Newick format")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "formats", "f", "", "output format(s): newick (default), dot, svg, png (comma-separated)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "label internal nodes in rendered output")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "show live progress while searching")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the result cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even if a cached result exists")

	return cmd
}

// runSearch executes the pipeline and writes the requested artifacts.
func runSearch(ctx context.Context, input string, opts *searchOpts) error {
	popts := pipeline.Options{
		AlignmentPath:   input,
		Format:          opts.format,
		Alphabet:        opts.alphabet,
		Mode:            opts.mode,
		MaxRounds:       opts.maxRounds,
		RatchetRounds:   opts.ratchet,
		PerturbStrength: opts.perturb,
		Seed:            opts.seed,
		Formats:         opts.formats,
		Detailed:        opts.detailed,
		Refresh:         opts.refresh,
		Logger:          loggerFromContext(ctx),
	}
	configFromContext(ctx).applySearchDefaults(&popts)

	if opts.start != "" {
		data, err := os.ReadFile(opts.start)
		if err != nil {
			return fmt.Errorf("read starting tree: %w", err)
		}
		popts.StartNewick = string(data)
	}

	runner, err := newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}

	var res *pipeline.Result
	if opts.interactive {
		res, err = runSearchTUI(ctx, runner, popts)
	} else {
		prog := newProgress(loggerFromContext(ctx))
		res, err = runner.Execute(ctx, popts)
		if err == nil {
			prog.done(fmt.Sprintf("Search finished with score %d", res.Score))
		}
	}
	if err != nil {
		return err
	}

	printSearchSummary(res)
	return writeArtifacts(res, opts.output, input)
}

// printSearchSummary prints the result header and statistics.
func printSearchSummary(res *pipeline.Result) {
	printSuccess("Best tree found")
	printKeyValue("score", fmt.Sprintf("%d", res.Score))
	printKeyValue("swaps", fmt.Sprintf("%d", res.Swaps))
	printStats(res.Stats.Taxa, res.Stats.Sites, res.Stats.Patterns, res.CacheInfo.SearchHit)
}

// writeArtifacts writes each produced artifact to its own file. A single
// newick artifact with no --output goes to stdout instead.
func writeArtifacts(res *pipeline.Result, output, input string) error {
	if len(res.Artifacts) == 1 && output == "" {
		if data, ok := res.Artifacts[pipeline.FormatNewick]; ok {
			fmt.Print(string(data))
			return nil
		}
	}

	base := basePath(output, input)
	for _, format := range artifactOrder(res) {
		path := base + "." + pipeline.ArtifactExtension(format)
		if err := os.WriteFile(path, res.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	return nil
}

// artifactOrder returns the artifact formats in stable output order.
func artifactOrder(res *pipeline.Result) []string {
	order := []string{pipeline.FormatNewick, pipeline.FormatDOT, pipeline.FormatSVG, pipeline.FormatPNG}
	var out []string
	for _, f := range order {
		if _, ok := res.Artifacts[f]; ok {
			out = append(out, f)
		}
	}
	return out
}
