package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/partree/partree/pkg/phylo/newick"
	"github.com/partree/partree/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string   // output file (or base path for multiple formats)
	formats  []string // output formats: dot, svg, png
	detailed bool     // label internal nodes
}

// newRenderCmd creates the render command, which draws an existing Newick
// tree without running a search.
func newRenderCmd() *cobra.Command {
	var formatsStr string
	opts := renderOpts{}

	cmd := &cobra.Command{
		Use:   "render [tree]",
		Short: "Render a Newick tree to DOT, SVG, or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if len(opts.formats) == 1 && opts.formats[0] == "newick" {
				opts.formats = []string{render.FormatSVG}
			}
			for _, f := range opts.formats {
				if !render.ValidFormats[f] {
					return fmt.Errorf("invalid format %q (must be 'dot', 'svg', or 'png')", f)
				}
			}
			return runRender(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "formats", "f", "", "output format(s): svg (default), dot, png (comma-separated)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "label internal nodes")

	return cmd
}

// runRender parses the tree file and writes the requested renderings.
// The taxon list comes from the tree's own leaf labels.
func runRender(ctx context.Context, input string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)

	src, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read tree: %w", err)
	}
	taxa, err := newick.Taxa(string(src))
	if err != nil {
		return err
	}
	tree, err := newick.Parse(string(src), taxa)
	if err != nil {
		return err
	}
	logger.Debugf("Parsed tree with %d taxa", len(taxa))

	dot, err := render.ToDOT(tree, taxa, render.Options{Detailed: opts.detailed})
	if err != nil {
		return err
	}

	base := basePath(opts.output, input)
	for _, format := range opts.formats {
		var data []byte
		switch format {
		case render.FormatDOT:
			data = []byte(dot)
		case render.FormatSVG, render.FormatPNG:
			sp := newSpinnerWithContext(ctx, "rendering "+format)
			sp.Start()
			if format == render.FormatSVG {
				data, err = render.SVG(dot)
			} else {
				data, err = render.PNG(dot)
			}
			sp.Stop()
		}
		if err != nil {
			return fmt.Errorf("render %s: %w", format, err)
		}

		path := base + "." + format
		if opts.output != "" && len(opts.formats) == 1 {
			path = opts.output
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	return nil
}
