// Package render draws tree topologies via Graphviz. A tree becomes a DOT
// document first; SVG and PNG rendering run the DOT through the embedded
// Graphviz engine.
package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/partree/partree/pkg/errors"
	"github.com/partree/partree/pkg/phylo"
)

// Format constants for rendered artifacts.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDOT: true,
	FormatSVG: true,
	FormatPNG: true,
}

// Options configures tree rendering.
type Options struct {
	// Detailed labels internal nodes with their arena ids. When false,
	// internal nodes draw as unlabeled points.
	Detailed bool
}

// ToDOT converts a tree to Graphviz DOT format. Tips are labeled boxes,
// internal nodes small points; the layout reads root-down. The resulting
// DOT string can be rendered with [SVG] or [PNG].
func ToDOT(t *phylo.Tree, taxa []string, opts Options) (string, error) {
	if len(taxa) != t.NTips() {
		return "", errors.New(errors.ErrCodeTaxonMismatch,
			"taxon list has %d entries, tree has %d tips", len(taxa), t.NTips())
	}

	var buf bytes.Buffer
	buf.WriteString("digraph tree {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=18];\n")
	buf.WriteString("  edge [arrowhead=none];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("\n")

	for _, v := range t.PostorderNodes() {
		if t.IsTip(v) {
			fmt.Fprintf(&buf, "  n%d [label=%q];\n", v, taxa[v-1])
			continue
		}
		if opts.Detailed {
			fmt.Fprintf(&buf, "  n%d [shape=circle, width=0.3, fontsize=10, label=%q];\n",
				v, strconv.Itoa(v))
		} else {
			fmt.Fprintf(&buf, "  n%d [shape=point, width=0.08];\n", v)
		}
	}

	buf.WriteString("\n")
	for _, e := range t.Postorder() {
		fmt.Fprintf(&buf, "  n%d -> n%d;\n", e.Parent, e.Child)
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

// SVG renders a DOT graph to SVG using Graphviz.
func SVG(dot string) ([]byte, error) {
	return renderAs(dot, graphviz.SVG, normalizeViewBox)
}

// PNG renders a DOT graph to PNG using Graphviz.
func PNG(dot string) ([]byte, error) {
	return renderAs(dot, graphviz.PNG, nil)
}

func renderAs(dot string, format graphviz.Format, post func([]byte) []byte) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	out := buf.Bytes()
	if post != nil {
		out = post(out)
	}
	return out, nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root svg tag so the document scales cleanly
// when embedded.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
