// Package pipeline provides the core search pipeline for partree.
//
// This package implements the complete read → search → render flow shared
// by the CLI and the HTTP API. Centralizing it keeps behavior identical
// across entry points and gives both the same caching.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Read: parse the alignment and build the encoded character matrix
//  2. Search: run the parsimony search over the matrix
//  3. Render: emit the result tree as Newick plus optional DOT/SVG/PNG
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    AlignmentPath: "primates.fasta",
//	    Formats:       []string{"newick", "svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Newick)
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/partree/partree/pkg/cache"
	"github.com/partree/partree/pkg/errors"
	"github.com/partree/partree/pkg/phylo/search"
	"github.com/partree/partree/pkg/render"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultFormat is the alignment format sniffed from the input.
	DefaultFormat = "auto"

	// DefaultAlphabet is the symbol alphabet applied to sequences.
	DefaultAlphabet = "dna"

	// DefaultTTL is how long cached search results and artifacts live.
	DefaultTTL = 24 * time.Hour
)

// Output format constants.
const (
	FormatNewick = "newick"
	FormatDOT    = render.FormatDOT
	FormatSVG    = render.FormatSVG
	FormatPNG    = render.FormatPNG
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatNewick: true,
	FormatDOT:    true,
	FormatSVG:    true,
	FormatPNG:    true,
}

// ValidAlignmentFormats is the set of accepted input format names.
var ValidAlignmentFormats = map[string]bool{
	"auto":   true,
	"fasta":  true,
	"phylip": true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the search pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Input options. Exactly one of AlignmentPath or Alignment is set;
	// the API supplies raw bytes, the CLI a path.
	AlignmentPath string `json:"alignment_path,omitempty"`
	Alignment     []byte `json:"alignment,omitempty"`
	Format        string `json:"format,omitempty"`
	Alphabet      string `json:"alphabet,omitempty"`

	// Search options
	Mode            string  `json:"mode,omitempty"`
	MaxRounds       int     `json:"max_rounds,omitempty"`
	RatchetRounds   int     `json:"ratchet_rounds,omitempty"`
	PerturbStrength float64 `json:"perturb_strength,omitempty"`
	Seed            int64   `json:"seed,omitempty"`
	StartNewick     string  `json:"start_newick,omitempty"`
	Refresh         bool    `json:"refresh,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.AlignmentPath == "" && len(o.Alignment) == 0 {
		return errors.New(errors.ErrCodeInvalidOption, "alignment input is required")
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if !ValidAlignmentFormats[o.Format] {
		return errors.New(errors.ErrCodeInvalidOption,
			"invalid format %q (must be one of: auto, fasta, phylip)", o.Format)
	}
	if o.Alphabet == "" {
		o.Alphabet = DefaultAlphabet
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatNewick}
	}
	for _, f := range o.Formats {
		if !ValidFormats[f] {
			return errors.New(errors.ErrCodeInvalidOption,
				"invalid output format %q (must be one of: newick, dot, svg, png)", f)
		}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	// Search option validation is shared with direct library use.
	so := o.searchOptions()
	if err := so.ValidateAndSetDefaults(); err != nil {
		return err
	}
	o.Mode = so.Mode
	o.MaxRounds = so.MaxRounds
	o.PerturbStrength = so.PerturbStrength
	o.Seed = so.Seed
	o.validated = true
	return nil
}

// searchOptions projects the pipeline options onto the search layer.
func (o *Options) searchOptions() search.Options {
	return search.Options{
		Mode:            o.Mode,
		MaxRounds:       o.MaxRounds,
		RatchetRounds:   o.RatchetRounds,
		PerturbStrength: o.PerturbStrength,
		Seed:            o.Seed,
		Logger:          o.Logger,
	}
}

// SearchKeyOpts returns the cache key options for the search stage.
func (o *Options) SearchKeyOpts() cache.SearchKeyOpts {
	return cache.SearchKeyOpts{
		Mode:            o.Mode,
		MaxRounds:       o.MaxRounds,
		RatchetRounds:   o.RatchetRounds,
		PerturbStrength: o.PerturbStrength,
		Seed:            o.Seed,
	}
}

// =============================================================================
// Result
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID uniquely identifies this execution.
	RunID uuid.UUID `json:"run_id"`

	// Newick is the best topology found, in Newick notation.
	Newick string `json:"newick"`

	// Score is the parsimony score of the result tree.
	Score int `json:"score"`

	// Swaps counts accepted rearrangements during the search.
	Swaps int `json:"swaps"`

	// Taxa lists the taxon names in tip-id order.
	Taxa []string `json:"taxa"`

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte `json:"-"`

	// Stats contains timing and size information.
	Stats Stats `json:"stats"`

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo `json:"cache_info"`
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Taxa       int           `json:"taxa"`
	Sites      int           `json:"sites"`
	Patterns   int           `json:"patterns"`
	ReadTime   time.Duration `json:"read_time"`
	SearchTime time.Duration `json:"search_time"`
	RenderTime time.Duration `json:"render_time"`
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	SearchHit bool `json:"search_hit"` // Whether the search result came from cache
	RenderHit bool `json:"render_hit"` // Whether all artifacts came from cache
}
