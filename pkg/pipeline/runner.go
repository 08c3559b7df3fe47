package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/partree/partree/pkg/align"
	"github.com/partree/partree/pkg/cache"
	"github.com/partree/partree/pkg/errors"
	"github.com/partree/partree/pkg/observability"
	"github.com/partree/partree/pkg/phylo/newick"
	"github.com/partree/partree/pkg/phylo/search"
	"github.com/partree/partree/pkg/render"
)

// Runner executes the search pipeline with optional caching.
type Runner struct {
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger
}

// NewRunner creates a pipeline runner. A nil cache disables caching, a nil
// keyer falls back to the default key scheme, and a nil logger discards
// all output.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{})
	}
	return &Runner{cache: c, keyer: keyer, logger: logger}
}

// searchPayload is the cached representation of a search result.
type searchPayload struct {
	Newick string `json:"newick"`
	Score  int    `json:"score"`
	Swaps  int    `json:"swaps"`
}

// Execute runs the full pipeline: read the alignment, search for a
// minimum-parsimony tree, and render the requested output formats.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     uuid.New(),
		Artifacts: make(map[string][]byte),
	}

	mat, err := r.readStage(ctx, &opts, result)
	if err != nil {
		return nil, err
	}
	result.Taxa = mat.Taxa

	if err := r.searchStage(ctx, &opts, mat, result); err != nil {
		return nil, err
	}

	if err := r.renderStage(ctx, &opts, result); err != nil {
		return nil, err
	}

	return result, nil
}

// readStage loads the alignment and builds the encoded matrix.
func (r *Runner) readStage(ctx context.Context, opts *Options, result *Result) (*align.Matrix, error) {
	start := time.Now()

	data := opts.Alignment
	if len(data) == 0 {
		var err error
		data, err = os.ReadFile(opts.AlignmentPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrap(errors.ErrCodeFileNotFound, err,
					"alignment file %s", opts.AlignmentPath)
			}
			return nil, errors.Wrap(errors.ErrCodeInternal, err,
				"read alignment %s", opts.AlignmentPath)
		}
	}

	var (
		aln *align.Alignment
		err error
	)
	switch opts.Format {
	case "fasta":
		aln, err = align.ReadFasta(bytes.NewReader(data))
	case "phylip":
		aln, err = align.ReadPhylip(bytes.NewReader(data))
	default:
		aln, err = align.ReadAuto(bytes.NewReader(data))
	}
	if err != nil {
		observability.Search().OnReadComplete(ctx, 0, 0, time.Since(start), err)
		return nil, err
	}

	ab, err := align.AlphabetByName(opts.Alphabet)
	if err != nil {
		return nil, err
	}
	mat, err := align.NewMatrix(aln, ab)
	if err != nil {
		observability.Search().OnReadComplete(ctx, aln.NTaxa(), aln.NSites(), time.Since(start), err)
		return nil, err
	}

	result.Stats.Taxa = mat.NTaxa()
	result.Stats.Sites = aln.NSites()
	result.Stats.Patterns = mat.NPatterns()
	result.Stats.ReadTime = time.Since(start)
	observability.Search().OnReadComplete(ctx, mat.NTaxa(), aln.NSites(), result.Stats.ReadTime, nil)

	opts.Logger.Info("alignment loaded",
		"taxa", mat.NTaxa(),
		"sites", aln.NSites(),
		"patterns", mat.NPatterns(),
		"duration", result.Stats.ReadTime)
	return mat, nil
}

// searchStage runs the parsimony search, consulting the cache first.
func (r *Runner) searchStage(ctx context.Context, opts *Options, mat *align.Matrix, result *Result) error {
	start := time.Now()
	key := r.keyer.SearchKey(mat.Fingerprint(), opts.SearchKeyOpts())

	// A supplied start tree changes the outcome but not the key options,
	// so cached results only apply to runs without one.
	cacheable := opts.StartNewick == ""

	if cacheable && !opts.Refresh {
		data, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			opts.Logger.Warn("search cache lookup failed", "error", err)
		}
		if ok {
			var payload searchPayload
			if err := json.Unmarshal(data, &payload); err == nil {
				observability.Cache().OnCacheHit(ctx, key)
				result.Newick = payload.Newick
				result.Score = payload.Score
				result.Swaps = payload.Swaps
				result.Stats.SearchTime = time.Since(start)
				result.CacheInfo.SearchHit = true
				opts.Logger.Info("search result from cache", "score", payload.Score)
				return nil
			}
			opts.Logger.Warn("discarding undecodable cache entry", "key", key)
		} else if err == nil {
			observability.Cache().OnCacheMiss(ctx, key)
		}
	}

	so := opts.searchOptions()
	if opts.StartNewick != "" {
		t, err := newick.Parse(opts.StartNewick, mat.Taxa)
		if err != nil {
			return err
		}
		so.StartTree = t
	}

	observability.Search().OnSearchStart(ctx, mat.NTaxa(), mat.NPatterns())
	res, err := search.Run(mat, so)
	if err != nil {
		observability.Search().OnSearchComplete(ctx, 0, 0, time.Since(start), err)
		return err
	}

	nwk, err := newick.Write(res.Tree, mat.Taxa)
	if err != nil {
		return err
	}

	result.Newick = nwk
	result.Score = res.Score
	result.Swaps = res.Swaps
	result.Stats.SearchTime = time.Since(start)
	observability.Search().OnSearchComplete(ctx, res.Score, res.Swaps, result.Stats.SearchTime, nil)

	opts.Logger.Info("search complete",
		"score", res.Score,
		"swaps", res.Swaps,
		"rounds", res.Rounds,
		"duration", result.Stats.SearchTime)

	if cacheable {
		data, err := json.Marshal(searchPayload{Newick: nwk, Score: res.Score, Swaps: res.Swaps})
		if err == nil {
			if err := r.cache.Set(ctx, key, data, DefaultTTL); err != nil {
				opts.Logger.Warn("search cache store failed", "error", err)
			} else {
				observability.Cache().OnCacheSet(ctx, key, len(data))
			}
		}
	}
	return nil
}

// renderStage produces the requested artifacts, caching expensive ones.
func (r *Runner) renderStage(ctx context.Context, opts *Options, result *Result) error {
	start := time.Now()
	rendered, hits := 0, 0

	for _, format := range opts.Formats {
		if format == FormatNewick {
			result.Artifacts[FormatNewick] = []byte(result.Newick + "\n")
			continue
		}

		data, hit, err := r.renderArtifact(ctx, opts, result, format)
		if err != nil {
			return err
		}
		rendered++
		if hit {
			hits++
		}
		result.Artifacts[format] = data
	}

	result.Stats.RenderTime = time.Since(start)
	result.CacheInfo.RenderHit = rendered > 0 && hits == rendered
	return nil
}

// renderArtifact renders one format, consulting the cache first.
func (r *Runner) renderArtifact(ctx context.Context, opts *Options, result *Result, format string) ([]byte, bool, error) {
	key := r.keyer.RenderKey(result.Newick, cache.RenderKeyOpts{Format: format})
	if opts.Detailed {
		key = key + ":detailed"
	}

	if !opts.Refresh {
		if data, ok, err := r.cache.Get(ctx, key); err == nil && ok {
			observability.Cache().OnCacheHit(ctx, key)
			return data, true, nil
		}
	}

	start := time.Now()
	observability.Search().OnRenderStart(ctx, format)

	tree, err := newick.Parse(result.Newick, result.Taxa)
	if err != nil {
		return nil, false, err
	}
	dot, err := render.ToDOT(tree, result.Taxa, render.Options{Detailed: opts.Detailed})
	if err != nil {
		observability.Search().OnRenderComplete(ctx, format, time.Since(start), err)
		return nil, false, err
	}

	var data []byte
	switch format {
	case FormatDOT:
		data = []byte(dot)
	case FormatSVG:
		data, err = render.SVG(dot)
	case FormatPNG:
		data, err = render.PNG(dot)
	default:
		err = errors.New(errors.ErrCodeInvalidFormat, "unknown render format %q", format)
	}
	observability.Search().OnRenderComplete(ctx, format, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	if err := r.cache.Set(ctx, key, data, DefaultTTL); err != nil {
		opts.Logger.Warn("render cache store failed", "format", format, "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, key, len(data))
	}
	return data, false, nil
}

// FormatList returns the canonical comma-separated list of valid output
// formats, for CLI help text.
func FormatList() string {
	return strings.Join([]string{FormatNewick, FormatDOT, FormatSVG, FormatPNG}, ", ")
}

// ArtifactExtension maps a format to its file extension.
func ArtifactExtension(format string) string {
	switch format {
	case FormatNewick:
		return "nwk"
	default:
		return format
	}
}
