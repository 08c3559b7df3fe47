// Package cache provides pluggable result caching for search and render
// pipelines. Backends share one small interface; keys are derived from
// content hashes so that identical inputs hit the same entry regardless of
// where the run happens.
package cache

import (
	"context"
	"time"
)

// Cache is the storage interface all backends implement.
type Cache interface {
	// Get retrieves a value. The second result reports whether the key
	// was present; absence is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// SearchKeyOpts are the option fields that change a search result.
type SearchKeyOpts struct {
	Mode            string  `json:"mode"`
	MaxRounds       int     `json:"max_rounds"`
	RatchetRounds   int     `json:"ratchet_rounds"`
	PerturbStrength float64 `json:"perturb_strength"`
	Seed            int64   `json:"seed"`
}

// RenderKeyOpts are the option fields that change a rendered artifact.
type RenderKeyOpts struct {
	Format string `json:"format"`
}

// Keyer generates cache keys for pipeline stages.
type Keyer interface {
	// SearchKey keys a search result by matrix fingerprint and the
	// options that influence the search.
	SearchKey(fingerprint string, opts SearchKeyOpts) string

	// RenderKey keys a rendered artifact by the tree it depicts and the
	// render options.
	RenderKey(newick string, opts RenderKeyOpts) string
}

// DefaultKeyer is the standard key scheme.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// SearchKey generates a key for search result caching.
func (k *DefaultKeyer) SearchKey(fingerprint string, opts SearchKeyOpts) string {
	return hashKey("search", fingerprint, opts)
}

// RenderKey generates a key for artifact caching.
func (k *DefaultKeyer) RenderKey(newick string, opts RenderKeyOpts) string {
	return hashKey("render", newick, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
