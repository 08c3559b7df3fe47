package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/partree/partree/pkg/cache"
	"github.com/partree/partree/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "partree"

// newRunner creates a pipeline runner wired to the configured cache
// backend.
func newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	c, err := newCacheBackend(ctx, noCache)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if prefix := configFromContext(ctx).Cache.Prefix; prefix != "" {
		keyer = cache.NewScopedKeyer(nil, prefix)
	}
	return pipeline.NewRunner(c, keyer, loggerFromContext(ctx)), nil
}

// newCacheBackend picks the cache backend: null when disabled, Redis when
// configured, file cache otherwise.
func newCacheBackend(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg := configFromContext(ctx)
	if noCache || cfg.Cache.Disabled {
		return cache.NewNullCache(), nil
	}
	if addr := cfg.Cache.Redis.Addr; addr != "" {
		return cache.NewRedisCache(ctx, addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		var err error
		dir, err = cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/partree/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatNewick}
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// basePath derives the base output path from the output and input paths.
// If output is empty, it strips the extension from input. If output ends
// in a known artifact extension, that extension is stripped.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	switch strings.TrimPrefix(ext, ".") {
	case "nwk", "dot", "svg", "png":
		return strings.TrimSuffix(output, ext)
	}
	return output
}
