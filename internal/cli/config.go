package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/partree/partree/pkg/phylo/search"
	"github.com/partree/partree/pkg/pipeline"
)

// Config holds settings loaded from the user's TOML config file. Every
// field has a zero value meaning "use the built-in default", so a missing
// file behaves the same as an empty one. Command-line flags that the user
// sets explicitly override config values.
type Config struct {
	Cache  CacheConfig  `toml:"cache"`
	Search SearchConfig `toml:"search"`
	Serve  ServeConfig  `toml:"serve"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Disabled turns caching off entirely.
	Disabled bool `toml:"disabled"`

	// Dir overrides the file cache directory.
	Dir string `toml:"dir"`

	// Prefix namespaces cache keys, so several projects can share one
	// Redis instance without colliding.
	Prefix string `toml:"prefix"`

	// Redis switches to a shared Redis cache when Addr is set.
	Redis RedisConfig `toml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// SearchConfig holds default search parameters.
type SearchConfig struct {
	Mode            string  `toml:"mode"`
	MaxRounds       int     `toml:"max_rounds"`
	RatchetRounds   int     `toml:"ratchet_rounds"`
	PerturbStrength float64 `toml:"perturb_strength"`
	Seed            int64   `toml:"seed"`
}

// ServeConfig holds HTTP server settings.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// defaultConfigPath returns ~/.config/partree/config.toml, honoring
// XDG_CONFIG_HOME.
func defaultConfigPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// loadConfig reads the config file at path, or the default location when
// path is empty. A missing file at the default location is not an error;
// a missing file named explicitly is.
func loadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		path, err = defaultConfigPath()
		if err != nil {
			return &Config{}, nil
		}
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) && !explicit {
			return &Config{}, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// applySearchDefaults copies config search settings into pipeline options
// for fields the flags left at their zero value.
func (c *Config) applySearchDefaults(opts *pipeline.Options) {
	if opts.Mode == "" {
		opts.Mode = c.Search.Mode
	}
	if opts.MaxRounds == 0 {
		opts.MaxRounds = c.Search.MaxRounds
	}
	if opts.RatchetRounds == 0 {
		opts.RatchetRounds = c.Search.RatchetRounds
	}
	if opts.PerturbStrength == 0 {
		opts.PerturbStrength = c.Search.PerturbStrength
	}
	if opts.Seed == 0 {
		opts.Seed = c.Search.Seed
	}
}

// serveAddr returns the configured listen address, falling back to the
// given default.
func (c *Config) serveAddr(fallback string) string {
	if c.Serve.Addr != "" {
		return c.Serve.Addr
	}
	return fallback
}

// configKey is the context key for the loaded config.
const configKey ctxKey = 1

// withConfig returns a new context with the config attached.
func withConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// configFromContext retrieves the config from ctx, returning an empty
// config if none is attached.
func configFromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return &Config{}
}

// searchModes lists the accepted --mode values for help text.
func searchModes() string {
	return search.ModeNNI + ", " + search.ModeNNISPR
}
