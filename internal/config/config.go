// Package config assembles a RunConfig from CLI flags overlaid with
// environment variables (spec §10.3), the way the teacher's
// cmd/sentra/main.go reads flags directly but generalized to also honor
// an env overlay, grounded on github.com/caarlos0/env/v6's struct-tag
// convention (also used this way by internal/mna-nenuphar's config
// loading in the retrieval pack).
package config

import (
	"github.com/caarlos0/env/v6"
)

// RunConfig is the CLI's resolved configuration: the flag values the
// caller seeds it with, overlaid by Load with every matching env var
// that is set (a set env var takes precedence over the flag value).
// cmd/lkr calls Load and discards the result; no package reads these
// fields.
type RunConfig struct {
	// PackedDispatch is loaded from LKR_PACKED_DISPATCH. The VM does not
	// read it: every Function is offered to packed.EnsurePacked.
	PackedDispatch bool `env:"LKR_PACKED_DISPATCH" envDefault:"true"`
	// MaxCaptureDepth is loaded from LKR_MAX_CAPTURE_DEPTH. The compiler
	// does not read it; resolveCapture applies no depth limit.
	MaxCaptureDepth int `env:"LKR_MAX_CAPTURE_DEPTH" envDefault:"8"`
	// BytecodeCacheDir is loaded from LKR_CACHE_DIR; nothing passes it to
	// internal/bcstore.
	BytecodeCacheDir string `env:"LKR_CACHE_DIR" envDefault:""`
	// LogLevel is loaded from LKR_LOG_LEVEL; internal/observability has
	// no verbosity setting and does not read it.
	LogLevel string `env:"LKR_LOG_LEVEL" envDefault:"info"`
}

// Load reads the process environment into a RunConfig seeded with the
// CLI-flag values already parsed by the caller; an env var present in
// the process environment overrides the corresponding field, and
// envDefault only applies to fields env.Parse finds still at their Go
// zero value.
func Load(seed RunConfig) (RunConfig, error) {
	cfg := seed
	if err := env.Parse(&cfg); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}
