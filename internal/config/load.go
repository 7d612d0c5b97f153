package config

import (
	"fmt"

	"github.com/yndnr/kvobserve-go/internal/infra/confloader"
)

// Load builds the configuration from the defaults, the optional file at
// path, KVOBSERVE_* environment variables and overrides, in that order of
// increasing precedence, then verifies it.
func Load(path string, overrides map[string]any) (*Config, error) {
	cfg := Default()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
