package config

import "github.com/yndnr/kvobserve-go/internal/telemetry/logger"

// Sanitize returns a copy of cfg that is safe to print.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Storage.DSN = logger.RedactDSN(cfg.Storage.DSN)
	return &out
}
