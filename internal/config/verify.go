package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/yndnr/kvobserve-go/internal/storage/sealed"
	"github.com/yndnr/kvobserve-go/internal/telemetry/logger"
	"github.com/yndnr/kvobserve-go/pkg/kvstore/codec"
)

// Verify validates cfg and returns every problem found.
func Verify(cfg *Config) error {
	return errors.Join(
		verifyStorage(&cfg.Storage),
		verifyCodec(cfg.Codec),
		verifyLog(&cfg.Log),
		verifyMetrics(&cfg.Metrics),
		verifyTelemetry(&cfg.Telemetry),
		verifySealed(&cfg.Sealed),
		verifyShutdown(&cfg.Shutdown),
	)
}

func verifyStorage(cfg *StorageSection) error {
	var errs []error
	switch cfg.Backend {
	case BackendMemory:
	case BackendBadger, BackendSQLite:
		if cfg.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for the %s backend", cfg.Backend))
		}
	case BackendPostgres:
		if cfg.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres backend"))
		}
		if cfg.Table == "" {
			errs = append(errs, errors.New("storage.table must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of memory, badger, sqlite, postgres", cfg.Backend))
	}
	if cfg.Badger.GCInterval < 0 {
		errs = append(errs, errors.New("storage.badger.gcinterval must not be negative"))
	}
	if cfg.Badger.CacheSize < 0 {
		errs = append(errs, errors.New("storage.badger.cachesize must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyCodec(name string) error {
	if _, err := codec.ByName(name); err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	var errs []error
	if !logger.ValidLevel(cfg.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level))
	}
	switch cfg.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", cfg.Format))
	}
	return errors.Join(errs...)
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("metrics.addr: %w", err)
	}
	return nil
}

func verifyTelemetry(cfg *TelemetrySection) error {
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return fmt.Errorf("telemetry.ratio %v must be within [0, 1]", cfg.SampleRatio)
	}
	return nil
}

func verifySealed(cfg *SealedSection) error {
	var errs []error
	if cfg.Service == "" {
		errs = append(errs, errors.New("sealed.service must not be empty"))
	}
	if _, err := sealed.ParseAccessibility(cfg.Accessibility); err != nil {
		errs = append(errs, fmt.Errorf("sealed.accessibility: %w", err))
	}
	return errors.Join(errs...)
}

func verifyShutdown(cfg *ShutdownSection) error {
	if cfg.Timeout <= 0 {
		return errors.New("shutdown.timeout must be positive")
	}
	return nil
}
