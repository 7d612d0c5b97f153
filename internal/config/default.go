package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultBackend          = BackendBadger
	DefaultPostgresTable    = "kv_entries"
	DefaultBadgerGCInterval = 10 * time.Minute
	DefaultBadgerCacheSize  = 16 << 20

	DefaultCodec = "json"

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"

	DefaultServiceName = "kvobserve"
	DefaultSampleRatio = 1.0

	DefaultSealedService       = "default"
	DefaultSealedAccessibility = "when-unlocked"
	DefaultPassphraseEnv       = "KVOBSERVE_PASSPHRASE"

	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "kvobserve")
	}
	return filepath.Join(os.TempDir(), "kvobserve")
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			Backend: DefaultBackend,
			Path:    filepath.Join(DefaultDataDir(), "data"),
			Table:   DefaultPostgresTable,
			Badger: BadgerSection{
				GCInterval: DefaultBadgerGCInterval,
				CacheSize:  DefaultBadgerCacheSize,
				SyncWrites: true,
			},
		},
		Codec: DefaultCodec,
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Telemetry: TelemetrySection{
			ServiceName: DefaultServiceName,
			SampleRatio: DefaultSampleRatio,
		},
		Sealed: SealedSection{
			Service:       DefaultSealedService,
			Accessibility: DefaultSealedAccessibility,
			PassphraseEnv: DefaultPassphraseEnv,
		},
		Shutdown: ShutdownSection{
			Timeout: DefaultShutdownTimeout,
		},
	}
}
