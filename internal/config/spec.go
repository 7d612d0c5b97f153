// Package config defines the kvobserve configuration.
//
// Keys are single lowercase words per level so that every key can be set
// from the environment: KVOBSERVE_STORAGE_BACKEND maps to storage.backend.
package config

import "time"

// Config is the root configuration of the kvobserve command.
type Config struct {
	Storage   StorageSection   `koanf:"storage" json:"storage" yaml:"storage"`
	Codec     string           `koanf:"codec" json:"codec" yaml:"codec"`
	Log       LogSection       `koanf:"log" json:"log" yaml:"log"`
	Metrics   MetricsSection   `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Telemetry TelemetrySection `koanf:"telemetry" json:"telemetry" yaml:"telemetry"`
	Sealed    SealedSection    `koanf:"sealed" json:"sealed" yaml:"sealed"`
	Shutdown  ShutdownSection  `koanf:"shutdown" json:"shutdown" yaml:"shutdown"`
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// StorageSection selects and configures the backing store.
type StorageSection struct {
	Backend string `koanf:"backend" json:"backend" yaml:"backend"`

	// Path is the badger directory or the sqlite file.
	Path string `koanf:"path" json:"path" yaml:"path"`

	// DSN is the postgres connection string.
	DSN string `koanf:"dsn" json:"dsn" yaml:"dsn"`

	// Table is the postgres table name.
	Table string `koanf:"table" json:"table" yaml:"table"`

	// CAFile is a PEM bundle trusted for postgres TLS.
	CAFile string `koanf:"cafile" json:"cafile" yaml:"cafile"`

	Badger BadgerSection `koanf:"badger" json:"badger" yaml:"badger"`
}

// BadgerSection tunes the badger backend.
type BadgerSection struct {
	GCInterval time.Duration `koanf:"gcinterval" json:"gcinterval" yaml:"gcinterval"`
	CacheSize  int64         `koanf:"cachesize" json:"cachesize" yaml:"cachesize"`
	SyncWrites bool          `koanf:"syncwrites" json:"syncwrites" yaml:"syncwrites"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// MetricsSection configures the Prometheus endpoint of long-running
// commands. An empty address disables it.
type MetricsSection struct {
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`
}

// TelemetrySection configures OTLP trace export. An empty endpoint
// disables it.
type TelemetrySection struct {
	Endpoint    string  `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	ServiceName string  `koanf:"service" json:"service" yaml:"service"`
	SampleRatio float64 `koanf:"ratio" json:"ratio" yaml:"ratio"`
	CAFile      string  `koanf:"cafile" json:"cafile" yaml:"cafile"`
}

// SealedSection configures the encrypted secret store.
type SealedSection struct {
	Service       string `koanf:"service" json:"service" yaml:"service"`
	Accessibility string `koanf:"accessibility" json:"accessibility" yaml:"accessibility"`

	// PassphraseEnv names the environment variable holding the passphrase.
	PassphraseEnv string `koanf:"passphraseenv" json:"passphraseenv" yaml:"passphraseenv"`
}

// ShutdownSection bounds cleanup of long-running commands.
type ShutdownSection struct {
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
}
