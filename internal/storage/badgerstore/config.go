package badgerstore

import "time"

// Config configures a Badger-backed store.
type Config struct {
	// Dir is the storage directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps all data in memory. Used by tests.
	InMemory bool

	// GCInterval is the interval between automatic value log GC runs.
	// Zero disables the GC loop.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 16MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// SyncWrites enables fsync after each write.
	// Default: true (preferences are small and must survive a crash)
	SyncWrites bool
}

// DefaultConfig returns the default configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        16 << 20, // 16MB
		ValueLogFileSize: 64 << 20, // 64MB
		NumMemtables:     2,
		SyncWrites:       true,
	}
}
