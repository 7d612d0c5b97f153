// Package badgerstore implements kvstore.Store on top of Badger v3.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("badgerstore: closed")

// Store is a persistent kvstore.Store backed by Badger.
type Store struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger

	closed           atomic.Bool
	lastGCTime       atomic.Int64 // Unix milliseconds
	gcRuns           atomic.Uint64
	gcBytesReclaimed atomic.Uint64

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// Stats contains storage statistics.
type Stats struct {
	LSMSize      int64
	ValueLogSize int64
	LastGCTime   int64 // Unix milliseconds
	GCRuns       uint64
}

// Open opens (or creates) a Badger store.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badgerstore: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumMemtables > 0 {
		opts.NumMemtables = cfg.NumMemtables
	}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open db: %w", err)
	}

	s := &Store{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop(cfg.GCInterval)
	} else {
		close(s.doneCh)
	}

	logger.Info("badger store opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, kvstore.IOError(key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return kvstore.IOError(key, err)
}

// Delete removes key. Deleting an absent key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return kvstore.IOError(key, err)
}

// Keys returns the keys with the given prefix in ascending order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, kvstore.IOError(prefix, err)
	}
	return keys, nil
}

// Backup writes a full backup of the store to w.
func (s *Store) Backup(ctx context.Context, w io.Writer) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := s.db.Backup(w, 0); err != nil {
		return fmt.Errorf("badgerstore: backup: %w", err)
	}
	return nil
}

// Restore loads a backup produced by Backup. Existing keys are overwritten;
// keys absent from the backup are kept.
func (s *Store) Restore(ctx context.Context, r io.Reader) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.db.Load(r, 256); err != nil {
		return fmt.Errorf("badgerstore: load backup: %w", err)
	}
	s.logger.Info("backup restored")
	return nil
}

// GC runs value log garbage collection until nothing more can be
// rewritten. It returns the number of rewrite passes performed.
func (s *Store) GC(ctx context.Context) (int, error) {
	if s.cfg.InMemory {
		return 0, nil
	}
	start := time.Now()

	runs := 0
	for {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		err := s.db.RunValueLogGC(s.gcThreshold())
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return runs, fmt.Errorf("badgerstore: gc: %w", err)
		}
		runs++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.gcRuns.Add(uint64(runs))

	s.logger.Debug("gc completed",
		"rewrites", runs,
		"elapsed", time.Since(start))

	return runs, nil
}

// Stats returns storage statistics.
func (s *Store) Stats() Stats {
	lsm, vlog := s.db.Size()
	return Stats{
		LSMSize:      lsm,
		ValueLogSize: vlog,
		LastGCTime:   s.lastGCTime.Load(),
		GCRuns:       s.gcRuns.Load(),
	}
}

// RegisterMetrics registers storage gauges with reg. The gauges read Stats
// at scrape time.
func (s *Store) RegisterMetrics(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "kvobserve",
			Subsystem: "badger",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes",
		}, func() float64 { return float64(s.Stats().LSMSize) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "kvobserve",
			Subsystem: "badger",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes",
		}, func() float64 { return float64(s.Stats().ValueLogSize) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "kvobserve",
			Subsystem: "badger",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix timestamp of the last Badger GC run",
		}, func() float64 { return float64(s.lastGCTime.Load()) / 1000.0 }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "kvobserve",
			Subsystem: "badger",
			Name:      "gc_rewrites_total",
			Help:      "Total value log files rewritten by Badger GC",
		}, func() float64 { return float64(s.gcRuns.Load()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("badgerstore: register metrics: %w", err)
		}
	}
	return nil
}

// Close stops the GC loop and closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
		<-s.doneCh

		if cerr := s.db.Close(); cerr != nil {
			err = fmt.Errorf("badgerstore: close db: %w", cerr)
			return
		}
		s.logger.Info("badger store closed")
	})
	return err
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return kvstore.ErrStoreIO.WithCause(ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return kvstore.ErrStoreIO.WithCause(err)
	}
	return nil
}

func (s *Store) gcThreshold() float64 {
	if s.cfg.GCThreshold <= 0 || s.cfg.GCThreshold >= 1 {
		return 0.5
	}
	return s.cfg.GCThreshold
}

// gcLoop runs periodic garbage collection.
func (s *Store) gcLoop(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := s.GC(ctx); err != nil {
				s.logger.Error("auto gc failed", "error", err)
			}
			cancel()

		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
