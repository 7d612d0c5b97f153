package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvobserve-go/internal/cli/output"
	"github.com/yndnr/kvobserve-go/internal/config"
	"github.com/yndnr/kvobserve-go/internal/infra/tlsroots"
	"github.com/yndnr/kvobserve-go/internal/storage/badgerstore"
	"github.com/yndnr/kvobserve-go/internal/storage/memory"
	"github.com/yndnr/kvobserve-go/internal/storage/pgstore"
	"github.com/yndnr/kvobserve-go/internal/storage/sqlitestore"
	"github.com/yndnr/kvobserve-go/internal/telemetry/logger"
	"github.com/yndnr/kvobserve-go/internal/telemetry/metric"
	"github.com/yndnr/kvobserve-go/internal/telemetry/tracer"
	"github.com/yndnr/kvobserve-go/pkg/kvstore"
	"github.com/yndnr/kvobserve-go/pkg/kvstore/codec"
	"github.com/yndnr/kvobserve-go/pkg/observable"
)

const tracerName = "github.com/yndnr/kvobserve-go/internal/cli"

// env is everything one command invocation needs.
type env struct {
	cfg       *config.Config
	cfgPath   string
	overrides map[string]any

	log     logger.Logger
	metrics *metric.Registry
	format  output.Format

	backend kvstore.Store
	store   *observable.Store

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// action wraps fn with environment setup and teardown.
func action(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		runErr := fn(c, e)
		closeErr := e.Close(context.WithoutCancel(c.Context))
		return errors.Join(runErr, closeErr)
	}
}

func newEnv(c *cli.Context) (e *env, err error) {
	ctx := c.Context
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}

	e = &env{
		cfgPath:   c.String("config"),
		overrides: overrides(c),
		format:    format,
	}
	e.cfg, err = config.Load(e.cfgPath, e.overrides)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = e.Close(context.WithoutCancel(ctx))
		}
	}()

	e.log, err = logger.New(logger.Config{
		Level:  e.cfg.Log.Level,
		Format: e.cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return nil, err
	}
	e.log = e.log.With("command", c.Command.Name, "command_id", ulid.Make().String())
	logger.SetDefault(e.log)

	tlsCfg, err := tlsroots.ClientConfig(e.cfg.Telemetry.CAFile)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	shutdownTracing, err := tracer.Setup(ctx, tracer.Config{
		Endpoint:    e.cfg.Telemetry.Endpoint,
		ServiceName: e.cfg.Telemetry.ServiceName,
		SampleRatio: e.cfg.Telemetry.SampleRatio,
		TLS:         tlsCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	e.onClose("tracer", shutdownTracing)

	e.metrics = metric.NewRegistry()

	backend, closeBackend, err := openBackend(ctx, e.cfg, e.log.Slog())
	if err != nil {
		return nil, err
	}
	e.backend = backend
	e.onClose("backend", closeBackend)

	if bs, ok := backend.(*badgerstore.Store); ok {
		if err := bs.RegisterMetrics(e.metrics.Registerer()); err != nil {
			return nil, err
		}
	}

	valueCodec, err := codec.ByName(e.cfg.Codec)
	if err != nil {
		return nil, err
	}
	e.store = e.observe(backend, valueCodec)

	e.log.Debug("environment ready",
		"backend", e.cfg.Storage.Backend,
		"codec", valueCodec.Name(),
		"dsn", logger.RedactDSN(e.cfg.Storage.DSN),
	)
	return e, nil
}

// observe wraps backend with the instrumented observable store.
func (e *env) observe(backend kvstore.Store, c kvstore.Codec) *observable.Store {
	return observable.New(backend,
		observable.WithCodec(c),
		observable.WithLogger(e.log.Slog()),
		observable.WithMetrics(e.metrics),
		observable.WithTracer(tracer.Tracer(tracerName)),
	)
}

func (e *env) onClose(name string, fn func(context.Context) error) {
	e.closers = append(e.closers, closer{name: name, fn: fn})
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close(ctx context.Context) error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.closers[i].name, err))
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (kvstore.Store, func(context.Context) error, error) {
	nop := func(context.Context) error { return nil }
	sc := cfg.Storage

	switch sc.Backend {
	case config.BackendMemory:
		return memory.New(), nop, nil

	case config.BackendBadger:
		bc := badgerstore.DefaultConfig(sc.Path)
		bc.GCInterval = sc.Badger.GCInterval
		bc.CacheSize = sc.Badger.CacheSize
		bc.SyncWrites = sc.Badger.SyncWrites
		s, err := badgerstore.Open(bc, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func(context.Context) error { return s.Close() }, nil

	case config.BackendSQLite:
		if sc.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(sc.Path), 0o750); err != nil {
				return nil, nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		s, err := sqlitestore.Open(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func(context.Context) error { return s.Close() }, nil

	case config.BackendPostgres:
		tlsCfg, err := tlsroots.ClientConfig(sc.CAFile)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		s, err := pgstore.Connect(ctx, sc.DSN, tlsCfg,
			pgstore.WithTableName(sc.Table),
			pgstore.WithLogger(log),
		)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, func(context.Context) error { s.Close(); return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

// print renders data in the selected output format.
func (e *env) print(c *cli.Context, data any) error {
	return output.NewFormatter(e.format).Format(c.App.Writer, data)
}
