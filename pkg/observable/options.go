package observable

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
	"github.com/yndnr/kvobserve-go/pkg/kvstore/codec"
)

const instrumentationName = "github.com/yndnr/kvobserve-go/pkg/observable"

// Metrics receives observation events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// ObserverAdded is called when a handle is registered.
	ObserverAdded()
	// ObserverRemoved is called when a handle is unregistered. leaked is
	// true when the handle was reclaimed without Close.
	ObserverRemoved(leaked bool)
	// Notified is called after a notify pass for one key.
	Notified(kind string, delivered int)
	// Write is called after every store mutation attempt.
	Write(op string, err error)
}

type nopMetrics struct{}

func (nopMetrics) ObserverAdded()       {}
func (nopMetrics) ObserverRemoved(bool) {}
func (nopMetrics) Notified(string, int) {}
func (nopMetrics) Write(string, error)  {}

type config struct {
	codec   kvstore.Codec
	logger  *slog.Logger
	metrics Metrics
	tracer  trace.Tracer
}

func defaultConfig() config {
	return config{
		codec:   codec.JSON,
		logger:  slog.Default(),
		metrics: nopMetrics{},
		tracer:  otel.Tracer(instrumentationName),
	}
}

// Option configures a Store or a Registry.
type Option func(*config)

// WithCodec sets the codec used to encode and decode values.
func WithCodec(c kvstore.Codec) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.codec = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(cfg *config) {
		if m != nil {
			cfg.metrics = m
		}
	}
}

// WithTracer sets the tracer used for store operations. The default is the
// global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(cfg *config) {
		if t != nil {
			cfg.tracer = t
		}
	}
}
