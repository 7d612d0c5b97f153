package observable

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

// Notification kinds reported to Metrics.
const (
	KindSet    = "set"
	KindRemove = "remove"
	KindRaw    = "raw"
)

// Encoded is the notification payload for writes made with SetRaw. Typed
// observers decode it with the store codec.
type Encoded []byte

// Store composes a kvstore.Store with a Registry. Writes go to the backing
// store first; observers are notified only when the write succeeded, and
// before the write call returns.
type Store struct {
	backend  kvstore.Store
	registry *Registry

	codec   kvstore.Codec
	logger  *slog.Logger
	metrics Metrics
	tracer  trace.Tracer
}

// New wraps backend with change observation.
func New(backend kvstore.Store, opts ...Option) *Store {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{
		backend:  backend,
		registry: newRegistry(cfg),
		codec:    cfg.codec,
		logger:   cfg.logger,
		metrics:  cfg.metrics,
		tracer:   cfg.tracer,
	}
}

// Registry returns the store's observer registry.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Codec returns the codec used for typed access.
func (s *Store) Codec() kvstore.Codec {
	return s.codec
}

// Backend returns the wrapped store.
func (s *Store) Backend() kvstore.Store {
	return s.backend
}

// SetRaw stores already-encoded bytes under key and notifies observers with
// an Encoded payload.
func (s *Store) SetRaw(ctx context.Context, key string, data []byte) error {
	ctx, span := s.startSpan(ctx, "kvobserve.set_raw", key)
	defer span.End()

	if key == "" {
		return s.endWrite(span, "set_raw", key, kvstore.ErrInvalidArgument.WithDetails("empty key"))
	}
	err := kvstore.IOError(key, s.backend.Set(ctx, key, data))
	if err := s.endWrite(span, "set_raw", key, err); err != nil {
		return err
	}

	payload := make(Encoded, len(data))
	copy(payload, data)
	s.notify(key, KindRaw, payload)
	return nil
}

// GetRaw returns the stored bytes under key.
func (s *Store) GetRaw(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := s.startSpan(ctx, "kvobserve.get_raw", key)
	defer span.End()

	data, found, err := s.backend.Get(ctx, key)
	if err != nil {
		err = kvstore.IOError(key, err)
		recordError(span, err)
		return nil, false, err
	}
	return data, found, nil
}

// Remove deletes key and notifies observers with nil.
func (s *Store) Remove(ctx context.Context, key string) error {
	ctx, span := s.startSpan(ctx, "kvobserve.remove", key)
	defer span.End()

	err := kvstore.RemoveValue(ctx, s.backend, key)
	if err := s.endWrite(span, "remove", key, err); err != nil {
		return err
	}

	s.notify(key, KindRemove, nil)
	return nil
}

// Keys lists stored keys with the given prefix. The backend must implement
// kvstore.Scanner.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	scanner, ok := s.backend.(kvstore.Scanner)
	if !ok {
		return nil, kvstore.ErrInvalidArgument.WithDetails("backend does not support key listing")
	}
	keys, err := scanner.Keys(ctx, prefix)
	if err != nil {
		return nil, kvstore.IOError(prefix, err)
	}
	return keys, nil
}

func (s *Store) notify(key, kind string, value any) {
	delivered := s.registry.Notify(key, value)
	s.metrics.Notified(kind, delivered)
	s.logger.Debug("change notified",
		"key", key,
		"kind", kind,
		"observers", delivered)
}

func (s *Store) startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("kv.key", key),
			attribute.String("kv.codec", s.codec.Name()),
		))
}

func (s *Store) endWrite(span trace.Span, op, key string, err error) error {
	s.metrics.Write(op, err)
	if err != nil {
		recordError(span, err)
		s.logger.Warn("write failed", "op", op, "key", key, "error", err)
		return err
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("kv.error_code", kvstore.Code(err)))
}

// SetValue encodes v, writes it under key and, on success, notifies the
// key's observers with v.
func SetValue[V any](ctx context.Context, s *Store, key string, v V) error {
	ctx, span := s.startSpan(ctx, "kvobserve.set", key)
	defer span.End()

	err := kvstore.SetValue(ctx, s.backend, s.codec, key, v)
	if err := s.endWrite(span, "set", key, err); err != nil {
		return err
	}

	if any(v) == nil {
		s.notify(key, KindSet, storedNil{})
		return nil
	}
	s.notify(key, KindSet, v)
	return nil
}

// SetOptional writes *v under key, or removes key when v is nil.
func SetOptional[V any](ctx context.Context, s *Store, key string, v *V) error {
	if v == nil {
		return s.Remove(ctx, key)
	}
	return SetValue(ctx, s, key, *v)
}

// RemoveValue deletes key and notifies its observers with nil.
func RemoveValue(ctx context.Context, s *Store, key string) error {
	return s.Remove(ctx, key)
}

// Value reads and decodes the value under key. It has no notification side
// effect. A nil result with a nil error means the key is absent.
func Value[V any](ctx context.Context, s *Store, key string) (*V, error) {
	ctx, span := s.startSpan(ctx, "kvobserve.get", key)
	defer span.End()

	v, err := kvstore.Value[V](ctx, s.backend, s.codec, key)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("kv.found", v != nil))
	return v, nil
}
