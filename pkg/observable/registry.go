package observable

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Registry maps keys to their live observers.
//
// All state transitions (add, remove, notify snapshot) are serialized by a
// single mutex. Notify invokes callbacks outside the mutex, so callbacks may
// add observers, close handles or notify again without deadlocking.
// Every key present in the registry has at least one observer.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]map[*observer]struct{}

	logger  *slog.Logger
	metrics Metrics
}

// NewRegistry creates an empty registry. Only WithLogger and WithMetrics
// apply.
func NewRegistry(opts ...Option) *Registry {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newRegistry(cfg)
}

func newRegistry(cfg config) *Registry {
	return &Registry{
		buckets: make(map[string]map[*observer]struct{}),
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}
}

// Add registers fn under key and returns the handle that owns the
// registration. fn receives the notified value, which is nil when the key
// was removed.
func (r *Registry) Add(key string, fn func(value any)) *Handle {
	o := &observer{
		id:  ulid.Make(),
		key: key,
		fn:  fn,
		reg: r,
	}

	r.mu.Lock()
	bucket, ok := r.buckets[key]
	if !ok {
		bucket = make(map[*observer]struct{})
		r.buckets[key] = bucket
	}
	bucket[o] = struct{}{}
	r.mu.Unlock()

	r.metrics.ObserverAdded()
	r.logger.Debug("observer added", "key", key, "handle", o.id.String())

	return newHandle(o)
}

// Notify synchronously invokes every live observer of key with value and
// returns the number of observers invoked. Observers of other keys are not
// touched. Invocation order within a key is unspecified.
func (r *Registry) Notify(key string, value any) int {
	r.mu.Lock()
	bucket := r.buckets[key]
	snapshot := make([]*observer, 0, len(bucket))
	for o := range bucket {
		snapshot = append(snapshot, o)
	}
	r.mu.Unlock()

	delivered := 0
	for _, o := range snapshot {
		if o.invoke(value) {
			delivered++
		}
	}
	return delivered
}

// Len returns the number of live observers registered for key.
func (r *Registry) Len(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets[key])
}

// Keys returns the keys that currently have observers, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.buckets))
	for k := range r.buckets {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	sort.Strings(keys)
	return keys
}

func (r *Registry) remove(o *observer, leaked bool) {
	r.mu.Lock()
	if bucket, ok := r.buckets[o.key]; ok {
		delete(bucket, o)
		if len(bucket) == 0 {
			delete(r.buckets, o.key)
		}
	}
	r.mu.Unlock()

	r.metrics.ObserverRemoved(leaked)
	if leaked {
		r.logger.Warn("observer handle reclaimed without Close",
			"key", o.key,
			"handle", o.id.String())
		return
	}
	r.logger.Debug("observer removed", "key", o.key, "handle", o.id.String())
}
