package observable

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/yndnr/kvobserve-go/internal/storage/memory"
)

var errBackend = errors.New("backend unavailable")

// flakyStore wraps an in-memory store and fails operations on demand.
type flakyStore struct {
	*memory.Store
	failGet    atomic.Bool
	failSet    atomic.Bool
	failDelete atomic.Bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.New()}
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGet.Load() {
		return nil, false, errBackend
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet.Load() {
		return errBackend
	}
	return f.Store.Set(ctx, key, value)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.failDelete.Load() {
		return errBackend
	}
	return f.Store.Delete(ctx, key)
}

// recorder collects optional values delivered to a callback.
type recorder[V any] struct {
	mu     sync.Mutex
	values []*V
	errs   []error
}

func (r *recorder[V]) onValue(v *V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder[V]) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder[V]) snapshot() []*V {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*V, len(r.values))
	copy(out, r.values)
	return out
}

func (r *recorder[V]) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

// intsEqual compares a recorded optional-int sequence with want, where nil
// entries in want are written as nil pointers.
func intsEqual(got []*int, want []*int) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		switch {
		case got[i] == nil && want[i] == nil:
		case got[i] == nil || want[i] == nil:
			return false
		case *got[i] != *want[i]:
			return false
		}
	}
	return true
}

func ptr[V any](v V) *V {
	return &v
}

func formatInts(vs []*int) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		if v == nil {
			out[i] = nil
			continue
		}
		out[i] = *v
	}
	return out
}

// fakeMetrics records Metrics calls.
type fakeMetrics struct {
	mu       sync.Mutex
	added    int
	removed  int
	leaked   int
	notified map[string]int
	writes   map[string]int
	failed   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		notified: make(map[string]int),
		writes:   make(map[string]int),
		failed:   make(map[string]int),
	}
}

func (m *fakeMetrics) ObserverAdded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added++
}

func (m *fakeMetrics) ObserverRemoved(leaked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed++
	if leaked {
		m.leaked++
	}
}

func (m *fakeMetrics) Notified(kind string, delivered int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified[kind] += delivered
}

func (m *fakeMetrics) Write(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[op]++
	if err != nil {
		m.failed[op]++
	}
}
