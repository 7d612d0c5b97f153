package observable

import (
	"runtime"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// observer is the registry-side record of one registration. The registry
// holds observers; callers hold the *Handle wrapping them.
type observer struct {
	id     ulid.ULID
	key    string
	fn     func(value any)
	reg    *Registry
	closed atomic.Bool
}

// invoke calls the callback unless the observer has been closed. The
// liveness check is the point at which an invocation begins.
func (o *observer) invoke(value any) bool {
	if o.closed.Load() {
		return false
	}
	o.fn(value)
	return true
}

// close marks the observer closed and unregisters it. It reports whether
// this call performed the teardown.
func (o *observer) close(leaked bool) bool {
	if !o.closed.CompareAndSwap(false, true) {
		return false
	}
	o.reg.remove(o, leaked)
	return true
}

// Handle is the caller-owned token for one observer registration.
//
// Close unregisters the observer. After Close returns no new invocation of
// the callback begins; Close may be called from inside the callback itself.
type Handle struct {
	o       *observer
	cleanup runtime.Cleanup
}

func newHandle(o *observer) *Handle {
	h := &Handle{o: o}
	h.cleanup = runtime.AddCleanup(h, func(o *observer) {
		o.close(true)
	}, o)
	return h
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string {
	return h.o.id.String()
}

// Key returns the observed key.
func (h *Handle) Key() string {
	return h.o.key
}

// Active reports whether the handle has not been closed.
func (h *Handle) Active() bool {
	return !h.o.closed.Load()
}

// Close unregisters the observer. It is safe to call more than once.
func (h *Handle) Close() {
	if h == nil {
		return
	}
	h.cleanup.Stop()
	h.o.close(false)
}
