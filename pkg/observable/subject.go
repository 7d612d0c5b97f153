package observable

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// state is one value of a subject's stream: a value (nil means absent) or
// a terminal failure.
type state[V any] struct {
	value *V
	err   error
}

type event[V any] struct {
	st      *state[V]
	targets []*subscriber[V]
}

type subscriber[V any] struct {
	onValue func(*V)
	onError func(error)
	sub     *Subscription
}

func (s *subscriber[V]) deliver(st *state[V]) {
	if s.sub.done.Load() {
		return
	}
	if st.err != nil {
		s.sub.done.Store(true)
		if s.onError != nil {
			s.onError(st.err)
		}
		return
	}
	if s.onValue != nil {
		s.onValue(clone(st.value))
	}
}

// Subscription is a subscriber's registration with a subject.
type Subscription struct {
	done   atomic.Bool
	cancel func()
}

// Cancel stops delivery to the subscriber. It is safe to call more than
// once, including from inside the subscriber's own callback.
func (s *Subscription) Cancel() {
	if s == nil || !s.done.CompareAndSwap(false, true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Done reports whether the subscription was cancelled or has received a
// terminal failure.
func (s *Subscription) Done() bool {
	return s.done.Load()
}

// stream is the single-slot broadcast primitive behind Subject: last state,
// subscriber list, and an event queue drained by one goroutine at a time so
// every subscriber sees events in generation order. Callbacks run outside
// the mutex; events raised from inside a callback are queued and delivered
// once it returns.
type stream[V any] struct {
	current atomic.Pointer[state[V]]

	mu       sync.Mutex
	subs     []*subscriber[V]
	queue    []event[V]
	draining bool
	terminal bool
	observer atomic.Pointer[observer]
}

func (c *stream[V]) publish(st *state[V]) {
	c.mu.Lock()
	if c.terminal {
		c.mu.Unlock()
		return
	}
	c.current.Store(st)
	targets := slices.Clone(c.subs)
	if st.err != nil {
		c.terminal = true
		c.subs = nil
	}
	c.enqueueLocked(event[V]{st: st, targets: targets})

	if st.err != nil {
		c.detach()
	}
}

func (c *stream[V]) subscribe(onValue func(*V), onError func(error)) *Subscription {
	sub := &Subscription{}
	s := &subscriber[V]{onValue: onValue, onError: onError, sub: sub}

	c.mu.Lock()
	if !c.terminal {
		c.subs = append(c.subs, s)
		sub.cancel = func() { c.unsubscribe(s) }
	}
	c.enqueueLocked(event[V]{st: c.current.Load(), targets: []*subscriber[V]{s}})
	return sub
}

func (c *stream[V]) unsubscribe(s *subscriber[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = slices.DeleteFunc(c.subs, func(x *subscriber[V]) bool { return x == s })
}

// enqueueLocked appends ev and drains the queue unless another call is
// already draining. It must be called with c.mu held and returns with it
// released.
func (c *stream[V]) enqueueLocked(ev event[V]) {
	c.queue = append(c.queue, ev)
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()

	finished := false
	defer func() {
		if !finished {
			// a callback panicked; let the next publish resume draining
			c.mu.Lock()
			c.draining = false
			c.mu.Unlock()
		}
	}()

	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			c.mu.Unlock()
			finished = true
			return
		}
		next := c.queue[0]
		c.queue[0] = event[V]{}
		c.queue = c.queue[1:]
		c.mu.Unlock()

		for _, s := range next.targets {
			s.deliver(next.st)
		}
	}
}

// attach records o as the stream's store observer. A failure published
// before attach ran finds no observer to close, so it is closed here.
func (c *stream[V]) attach(o *observer) {
	c.observer.Store(o)
	c.mu.Lock()
	terminal := c.terminal
	c.mu.Unlock()
	if terminal {
		c.detach()
	}
}

// detach closes the stream's store observer, if any.
func (c *stream[V]) detach() {
	if o := c.observer.Swap(nil); o != nil {
		o.close(false)
	}
}

func (c *stream[V]) close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.sub.done.Store(true)
	}
	c.detach()
}

func clone[V any](v *V) *V {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Subject is a stateful, replaying stream of one key's value.
//
// It reads the key once on construction and then follows the key through a
// single store observer. Subscribers receive the current state immediately
// and every later change, until they cancel or the subject fails. A failure
// (initial read error or a later decode error) is terminal: it is delivered
// once to every current and future subscriber and the store observer is
// released.
//
// Subjects for the same key are independent; each performs its own read and
// holds its own observer. Close releases the observer.
type Subject[V any] struct {
	key    string
	store  *Store
	stream *stream[V]
	handle *Handle
}

// MakeSubject creates a subject for key.
func MakeSubject[V any](ctx context.Context, s *Store, key string) *Subject[V] {
	st := &stream[V]{}
	subject := &Subject[V]{
		key:    key,
		store:  s,
		stream: st,
	}

	v, err := Value[V](ctx, s, key)
	if err != nil {
		st.current.Store(&state[V]{err: err})
		st.terminal = true
		s.logger.Warn("subject initial read failed", "key", key, "error", err)
		return subject
	}
	st.current.Store(&state[V]{value: v})

	subject.handle = AddObserver(s, key,
		func(v *V) {
			st.publish(&state[V]{value: v})
		},
		OnError(func(err error) {
			s.logger.Warn("subject terminated by decode failure", "key", key, "error", err)
			st.publish(&state[V]{err: err})
		}),
	)
	st.attach(subject.handle.o)

	return subject
}

// Key returns the subject's key.
func (s *Subject[V]) Key() string {
	return s.key
}

// Subscribe attaches a subscriber. onValue receives the current value right
// away and then every change; nil means the key is absent. onError receives
// a terminal failure at most once. Either callback may be nil.
func (s *Subject[V]) Subscribe(onValue func(*V), onError func(error)) *Subscription {
	return s.stream.subscribe(onValue, onError)
}

// Set writes v through the store, or removes the key when v is nil.
// Subscribers see the change through the store's notification path.
func (s *Subject[V]) Set(ctx context.Context, v *V) error {
	return SetOptional(ctx, s.store, s.key, v)
}

// Value returns a copy of the last known value; nil means absent or failed.
func (s *Subject[V]) Value() *V {
	return clone(s.stream.current.Load().value)
}

// Err returns the terminal failure, if any.
func (s *Subject[V]) Err() error {
	return s.stream.current.Load().err
}

// Close releases the subject's store observer and ends all subscriptions.
func (s *Subject[V]) Close() {
	s.stream.close()
	if s.handle != nil {
		s.handle.Close()
	}
}

// Publisher returns a read-only view of the subject.
func (s *Subject[V]) Publisher() *Publisher[V] {
	return &Publisher[V]{subject: s}
}

// Publisher is a read-only view of a Subject: it can be subscribed to and
// read, but not written through.
type Publisher[V any] struct {
	subject *Subject[V]
}

// Key returns the observed key.
func (p *Publisher[V]) Key() string {
	return p.subject.key
}

// Subscribe attaches a subscriber; see Subject.Subscribe.
func (p *Publisher[V]) Subscribe(onValue func(*V), onError func(error)) *Subscription {
	return p.subject.Subscribe(onValue, onError)
}

// Value returns a copy of the last known value.
func (p *Publisher[V]) Value() *V {
	return p.subject.Value()
}

// Err returns the terminal failure, if any.
func (p *Publisher[V]) Err() error {
	return p.subject.Err()
}
