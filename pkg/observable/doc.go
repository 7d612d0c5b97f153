// Package observable adds change observation to a kvstore.Store.
//
// A Store wraps a byte-oriented kvstore.Store and a Registry of observers.
// Successful writes and removals are fanned out synchronously to every live
// observer of the affected key before the write call returns; failed writes
// never notify.
//
// Observers are owned by the caller through a *Handle. Closing the handle
// unregisters the observer and prunes the key's bucket once it is empty.
// A handle that becomes unreachable without being closed is reclaimed by a
// runtime cleanup, which is logged and counted as a leak.
//
// Subject layers replay-on-subscribe semantics on top: it reads the current
// value once, registers a single observer, and streams every later change
// (or a terminal failure) to its subscribers. Publisher is its read-only
// view.
//
//	s := observable.New(memory.New())
//	_ = observable.SetValue(ctx, s, "int", 1)
//
//	subject := observable.MakeSubject[int](ctx, s, "int")
//	defer subject.Close()
//	sub := subject.Subscribe(func(v *int) { ... }, nil)
//	defer sub.Cancel()
package observable
