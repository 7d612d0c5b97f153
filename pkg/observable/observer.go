package observable

import (
	"fmt"
	"reflect"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

type observerConfig struct {
	onError func(error)
}

// ObserverOption configures a typed observer.
type ObserverOption func(*observerConfig)

// OnError sets the callback that receives decode failures of Encoded
// notifications. By default they are logged.
func OnError(fn func(error)) ObserverOption {
	return func(c *observerConfig) {
		c.onError = fn
	}
}

// AddObserver registers onChange for changes of key. onChange receives the
// new value, or nil when the key was removed. The returned handle must be
// closed to stop observation.
//
// Observers of one key must agree on V: a notification carrying a value of
// another type is a programming error and panics.
func AddObserver[V any](s *Store, key string, onChange func(*V), opts ...ObserverOption) *Handle {
	cfg := observerConfig{
		onError: func(err error) {
			s.logger.Warn("observer decode failed", "key", key, "error", err)
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return s.registry.Add(key, bind(key, s.codec, onChange, cfg.onError))
}

// storedNil marks a present key whose value boxed to a nil interface, so
// observers can tell it apart from a removal.
type storedNil struct{}

// bind adapts a typed callback to the registry's erased callback.
func bind[V any](key string, c kvstore.Codec, onChange func(*V), onError func(error)) func(any) {
	return func(value any) {
		switch v := value.(type) {
		case nil:
			onChange(nil)
		case storedNil:
			var zero V
			onChange(&zero)
		case Encoded:
			decoded, err := kvstore.Decode[V](c, key, v)
			if err != nil {
				onError(err)
				return
			}
			onChange(&decoded)
		case V:
			onChange(&v)
		default:
			panic(fmt.Sprintf("observable: type mismatch for key %q: observer expects %v, notified with %T",
				key, reflect.TypeFor[V](), value))
		}
	}
}
