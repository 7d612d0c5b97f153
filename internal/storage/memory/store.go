package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/yndnr/kvobserve-go/pkg/cmap"
	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

// ErrQuotaExceeded is returned by Set when a new key would exceed the
// configured entry limit.
var ErrQuotaExceeded = errors.New("memory: entry quota exceeded")

// Store is an in-memory key-value store.
type Store struct {
	items      *cmap.Map[[]byte]
	maxEntries int
}

// Option configures the Store.
type Option func(*Store)

// WithMaxEntries limits the number of stored keys. Zero means unlimited.
func WithMaxEntries(max int) Option {
	return func(s *Store) {
		s.maxEntries = max
	}
}

// WithShards sets the number of map shards (a power of two).
func WithShards(n int) Option {
	return func(s *Store) {
		s.items = cmap.NewWithShards[[]byte](n)
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		items: cmap.New[[]byte](),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.maxEntries > 0 && !s.items.Has(key) && s.items.Count() >= s.maxEntries {
		return kvstore.ErrStoreIO.WithKey(key).WithCause(
			fmt.Errorf("%w (max %d)", ErrQuotaExceeded, s.maxEntries))
	}

	s.items.Set(key, clone(value))
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.items.Delete(key)
	return nil
}

// Keys returns the stored keys with the given prefix, sorted.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.items.Keys(prefix), nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	return s.items.Count()
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
