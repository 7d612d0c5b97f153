package kvstore

import "context"

// Store is a byte-oriented key-value store.
//
// Implementations must be safe for concurrent use. Get of a missing key
// returns (nil, false, nil). Delete of a missing key is a no-op success.
type Store interface {
	// Get returns the bytes stored under key.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key.
	Delete(ctx context.Context, key string) error
}

// Scanner is implemented by stores that can enumerate their keys.
type Scanner interface {
	// Keys returns all keys with the given prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Codec encodes typed values to bytes and back.
//
// Unmarshal receives a pointer to the destination value.
type Codec interface {
	// Name identifies the codec (e.g. "json").
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
