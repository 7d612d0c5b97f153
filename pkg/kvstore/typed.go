package kvstore

import "context"

// Encode encodes v with c, classifying failures as ErrEncode.
func Encode[V any](c Codec, key string, v V) ([]byte, error) {
	data, err := c.Marshal(v)
	if err != nil {
		return nil, ErrEncode.WithKey(key).WithCause(err)
	}
	return data, nil
}

// Decode decodes data with c into a V, classifying failures as ErrDecode.
func Decode[V any](c Codec, key string, data []byte) (V, error) {
	var v V
	if err := c.Unmarshal(data, &v); err != nil {
		var zero V
		return zero, ErrDecode.WithKey(key).WithCause(err)
	}
	return v, nil
}

// SetValue encodes v and stores it under key.
func SetValue[V any](ctx context.Context, s Store, c Codec, key string, v V) error {
	if key == "" {
		return ErrInvalidArgument.WithDetails("empty key")
	}
	data, err := Encode(c, key, v)
	if err != nil {
		return err
	}
	return IOError(key, s.Set(ctx, key, data))
}

// Value reads and decodes the value stored under key.
// A nil result with a nil error means the key is absent.
func Value[V any](ctx context.Context, s Store, c Codec, key string) (*V, error) {
	if key == "" {
		return nil, ErrInvalidArgument.WithDetails("empty key")
	}
	data, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, IOError(key, err)
	}
	if !found {
		return nil, nil
	}
	v, err := Decode[V](c, key, data)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// RemoveValue deletes key. Removing an absent key succeeds.
func RemoveValue(ctx context.Context, s Store, key string) error {
	if key == "" {
		return ErrInvalidArgument.WithDetails("empty key")
	}
	return IOError(key, s.Delete(ctx, key))
}

// SetOptional stores *v under key, or removes key when v is nil.
func SetOptional[V any](ctx context.Context, s Store, c Codec, key string, v *V) error {
	if v == nil {
		return RemoveValue(ctx, s, key)
	}
	return SetValue(ctx, s, c, key, *v)
}
