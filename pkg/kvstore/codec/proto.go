package codec

import (
	"errors"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// ErrNotProtoMessage is returned when the proto codec is used with a value
// that is not a proto.Message.
var ErrNotProtoMessage = errors.New("codec: value is not a proto.Message")

type protoCodec struct{}

func (protoCodec) Name() string { return NameProto }

func (protoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotProtoMessage, v)
	}
	return proto.Marshal(m)
}

// Unmarshal accepts either a proto.Message or a pointer to a message
// pointer (the shape produced by decoding into a *Msg typed value). In the
// latter case a fresh message is allocated.
func (protoCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Pointer {
		return fmt.Errorf("%w: %T", ErrNotProtoMessage, v)
	}
	msg := reflect.New(rv.Elem().Type().Elem())
	m, ok := msg.Interface().(proto.Message)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotProtoMessage, v)
	}
	if err := proto.Unmarshal(data, m); err != nil {
		return err
	}
	rv.Elem().Set(msg)
	return nil
}
