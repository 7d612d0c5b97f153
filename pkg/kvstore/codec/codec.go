// Package codec provides kvstore.Codec implementations.
//
// JSON is the default codec of the observable store. YAML suits
// hand-edited configuration values and Proto stores protobuf messages in
// their binary wire format.
package codec

import (
	"fmt"
	"strings"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

// Names of the built-in codecs.
const (
	NameJSON  = "json"
	NameYAML  = "yaml"
	NameProto = "proto"
)

var (
	// JSON is the default codec.
	JSON kvstore.Codec = jsonCodec{}

	// YAML encodes values as YAML documents.
	YAML kvstore.Codec = yamlCodec{}

	// Proto encodes proto.Message values.
	Proto kvstore.Codec = protoCodec{}
)

// ByName returns the built-in codec with the given name.
func ByName(name string) (kvstore.Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameJSON:
		return JSON, nil
	case NameYAML, "yml":
		return YAML, nil
	case NameProto, "protobuf":
		return Proto, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
