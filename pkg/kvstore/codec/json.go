package codec

import jsoniter "github.com/json-iterator/go"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonCodec struct{}

func (jsonCodec) Name() string { return NameJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return jsonAPI.Unmarshal(data, v)
}
