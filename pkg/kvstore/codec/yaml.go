package codec

import "gopkg.in/yaml.v3"

type yamlCodec struct{}

func (yamlCodec) Name() string { return NameYAML }

func (yamlCodec) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (yamlCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}
