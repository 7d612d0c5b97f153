package codec

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

type profile struct {
	Name  string   `json:"name" yaml:"name"`
	Age   int      `json:"age" yaml:"age"`
	Roles []string `json:"roles" yaml:"roles"`
}

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", NameJSON, false},
		{"json", NameJSON, false},
		{"JSON", NameJSON, false},
		{"yaml", NameYAML, false},
		{"yml", NameYAML, false},
		{"proto", NameProto, false},
		{"protobuf", NameProto, false},
		{"gob", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ByName(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ByName(%q) should return error", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("ByName(%q) error = %v", tt.name, err)
			}
			if c.Name() != tt.want {
				t.Errorf("ByName(%q).Name() = %s, want %s", tt.name, c.Name(), tt.want)
			}
		})
	}
}

func TestStructCodecs(t *testing.T) {
	in := profile{Name: "ada", Age: 36, Roles: []string{"admin", "dev"}}

	for _, c := range []kvstore.Codec{JSON, YAML} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := kvstore.Encode(c, "profile", in)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			out, err := kvstore.Decode[profile](c, "profile", data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if out.Name != in.Name || out.Age != in.Age || len(out.Roles) != 2 {
				t.Errorf("Decode() = %+v, want %+v", out, in)
			}
		})
	}
}

func TestJSONDecodeTypeMismatch(t *testing.T) {
	_, err := kvstore.Decode[int](JSON, "int", []byte(`"not a number"`))
	if !errors.Is(err, kvstore.ErrDecode) {
		t.Errorf("Decode() error = %v, want ErrDecode", err)
	}
}

func TestJSONZeroValueIsNotAbsence(t *testing.T) {
	data, err := JSON.Marshal(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("encoded zero value should not be empty")
	}
}

func TestProtoCodec(t *testing.T) {
	in := wrapperspb.String("hello")

	data, err := kvstore.Encode(Proto, "greeting", in)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	out, err := kvstore.Decode[*wrapperspb.StringValue](Proto, "greeting", data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out.GetValue() != "hello" {
		t.Errorf("Decode() = %q, want %q", out.GetValue(), "hello")
	}

	var direct wrapperspb.StringValue
	if err := Proto.Unmarshal(data, &direct); err != nil {
		t.Fatalf("Unmarshal(message) error = %v", err)
	}
	if direct.GetValue() != "hello" {
		t.Errorf("Unmarshal(message) = %q, want %q", direct.GetValue(), "hello")
	}
}

func TestProtoCodecRejectsPlainValues(t *testing.T) {
	if _, err := Proto.Marshal(42); !errors.Is(err, ErrNotProtoMessage) {
		t.Errorf("Marshal(int) error = %v, want ErrNotProtoMessage", err)
	}

	var n int
	if err := Proto.Unmarshal([]byte{}, &n); !errors.Is(err, ErrNotProtoMessage) {
		t.Errorf("Unmarshal(*int) error = %v, want ErrNotProtoMessage", err)
	}

	_, err := kvstore.Encode(Proto, "n", 42)
	if !errors.Is(err, kvstore.ErrEncode) {
		t.Errorf("Encode(int) error = %v, want ErrEncode", err)
	}
}
