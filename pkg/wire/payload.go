package wire

import (
	"encoding/json"
	"fmt"
)

// Codec encodes application payloads before they are sent.
type Codec interface {
	Name() string
	Encode(v any) ([]byte, error)
}

// JSONCodec encodes payloads as JSON.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// CBORCodec encodes payloads with the package's deterministic CBOR mode.
type CBORCodec struct{}

func (CBORCodec) Name() string { return "cbor" }

func (CBORCodec) Encode(v any) ([]byte, error) {
	return Marshal(v)
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown payload codec %q", name)
	}
}

// EncodePayload encodes v with c. Byte slices and strings are passed
// through unchanged.
func EncodePayload(c Codec, v any) ([]byte, error) {
	switch p := v.(type) {
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	}
	if c == nil {
		c = JSONCodec{}
	}
	data, err := c.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", c.Name(), err)
	}
	return data, nil
}
