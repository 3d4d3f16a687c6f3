package subscription

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Kind is a payload type tag. It decodes the raw payload of a frame into the
// value handed to a Handler.
type Kind struct {
	name   string
	decode func([]byte) (any, error)
}

// RawKind passes payloads through as []byte.
var RawKind = Kind{
	name:   "raw",
	decode: func(b []byte) (any, error) { return b, nil },
}

// JSONKind decodes JSON payloads into T.
func JSONKind[T any]() Kind {
	return Kind{
		name: "json:" + typeName[T](),
		decode: func(b []byte) (any, error) {
			var v T
			if err := json.Unmarshal(b, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// CBORKind decodes CBOR payloads into T.
func CBORKind[T any]() Kind {
	return Kind{
		name: "cbor:" + typeName[T](),
		decode: func(b []byte) (any, error) {
			var v T
			if err := cbor.Unmarshal(b, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// Name returns a descriptive name such as "json:chat.Message".
func (k Kind) Name() string {
	if k.name == "" {
		return RawKind.name
	}
	return k.name
}

// Decode converts a payload. The zero Kind behaves like RawKind.
func (k Kind) Decode(payload []byte) (any, error) {
	if k.decode == nil {
		return payload, nil
	}
	v, err := k.decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %v", ErrDecode, k.Name(), err)
	}
	return v, nil
}

func (k Kind) String() string {
	return k.Name()
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
