package log

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestEncodeDecodeTrace(t *testing.T) {
	for i, want := range sessionTrace() {
		data, err := EncodeEvent(want)
		if err != nil {
			t.Fatalf("event %d: EncodeEvent failed: %v", i, err)
		}
		got, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("event %d: DecodeEvent failed: %v", i, err)
		}
		if !got.Timestamp.Equal(want.Timestamp) {
			t.Errorf("event %d: timestamp %v, want %v", i, got.Timestamp, want.Timestamp)
		}
		got.Timestamp = want.Timestamp
		if !reflect.DeepEqual(got, want) {
			t.Errorf("event %d:\n got %+v\nwant %+v", i, got, want)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	event := sessionTrace()[3]
	first, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	for range 10 {
		again, err := EncodeEvent(event)
		if err != nil {
			t.Fatalf("EncodeEvent failed: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encodings differ:\n%x\n%x", first, again)
		}
	}
}

func TestEncodeUsesIntegerKeys(t *testing.T) {
	event := sessionTrace()[9]
	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	var raw map[uint64]any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		t.Fatalf("event is not a map with integer keys: %v", err)
	}
	if raw[2] != "c-2" {
		t.Errorf("key 2 = %v, want the connection id", raw[2])
	}
	if raw[8] != uint64(3) {
		t.Errorf("key 8 = %v (%T), want epoch 3", raw[8], raw[8])
	}
	if _, ok := raw[1]; !ok {
		t.Error("timestamp key 1 missing")
	}
	if _, ok := raw[10]; ok {
		t.Error("empty message payload was encoded")
	}
}

func TestEncodeOmitsZeroEpoch(t *testing.T) {
	event := sessionTrace()[0]
	event.Epoch = 0
	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	var raw map[uint64]any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := raw[8]; ok {
		t.Error("zero epoch was encoded")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Garbage", []byte{0xff, 0x00, 0x13}},
		{"NotAMap", []byte{0x83, 0x01, 0x02, 0x03}},
		// {2: "a", 2: "b"}
		{"DuplicateKey", []byte{0xa2, 0x02, 0x61, 'a', 0x02, 0x61, 'b'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeEvent(tt.data); err == nil {
				t.Errorf("DecodeEvent(%x) succeeded", tt.data)
			}
		})
	}
}
