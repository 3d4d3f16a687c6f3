package wire

import (
	"fmt"
	"time"
)

// Probe is the heartbeat payload. The server echoes it unchanged to the
// client's probe reply destination.
//
// CBOR encoding:
//
//	{
//	  1: seq,      // uint32
//	  2: sentAt    // int64, unix nanoseconds
//	}
type Probe struct {
	Seq    uint32 `cbor:"1,keyasint"`
	SentAt int64  `cbor:"2,keyasint"`
}

// NewProbe creates a probe stamped with the current time.
func NewProbe(seq uint32) Probe {
	return Probe{Seq: seq, SentAt: time.Now().UnixNano()}
}

// Age returns the time elapsed since the probe was stamped.
func (p Probe) Age() time.Duration {
	return time.Since(time.Unix(0, p.SentAt))
}

// EncodeProbe encodes a probe to CBOR bytes.
func EncodeProbe(p Probe) ([]byte, error) {
	return Marshal(p)
}

// DecodeProbe decodes CBOR bytes into a probe.
func DecodeProbe(data []byte) (Probe, error) {
	var p Probe
	if err := Unmarshal(data, &p); err != nil {
		return Probe{}, fmt.Errorf("failed to decode probe: %w", err)
	}
	return p, nil
}
