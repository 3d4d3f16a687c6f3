package log

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Session log files are CBOR sequences: encoded events back to back with no
// header or framing, so files can be concatenated and still decode.
var (
	eventEnc cbor.EncMode
	eventDec cbor.DecMode
)

func init() {
	var err error
	eventEnc, err = cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("session log: encoder mode: %v", err))
	}
	eventDec, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		MaxNestedLevels: 8,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("session log: decoder mode: %v", err))
	}
}

// ErrTruncated is returned when a log ends in the middle of an event,
// typically because the writer was killed mid-write.
var ErrTruncated = errors.New("session log truncated")

// EncodeEvent encodes one event.
func EncodeEvent(event Event) ([]byte, error) {
	return eventEnc.Marshal(event)
}

// DecodeEvent decodes one event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := eventDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// countingWriter tracks how many bytes reached the underlying writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// decodeNext reads the next event from a CBOR sequence. A clean end of the
// stream is io.EOF; a partial trailing event is ErrTruncated.
func decodeNext(dec *cbor.Decoder) (Event, error) {
	var event Event
	err := dec.Decode(&event)
	switch {
	case err == nil:
		return event, nil
	case errors.Is(err, io.EOF):
		return Event{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Event{}, ErrTruncated
	default:
		return Event{}, err
	}
}
