package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects session events. Zero fields match every event.
type Filter struct {
	ConnectionID string

	// Epoch keeps one connection generation.
	Epoch *uint64

	Direction *Direction
	Layer     *Layer
	Category  *Category

	// Entity keeps state changes of one entity.
	Entity *StateEntity

	// From and To keep connection transitions leaving or entering the
	// named states (DISCONNECTED, CONNECTING, ...). Setting either drops
	// every other event.
	From string
	To   string

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	Server string

	// Destination is a path.Match pattern on message destinations, for
	// example "/topic/room.*".
	Destination string
}

// Validate reports a malformed Destination pattern.
func (f Filter) Validate() error {
	if f.Destination == "" {
		return nil
	}
	if _, err := path.Match(f.Destination, ""); err != nil {
		return fmt.Errorf("destination pattern %q: %w", f.Destination, err)
	}
	return nil
}

// Match reports whether event passes every criterion.
func (f Filter) Match(event Event) bool {
	switch {
	case f.ConnectionID != "" && event.ConnectionID != f.ConnectionID,
		f.Epoch != nil && event.Epoch != *f.Epoch,
		f.Direction != nil && event.Direction != *f.Direction,
		f.Layer != nil && event.Layer != *f.Layer,
		f.Category != nil && event.Category != *f.Category,
		f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd),
		f.Server != "" && event.Server != f.Server:
		return false
	}
	if f.Entity != nil && (event.StateChange == nil || event.StateChange.Entity != *f.Entity) {
		return false
	}
	if (f.From != "" || f.To != "") && !event.IsTransition(f.From, f.To) {
		return false
	}
	if f.Destination != "" {
		if event.Message == nil {
			return false
		}
		ok, err := path.Match(f.Destination, event.Message.Destination)
		return ok && err == nil
	}
	return true
}

// Segment is a run of consecutive events from one connection epoch: one
// connect attempt and, if it succeeded, the connection's whole life.
type Segment struct {
	Epoch        uint64
	ConnectionID string
	Events       []Event
}

// Start returns the time of the first event.
func (s Segment) Start() time.Time {
	if len(s.Events) == 0 {
		return time.Time{}
	}
	return s.Events[0].Timestamp
}

// End returns the time of the last event.
func (s Segment) End() time.Time {
	if len(s.Events) == 0 {
		return time.Time{}
	}
	return s.Events[len(s.Events)-1].Timestamp
}

// FinalState returns the state the last connection transition in the
// segment entered, or "" if there is none.
func (s Segment) FinalState() string {
	for i := len(s.Events) - 1; i >= 0; i-- {
		if e := s.Events[i]; e.IsTransition("", "") {
			return e.StateChange.NewState
		}
	}
	return ""
}

// Reader streams events from one or more session log files.
type Reader struct {
	files   []*os.File
	dec     *cbor.Decoder
	filter  Filter
	pending *Event
	done    bool
}

// NewReader reads every event in path.
func NewReader(path string) (*Reader, error) {
	return Open(Filter{}, path)
}

// NewFilteredReader reads the events in path that match filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	return Open(filter, path)
}

// Open reads paths one after another as a single stream, which is how the
// files of a rolling FileLogger are read back.
func Open(filter Filter, paths ...string) (*Reader, error) {
	if len(paths) == 0 {
		return nil, errors.New("no log files given")
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	files := make([]*os.File, 0, len(paths))
	readers := make([]io.Reader, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			for _, open := range files {
				open.Close()
			}
			return nil, err
		}
		files = append(files, f)
		readers = append(readers, f)
	}

	r := NewStreamReader(io.MultiReader(readers...), filter)
	r.files = files
	return r, nil
}

// NewStreamReader reads events from an arbitrary stream. Close is a no-op
// for stream readers.
func NewStreamReader(src io.Reader, filter Filter) *Reader {
	return &Reader{
		dec:    eventDec.NewDecoder(src),
		filter: filter,
	}
}

// Next returns the next matching event, or io.EOF at the end of the input.
// A log cut off inside an event ends with ErrTruncated.
func (r *Reader) Next() (Event, error) {
	if r.pending != nil {
		e := *r.pending
		r.pending = nil
		return e, nil
	}
	if r.done {
		return Event{}, io.EOF
	}
	for {
		event, err := decodeNext(r.dec)
		if err != nil {
			r.done = true
			return Event{}, err
		}
		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// NextSegment returns the next run of matching events sharing an epoch.
// It returns io.EOF once no events are left. A read error is returned
// together with the events collected before it.
func (r *Reader) NextSegment() (Segment, error) {
	first, err := r.Next()
	if err != nil {
		return Segment{}, err
	}

	seg := Segment{Epoch: first.Epoch, ConnectionID: first.ConnectionID, Events: []Event{first}}
	for {
		e, err := r.Next()
		if err == io.EOF {
			return seg, nil
		}
		if err != nil {
			return seg, err
		}
		if e.Epoch != seg.Epoch {
			r.pending = &e
			return seg, nil
		}
		if seg.ConnectionID == "" {
			seg.ConnectionID = e.ConnectionID
		}
		seg.Events = append(seg.Events, e)
	}
}

// Close closes the files opened by the reader.
func (r *Reader) Close() error {
	var errs []error
	for _, f := range r.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.files = nil
	return errors.Join(errs...)
}
