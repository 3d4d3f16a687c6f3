package subscription

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry errors.
var (
	ErrDecode = errors.New("subscription: payload decode failed")
)

// Message is a decoded inbound message.
type Message struct {
	Destination string

	// Payload is the raw frame body.
	Payload []byte

	// Value is the payload decoded by the entry's Kind.
	Value any

	Headers    map[string]string
	ReceivedAt time.Time
}

// Handler consumes messages for one destination.
type Handler func(Message)

// Entry is one registered subscription.
type Entry struct {
	Destination string
	Kind        Kind
	Handler     Handler
}

// Deliver decodes payload with the entry's Kind and invokes the handler.
func (e Entry) Deliver(payload []byte, headers map[string]string) error {
	v, err := e.Kind.Decode(payload)
	if err != nil {
		return err
	}
	e.Handler(Message{
		Destination: e.Destination,
		Payload:     payload,
		Value:       v,
		Headers:     headers,
		ReceivedAt:  time.Now(),
	})
	return nil
}

// Binder establishes one entry on a live connection.
type Binder func(Entry) error

// ReplayResult summarizes a ReplayAll pass.
type ReplayResult struct {
	Total     int
	Succeeded int
	Failed    []string
}

// Registry maps destinations to entries. It is safe for concurrent use,
// including registration while a replay is iterating.
type Registry struct {
	entries sync.Map // string -> Entry
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger discards output.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{logger: logger}
}

// Register records intent for destination, replacing any existing handler.
// It reports whether an entry was replaced.
func (r *Registry) Register(destination string, kind Kind, handler Handler) bool {
	_, replaced := r.entries.Swap(destination, Entry{
		Destination: destination,
		Kind:        kind,
		Handler:     handler,
	})
	return replaced
}

// Unregister removes destination. It reports whether an entry existed.
func (r *Registry) Unregister(destination string) bool {
	_, ok := r.entries.LoadAndDelete(destination)
	return ok
}

// Lookup returns the entry for destination.
func (r *Registry) Lookup(destination string) (Entry, bool) {
	v, ok := r.entries.Load(destination)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Contains reports whether destination is registered.
func (r *Registry) Contains(destination string) bool {
	_, ok := r.entries.Load(destination)
	return ok
}

// Snapshot returns all entries ordered by destination.
func (r *Registry) Snapshot() []Entry {
	var out []Entry
	r.entries.Range(func(_, v any) bool {
		out = append(out, v.(Entry))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Destination < out[j].Destination
	})
	return out
}

// Destinations returns the registered destinations in order.
func (r *Registry) Destinations() []string {
	entries := r.Snapshot()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Destination
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	n := 0
	r.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Clear removes every entry and returns how many were removed.
func (r *Registry) Clear() int {
	n := 0
	r.entries.Range(func(k, _ any) bool {
		if _, ok := r.entries.LoadAndDelete(k); ok {
			n++
		}
		return true
	})
	return n
}

// ReplayAll binds every entry of a snapshot. Failures are logged and
// skipped; the remaining entries are still attempted. Entries registered
// after the snapshot was taken are left to the caller, which binds them on
// the live connection directly.
func (r *Registry) ReplayAll(bind Binder) ReplayResult {
	entries := r.Snapshot()
	result := ReplayResult{Total: len(entries)}

	for _, e := range entries {
		// Unregistered since the snapshot.
		if !r.Contains(e.Destination) {
			result.Total--
			continue
		}
		if err := bind(e); err != nil {
			r.logger.Warn("subscription replay failed",
				"destination", e.Destination,
				"error", err)
			result.Failed = append(result.Failed, e.Destination)
			continue
		}
		result.Succeeded++
	}

	if len(result.Failed) > 0 {
		r.logger.Info("subscription replay finished with failures",
			"total", result.Total,
			"succeeded", result.Succeeded,
			"failed", len(result.Failed))
	} else {
		r.logger.Debug("subscription replay finished", "total", result.Total)
	}
	return result
}
