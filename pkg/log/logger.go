package log

// Logger receives session events. Log is called from session goroutines,
// sometimes with the session's notification queue waiting on it, so
// implementations must be safe for concurrent use and return quickly.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// Tee returns a Logger that hands every event to each of loggers in order.
// Nil and NoopLogger entries are dropped and nested tees are flattened;
// with nothing left Tee returns NoopLogger, with one logger that logger.
func Tee(loggers ...Logger) Logger {
	var out tee
	for _, l := range loggers {
		switch l := l.(type) {
		case nil, NoopLogger:
		case tee:
			out = append(out, l...)
		default:
			out = append(out, l)
		}
	}
	switch len(out) {
	case 0:
		return NoopLogger{}
	case 1:
		return out[0]
	}
	return out
}

type tee []Logger

func (t tee) Log(event Event) {
	for _, l := range t {
		l.Log(event)
	}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
	_ Logger = tee(nil)
)
