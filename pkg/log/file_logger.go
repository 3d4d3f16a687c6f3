package log

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/lanlobby/lobby-go/pkg/connection"
)

// FileOption configures a FileLogger.
type FileOption func(*FileLogger)

// WithRollPerConnection starts a new file whenever the session publishes a
// further connection. Every rolled file begins with the transition to
// CONNECTED; the first file also holds what led up to the first one.
func WithRollPerConnection() FileOption {
	return func(l *FileLogger) { l.perConnection = true }
}

// WithMaxSize starts a new file once the current one holds at least n bytes.
func WithMaxSize(n int64) FileOption {
	return func(l *FileLogger) { l.maxSize = n }
}

// WithErrorLog reports write and roll failures to logger.
func WithErrorLog(logger *slog.Logger) FileOption {
	return func(l *FileLogger) {
		if logger != nil {
			l.errLog = logger
		}
	}
}

// FileLogger appends session events to .llog files.
//
// The first file is the path given to NewFileLogger. Rolled files are named
// after it with a sequence number before the extension (session.1.llog,
// session.2.llog, ...), skipping names that already exist.
type FileLogger struct {
	base          string
	perConnection bool
	maxSize       int64
	errLog        *slog.Logger

	mu       sync.Mutex
	file     *os.File
	out      *countingWriter
	enc      *cbor.Encoder
	paths    []string
	written  int    // events in the current file
	hasConn  bool   // the current file saw a connection published
	epoch    uint64 // epoch of that connection
	failures int
	firstErr error
	closed   bool
}

// NewFileLogger opens path for appending, creating it if needed.
func NewFileLogger(path string, opts ...FileOption) (*FileLogger, error) {
	l := &FileLogger{
		base:   path,
		errLog: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.openLocked(path); err != nil {
		return nil, err
	}
	return l, nil
}

// Log writes event. Write failures never reach the caller; they are counted
// and reported through the error log.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	published := event.IsTransition("", connection.StateConnected.String())
	if l.written > 0 && l.needsRollLocked(event, published) {
		if err := l.rollLocked(); err != nil {
			l.failLocked("roll", err)
		}
	}

	if err := l.enc.Encode(event); err != nil {
		l.failLocked("encode", err)
		return
	}
	l.written++
	if published {
		l.hasConn = true
		l.epoch = event.Epoch
	}
}

func (l *FileLogger) needsRollLocked(event Event, published bool) bool {
	if l.perConnection && published && l.hasConn && event.Epoch != l.epoch {
		return true
	}
	return l.maxSize > 0 && l.out.n >= l.maxSize
}

func (l *FileLogger) rollLocked() error {
	next, err := l.nextPathLocked()
	if err != nil {
		return err
	}
	if err := l.file.Close(); err != nil {
		l.failLocked("close", err)
	}
	return l.openLocked(next)
}

func (l *FileLogger) nextPathLocked() (string, error) {
	ext := filepath.Ext(l.base)
	stem := strings.TrimSuffix(l.base, ext)
	for i := len(l.paths); i < len(l.paths)+1000; i++ {
		p := fmt.Sprintf("%s.%d%s", stem, i, ext)
		_, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free log file name after %s", l.paths[len(l.paths)-1])
}

func (l *FileLogger) openLocked(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	l.file = f
	l.out = &countingWriter{w: f, n: info.Size()}
	l.enc = eventEnc.NewEncoder(l.out)
	l.paths = append(l.paths, path)
	l.written = 0
	l.hasConn = false
	return nil
}

func (l *FileLogger) failLocked(op string, err error) {
	l.failures++
	if l.firstErr == nil {
		l.firstErr = fmt.Errorf("%s %s: %w", op, l.paths[len(l.paths)-1], err)
	}
	// First failure, then every hundredth.
	if l.failures == 1 || l.failures%100 == 0 {
		l.errLog.Warn("session log write failed",
			slog.String("op", op),
			slog.String("path", l.paths[len(l.paths)-1]),
			slog.Int("failures", l.failures),
			slog.Any("error", err))
	}
}

// Files returns every file written so far, oldest first.
func (l *FileLogger) Files() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

// Failures returns how many writes and rolls failed and the first error.
func (l *FileLogger) Failures() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures, l.firstErr
}

// Close closes the current file. Later Log calls are ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
