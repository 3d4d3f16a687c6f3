package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher runs message handlers off the transport goroutine. Work is
// sharded by key: jobs with the same key run in submission order on the
// same worker, jobs with different keys may run in parallel. Each shard has
// a bounded queue; Dispatch blocks while the shard's queue is full.
type Dispatcher struct {
	logger *slog.Logger
	shards []chan func()
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher with the given number of shards, each
// buffering up to queue jobs.
func NewDispatcher(shards, queue int, logger *slog.Logger) *Dispatcher {
	if shards <= 0 {
		shards = DefaultDispatchShards
	}
	if queue <= 0 {
		queue = DefaultDispatchQueue
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &Dispatcher{
		logger: logger,
		shards: make([]chan func(), shards),
	}
	for i := range d.shards {
		ch := make(chan func(), queue)
		d.shards[i] = ch
		d.wg.Add(1)
		go d.work(i, ch)
	}
	return d
}

// Shards returns the number of workers.
func (d *Dispatcher) Shards() int {
	return len(d.shards)
}

// ShardFor returns the shard index used for key.
func (d *Dispatcher) ShardFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(d.shards)))
}

// Dispatch queues fn on the shard for key.
func (d *Dispatcher) Dispatch(key string, fn func()) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.shards[d.ShardFor(key)] <- fn
	return nil
}

// Close stops accepting work, runs what is queued and waits for the
// workers to exit. It must not be called from a dispatched job.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work(shard int, jobs <-chan func()) {
	defer d.wg.Done()
	for fn := range jobs {
		d.run(shard, fn)
	}
}

// run executes one job. A panicking handler is logged and does not take
// the worker down.
func (d *Dispatcher) run(shard int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("message handler panicked",
				slog.Int("shard", shard),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
