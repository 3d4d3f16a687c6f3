package heartbeat

import (
	"sync"
	"time"
)

// task is an independently cancellable periodic job.
type task struct {
	stopCh chan struct{}
	once   sync.Once
}

// startTask runs fn every period until cancelled. With runNow set, fn also
// runs once immediately.
func startTask(period time.Duration, runNow bool, fn func()) *task {
	t := &task{stopCh: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		if runNow && !t.stopped() {
			fn()
		}

		for {
			select {
			case <-t.stopCh:
				return
			case <-ticker.C:
				if t.stopped() {
					return
				}
				fn()
			}
		}
	}()

	return t
}

// cancel stops future ticks. It does not wait for a running fn, so it is
// safe to call from inside fn.
func (t *task) cancel() {
	t.once.Do(func() { close(t.stopCh) })
}

func (t *task) stopped() bool {
	select {
	case <-t.stopCh:
		return true
	default:
		return false
	}
}
