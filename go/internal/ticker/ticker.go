// Package ticker provides a cancellable fixed-interval callback driven by a clockwork.Clock.
package ticker

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Ticker fires a callback every interval until Stop is called.
type Ticker struct {
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// Start schedules fn every interval on its own goroutine. The first call happens one
// interval after Start. fn is never invoked concurrently with itself.
func Start(clock clockwork.Clock, interval time.Duration, fn func()) *Ticker {
	t := &Ticker{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	ct := clock.NewTicker(interval)

	go func() {
		defer close(t.doneCh)
		defer ct.Stop()
		for {
			select {
			case <-t.stopCh:
				return
			case <-ct.Chan():
				// a tick and a stop may be ready together; stop wins
				select {
				case <-t.stopCh:
					return
				default:
				}
				fn()
			}
		}
	}()

	return t
}

// Stop cancels the ticker. It is safe to call multiple times and from inside fn.
// A callback already in progress runs to completion.
func (t *Ticker) Stop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}

// Done is closed once the ticker goroutine has exited.
func (t *Ticker) Done() <-chan struct{} {
	return t.doneCh
}
