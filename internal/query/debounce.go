package query

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period search input must observe before a query fires.
const DefaultDebounce = 800 * time.Millisecond

// Debouncer delays fn until no new value has arrived for the quiet period.
// Only the last value of a burst is delivered.
type Debouncer[T any] struct {
	wait time.Duration
	fn   func(T)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func NewDebouncer[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	if wait <= 0 {
		wait = DefaultDebounce
	}
	return &Debouncer[T]{wait: wait, fn: fn}
}

// Trigger restarts the quiet period with v as the pending value.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		current := gen == d.gen && !d.stopped
		d.mu.Unlock()
		if current {
			d.fn(v)
		}
	})
}

// Stop cancels any pending value. Later Triggers are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
