package room

import (
	"sync"
	"time"
)

const persistenceDebounce = 3 * time.Second

// persistenceDebouncer fires at most once per debounce window after the
// last mutation, asking the caller to pull a fresh timeline from whichever
// member is connected when it fires.
type persistenceDebouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	onFire  func()
}

func newPersistenceDebouncer(window time.Duration, onFire func()) *persistenceDebouncer {
	if window <= 0 {
		window = persistenceDebounce
	}
	return &persistenceDebouncer{window: window, onFire: onFire}
}

// touch resets the timer; called on every accepted mutation.
func (d *persistenceDebouncer) touch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.onFire)
}

// cancel stops a pending timer without firing it; called on room teardown.
func (d *persistenceDebouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
