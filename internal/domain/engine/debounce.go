package engine

import (
	"sync"
	"time"

	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

// updateDebouncer collapses rapid player state events into a single
// display update. Media players fire several state_changed events per
// track switch; only the last snapshot within the window matters.
type updateDebouncer struct {
	window time.Duration
	apply  func(media.Snapshot)

	mu      sync.Mutex
	pending *media.Snapshot
	timer   *time.Timer
	stopped bool
}

func newUpdateDebouncer(window time.Duration, apply func(media.Snapshot)) *updateDebouncer {
	return &updateDebouncer{
		window: window,
		apply:  apply,
	}
}

// Trigger records a snapshot. The apply callback fires once the window
// elapses without further triggers, with the latest snapshot.
func (d *updateDebouncer) Trigger(snap media.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending = &snap

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires the callback for the pending snapshot and resets it.
func (d *updateDebouncer) flush() {
	d.mu.Lock()
	snap := d.pending
	d.pending = nil
	d.mu.Unlock()

	if snap != nil && d.apply != nil {
		d.apply(*snap)
	}
}

// Stop prevents any further callbacks from firing.
func (d *updateDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
}
