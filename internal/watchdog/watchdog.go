// Package watchdog implements the samplerate-dependent software timer
// that stops acquisition when no DRDY event arrives within its deadline
// (spec §7, Testable property "Watchdog").
package watchdog

import (
	"sync"
	"time"
)

// DeadlineFor returns wd_max_counter for a given samplerate in samples
// per second, per spec §7: 1s at >=10 SPS, 2s at exactly 5 SPS, 3s at
// exactly 2.5 SPS. Rates below 2.5 SPS use the same conservative 3s
// ceiling — the original firmware's enumerated samplerate set has no
// slower option, so this is the widest deadline actually reachable.
func DeadlineFor(sps float64) time.Duration {
	switch {
	case sps >= 10:
		return 1 * time.Second
	case sps >= 5:
		return 2 * time.Second
	default:
		return 3 * time.Second
	}
}

// Watchdog arms a timer on Start and must be Reset on every DRDY event.
// If it is not reset before the deadline elapses, onExpire fires exactly
// once (until re-armed by the next Start).
type Watchdog struct {
	mu       sync.Mutex
	timer    *time.Timer
	deadline time.Duration
	onExpire func()
}

// New returns a disarmed Watchdog that calls onExpire on timeout.
func New(onExpire func()) *Watchdog {
	return &Watchdog{onExpire: onExpire}
}

// Start arms the watchdog with the deadline implied by sps.
func (w *Watchdog) Start(sps float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deadline = DeadlineFor(sps)
	w.armLocked()
}

// StartWithDeadline arms the watchdog directly with an explicit deadline,
// bypassing the samplerate lookup — used by tests that need short
// deadlines.
func (w *Watchdog) StartWithDeadline(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deadline = d
	w.armLocked()
}

func (w *Watchdog) armLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.deadline, w.onExpire)
}

// Reset re-arms the deadline, called on every DRDY event while RUNNING.
// A Reset before Start/after Stop is a no-op.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.armLocked()
	}
}

// Stop disarms the watchdog; onExpire will not fire again until the next
// Start.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
