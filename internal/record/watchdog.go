package record

import (
	"sync"
	"time"
)

// Watchdog is a restartable countdown. Once armed it calls fire after the
// configured duration unless it is reset or cancelled first. It fires at
// most once per arm.
type Watchdog struct {
	d    time.Duration
	fire func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	armed bool
}

// NewWatchdog creates a disarmed watchdog.
func NewWatchdog(d time.Duration, fire func()) *Watchdog {
	return &Watchdog{d: d, fire: fire}
}

// Duration returns the configured countdown.
func (w *Watchdog) Duration() time.Duration { return w.d }

// Arm starts the countdown from the full duration, replacing any pending one.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.armed = true
	w.timer = time.AfterFunc(w.d, func() { w.expire(gen) })
}

// Reset restarts the countdown. Resetting a disarmed watchdog arms it.
func (w *Watchdog) Reset() { w.Arm() }

// Cancel stops the countdown without firing.
func (w *Watchdog) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
	w.armed = false
}

// Armed reports whether a countdown is pending.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

func (w *Watchdog) expire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || !w.armed {
		w.mu.Unlock()
		return
	}
	w.armed = false
	w.timer = nil
	w.mu.Unlock()
	w.fire()
}
