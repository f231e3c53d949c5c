package generation

import (
	"sync"
	"time"
)

// DefaultThrottleInterval publishes at roughly 12 Hz.
const DefaultThrottleInterval = time.Second / 12

// Throttle republishes a high-frequency stream of cumulative text at a bounded
// rate. Values arriving between publishes overwrite each other; only the
// latest is published when the interval elapses. Flush publishes the final
// value unconditionally and closes the throttle.
type Throttle struct {
	interval time.Duration
	publish  func(string)

	mu         sync.Mutex
	lastPub    time.Time
	pending    string
	hasPending bool
	timer      *time.Timer
	last       string
	closed     bool
}

// NewThrottle returns a Throttle publishing to publish at most once per interval.
func NewThrottle(interval time.Duration, publish func(string)) *Throttle {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Throttle{interval: interval, publish: publish}
}

// Emit offers a new value.
func (th *Throttle) Emit(text string) {
	th.mu.Lock()
	defer th.mu.Unlock()
	if th.closed {
		return
	}
	th.last = text
	elapsed := time.Since(th.lastPub)
	if th.timer == nil && (th.lastPub.IsZero() || elapsed >= th.interval) {
		th.publishLocked(text)
		return
	}
	th.pending = text
	th.hasPending = true
	if th.timer == nil {
		th.timer = time.AfterFunc(th.interval-elapsed, th.fire)
	}
}

func (th *Throttle) fire() {
	th.mu.Lock()
	defer th.mu.Unlock()
	th.timer = nil
	if th.closed || !th.hasPending {
		return
	}
	th.publishLocked(th.pending)
}

// publishLocked runs the sink under th.mu so publishes never reorder.
func (th *Throttle) publishLocked(text string) {
	th.hasPending = false
	th.pending = ""
	th.lastPub = time.Now()
	th.publish(text)
}

// Flush publishes final, bypassing the rate limit, and stops the throttle.
// Later Emit and Flush calls are ignored.
func (th *Throttle) Flush(final string) {
	th.mu.Lock()
	defer th.mu.Unlock()
	if th.closed {
		return
	}
	th.closed = true
	if th.timer != nil {
		th.timer.Stop()
		th.timer = nil
	}
	th.last = final
	th.publishLocked(final)
}

// Last returns the most recent value passed to Emit or Flush.
func (th *Throttle) Last() string {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.last
}
