package generation

import (
	"context"
	"sync"
)

// Snapshot is a read-only projection of a Tracker.
type Snapshot struct {
	State    State
	Response string
	Progress float64
	Err      string
}

// Tracker holds the authoritative state of one session together with the
// values exposed to a UI: the throttled response text and model loading
// progress. Each Session owns exactly one Tracker.
type Tracker struct {
	mu       sync.Mutex
	id       string
	state    State
	response string
	progress float64
	err      string
	changed  chan struct{}
	// cancel aborts the running generation; set by the session while it runs.
	cancel    context.CancelFunc
	publisher EventPublisher
}

// NewTracker returns a Tracker in StateIdle.
func NewTracker(id string, pub EventPublisher) *Tracker {
	if pub == nil {
		pub = NoopPublisher{}
	}
	return &Tracker{id: id, state: StateIdle, changed: make(chan struct{}), publisher: pub}
}

// Snapshot returns the current values.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{State: t.state, Response: t.response, Progress: t.progress, Err: t.err}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Watch returns the current snapshot and a channel closed on the next change.
func (t *Tracker) Watch() (Snapshot, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(), t.changed
}

// Interrupt requests interruption. It transitions to StateInterrupted and
// aborts the running generation unless the session is already terminal, and
// reports whether this call performed the transition.
func (t *Tracker) Interrupt() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return false
	}
	t.transitionLocked(StateInterrupted)
	if t.cancel != nil {
		t.cancel()
	}
	return true
}

// bind installs the cancel func of the running generation. If an interrupt
// already happened, cancel fires immediately.
func (t *Tracker) bind(cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel = cancel
	if t.state == StateInterrupted {
		cancel()
	}
}

// set moves to a non-terminal state. Ignored once terminal.
func (t *Tracker) set(s State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() || t.state == s {
		return false
	}
	t.transitionLocked(s)
	return true
}

// markGenerating enters StateGenerating on the first content-bearing update.
func (t *Tracker) markGenerating() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() || t.state == StateGenerating {
		return
	}
	t.transitionLocked(StateGenerating)
}

// accepting reports whether provider output may still be written.
func (t *Tracker) accepting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.state.Terminal()
}

func (t *Tracker) setProgress(pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() || pct == t.progress {
		return
	}
	t.progress = pct
	t.notifyLocked()
}

// setResponse publishes response text. Only the throttle writes here; writes
// after a terminal state are dropped.
func (t *Tracker) setResponse(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() || text == t.response {
		return
	}
	t.response = text
	t.notifyLocked()
}

// complete enters StateCompleted unless the session was interrupted.
func (t *Tracker) complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return false
	}
	t.transitionLocked(StateCompleted)
	return true
}

// fail enters StateFailed unless already terminal.
func (t *Tracker) fail(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return false
	}
	if err != nil {
		t.err = err.Error()
	}
	t.transitionLocked(StateFailed)
	return true
}

func (t *Tracker) transitionLocked(s State) {
	from := t.state
	t.state = s
	t.publisher.Publish(Event{Name: "state", SessionID: t.id, Fields: map[string]any{"from": from, "to": s}})
	t.notifyLocked()
}

func (t *Tracker) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}
