package local

import (
	"context"
	"time"
)

// admission bounds a device to one loaded engine with a queue of waiters.
type admission struct {
	device  string
	queueCh chan struct{}
	genCh   chan struct{}
	maxWait time.Duration
}

func newAdmission(device string, maxQueueDepth int, maxWait time.Duration) *admission {
	if maxQueueDepth <= 0 {
		maxQueueDepth = 4
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &admission{
		device:  device,
		queueCh: make(chan struct{}, maxQueueDepth),
		genCh:   make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// acquire reserves a queue slot and then the single in-flight slot.
// Returns a release func to be called exactly once.
func (a *admission) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(a.maxWait)
	defer timer.Stop()
	select {
	case a.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{device: a.device}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-a.queueCh
		}
	}()
	timer2 := time.NewTimer(a.maxWait)
	defer timer2.Stop()
	select {
	case a.genCh <- struct{}{}:
		acquired = true
		return func() { <-a.genCh; <-a.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, tooBusyError{device: a.device}
	}
}

// inflight reports whether an engine currently holds the device.
func (a *admission) inflight() int { return len(a.genCh) }

// queued reports callers holding or waiting for the device.
func (a *admission) queued() int { return len(a.queueCh) }
