package registry

import (
	"sync"
	"time"
)

// GraceTimer fires a callback after the offline grace window unless stopped.
// It is safe for concurrent use.
type GraceTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewGraceTimer creates and starts a timer that calls onExpire after grace.
// onExpire is called in a separate goroutine.
//
// Precondition: grace > 0; onExpire must not be nil.
// Postcondition: onExpire will be called unless Stop is called first.
func NewGraceTimer(grace time.Duration, onExpire func()) *GraceTimer {
	gt := &GraceTimer{}
	gt.timer = time.AfterFunc(grace, func() {
		gt.mu.Lock()
		stopped := gt.stopped
		gt.mu.Unlock()
		if !stopped {
			onExpire()
		}
	})
	return gt
}

// Stop prevents the callback from firing. Safe to call multiple times.
//
// Postcondition: onExpire will not start after Stop returns.
func (gt *GraceTimer) Stop() {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	gt.stopped = true
	gt.timer.Stop()
}

// Stopped reports whether Stop has been called.
func (gt *GraceTimer) Stopped() bool {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	return gt.stopped
}
