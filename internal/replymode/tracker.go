// Package replymode tracks which counterpart, if any, a principal is
// currently composing a reply to. The state is transient: a restart
// resets every principal to idle, and in-flight reply intents are lost.
// That is an accepted limitation, not something to paper over.
package replymode

import "sync"

// Tracker maps principal ID -> reply target ID. Same-key races are
// last-write-wins; independent keys never conflict.
type Tracker struct {
	mu      sync.RWMutex
	targets map[int64]int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		targets: make(map[int64]int64),
	}
}

// SetAwaiting puts principal into reply mode targeting target,
// overwriting any prior target. Reply intents do not stack.
func (t *Tracker) SetAwaiting(principal, target int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets[principal] = target
}

// Target returns the current reply target for principal, if any.
func (t *Tracker) Target(principal int64) (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	target, ok := t.targets[principal]
	return target, ok
}

// Clear returns principal to idle.
func (t *Tracker) Clear(principal int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.targets, principal)
}
