// Package channel binds one connection supervisor to the reducers for each
// realtime concern: chat unread counts, the notification feed, course
// announcements, open chat rooms and the live session itself.
package channel

import (
	"sync"
	"time"
)

// timerSet holds cancelable expiry timers keyed by id (reaction ids, typing
// usernames). Teardown cancels everything still pending; a timer that fires
// after its id was canceled does nothing.
type timerSet struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

func newTimerSet() *timerSet {
	return &timerSet{pending: make(map[string]*time.Timer)}
}

// schedule arms fn to run after d, keyed by id. Scheduling an id twice
// resets its timer.
func (t *timerSet) schedule(id string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if old, ok := t.pending[id]; ok {
		old.Stop()
	}
	t.pending[id] = time.AfterFunc(d, func() {
		t.mu.Lock()
		_, live := t.pending[id]
		delete(t.pending, id)
		stopped := t.stopped
		t.mu.Unlock()
		if live && !stopped {
			fn()
		}
	})
}

func (t *timerSet) cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.pending[id]; ok {
		timer.Stop()
		delete(t.pending, id)
	}
}

// stop cancels every pending timer and rejects future schedules.
func (t *timerSet) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, timer := range t.pending {
		timer.Stop()
		delete(t.pending, id)
	}
}
