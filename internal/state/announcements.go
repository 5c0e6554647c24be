package state

import (
	"sync"

	"github.com/edulane/liveclass/internal/protocol"
)

// Announcements collects live-session announcements across the user's
// courses: upcoming/started sessions (deduped by session_id, newest first)
// and the latest reminder banner.
type Announcements struct {
	mu       sync.RWMutex
	sessions []protocol.CourseEvent
	reminder *protocol.CourseEvent
}

func NewAnnouncements() *Announcements {
	return &Announcements{}
}

// OnLive prepends a live_created/live_started event. A repeated event for a
// session already listed is a no-op.
func (a *Announcements) OnLive(ev protocol.CourseEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.sessions {
		if s.SessionID == ev.SessionID {
			return
		}
	}
	a.sessions = append([]protocol.CourseEvent{ev}, a.sessions...)
}

// OnCancelled removes the announcement for a session; absent is a no-op.
func (a *Announcements) OnCancelled(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.sessions[:0]
	for _, s := range a.sessions {
		if s.SessionID != sessionID {
			kept = append(kept, s)
		}
	}
	a.sessions = kept
}

// OnReminder replaces the reminder banner.
func (a *Announcements) OnReminder(ev protocol.CourseEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reminder = &ev
}

// ClearReminder dismisses the banner.
func (a *Announcements) ClearReminder() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reminder = nil
}

func (a *Announcements) Reminder() *protocol.CourseEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.reminder == nil {
		return nil
	}
	ev := *a.reminder
	return &ev
}

func (a *Announcements) Snapshot() []protocol.CourseEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]protocol.CourseEvent(nil), a.sessions...)
}
