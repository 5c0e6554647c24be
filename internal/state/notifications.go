package state

import (
	"sync"

	"github.com/edulane/liveclass/internal/protocol"
)

// Feed mirrors the server-side notification feed: two views over the same
// entries, unread (subset) and recent (newest first, unbounded).
type Feed struct {
	mu     sync.RWMutex
	unread []protocol.NotificationItem
	recent []protocol.NotificationItem
}

func NewFeed() *Feed {
	return &Feed{}
}

// OnInit replaces both views with the server's initial snapshot.
func (f *Feed) OnInit(unread, recent []protocol.NotificationItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread = append([]protocol.NotificationItem(nil), unread...)
	f.recent = append([]protocol.NotificationItem(nil), recent...)
}

// OnNotification prepends a fresh entry to both views.
func (f *Feed) OnNotification(n protocol.NotificationItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread = append([]protocol.NotificationItem{n}, f.unread...)
	f.recent = append([]protocol.NotificationItem{n}, f.recent...)
}

// OnMarked removes id from unread and flags the matching recent entry.
// No matching entry is a no-op.
func (f *Feed) OnMarked(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.unread[:0]
	for _, n := range f.unread {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	f.unread = kept
	for i := range f.recent {
		if f.recent[i].ID == id {
			f.recent[i].IsRead = true
		}
	}
}

// OnMarkedAll empties unread and flags every recent entry read.
func (f *Feed) OnMarkedAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread = nil
	for i := range f.recent {
		f.recent[i].IsRead = true
	}
}

// OnHistory appends an older page to the end of recent.
func (f *Feed) OnHistory(items []protocol.NotificationItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recent = append(f.recent, items...)
}

func (f *Feed) UnreadCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.unread)
}

// Snapshot returns copies of both views.
func (f *Feed) Snapshot() (unread, recent []protocol.NotificationItem) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]protocol.NotificationItem(nil), f.unread...),
		append([]protocol.NotificationItem(nil), f.recent...)
}
