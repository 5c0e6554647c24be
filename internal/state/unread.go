// Package state holds the per-channel reducers. Each reducer folds inbound
// events into local state; transitions run synchronously on the owning
// channel's read loop and readers get copies, never shared references.
package state

import "sync"

// Unread tracks unread message counts keyed by room id. Absence of a room
// means read; an entry is only ever created by a message for a room other
// than the active one.
type Unread struct {
	mu     sync.RWMutex
	active string
	counts map[string]int
}

func NewUnread() *Unread {
	return &Unread{counts: make(map[string]int)}
}

// SetActive marks roomID as the open room and clears its count. The open
// room must never show a nonzero count.
func (u *Unread) SetActive(roomID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active = roomID
	delete(u.counts, roomID)
}

// OnNewMessage increments the count for roomID unless it is the active room.
func (u *Unread) OnNewMessage(roomID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if roomID == "" || roomID == u.active {
		return
	}
	u.counts[roomID]++
}

// MarkRead removes the entry for roomID. Idempotent: a room with no entry
// is a no-op.
func (u *Unread) MarkRead(roomID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.counts, roomID)
}

// Count returns the unread count for one room (0 when absent).
func (u *Unread) Count(roomID string) int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.counts[roomID]
}

// Rooms returns the number of rooms with unread messages.
func (u *Unread) Rooms() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.counts)
}

// Snapshot returns a copy of the whole index.
func (u *Unread) Snapshot() map[string]int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make(map[string]int, len(u.counts))
	for k, v := range u.counts {
		out[k] = v
	}
	return out
}
