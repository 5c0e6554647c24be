package state

import "sync"

// Typing tracks who is currently typing in an open chat room. Each username
// is held until its own expiry fires; a repeated typing event for a present
// user does not duplicate the entry.
type Typing struct {
	mu    sync.RWMutex
	users []string
}

func NewTyping() *Typing {
	return &Typing{}
}

// Add inserts username and reports whether it was newly added. The caller
// schedules expiry only for new entries.
func (t *Typing) Add(username string) bool {
	if username == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, u := range t.users {
		if u == username {
			return false
		}
	}
	t.users = append(t.users, username)
	return true
}

// Remove drops username; absent is a no-op.
func (t *Typing) Remove(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.users[:0]
	for _, u := range t.users {
		if u != username {
			kept = append(kept, u)
		}
	}
	t.users = kept
}

func (t *Typing) Snapshot() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.users...)
}
