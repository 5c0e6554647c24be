package state

import (
	"sync"

	"github.com/edulane/liveclass/internal/protocol"
)

// Roster is the set of participants present in one live session, ordered by
// join time. user_id is the unique key; field updates for an absent user
// are no-ops (the user already left).
type Roster struct {
	mu      sync.RWMutex
	order   []int64
	entries map[int64]protocol.Participant
}

func NewRoster() *Roster {
	return &Roster{entries: make(map[int64]protocol.Participant)}
}

// Replace installs the full roster from a participants broadcast.
func (r *Roster) Replace(participants []protocol.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = r.order[:0]
	r.entries = make(map[int64]protocol.Participant, len(participants))
	for _, p := range participants {
		if _, ok := r.entries[p.UserID]; ok {
			continue
		}
		r.order = append(r.order, p.UserID)
		r.entries[p.UserID] = p
	}
}

// Join adds a participant. A duplicate join for a present user_id must not
// create a second entry.
func (r *Roster) Join(p protocol.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[p.UserID]; ok {
		return
	}
	r.order = append(r.order, p.UserID)
	r.entries[p.UserID] = p
}

// Leave removes by user_id; absent is a no-op.
func (r *Roster) Leave(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[userID]; !ok {
		return
	}
	delete(r.entries, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Roster) SetMuted(userID int64, muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.entries[userID]; ok {
		p.IsMuted = muted
		r.entries[userID] = p
	}
}

func (r *Roster) SetHandRaised(userID int64, raised bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.entries[userID]; ok {
		p.HandRaised = raised
		r.entries[userID] = p
	}
}

func (r *Roster) SetCameraOn(userID int64, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.entries[userID]; ok {
		p.CameraOn = on
		r.entries[userID] = p
	}
}

// Clear empties the roster. Called when the session socket closes.
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.entries = make(map[int64]protocol.Participant)
}

func (r *Roster) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns participants in join order.
func (r *Roster) Snapshot() []protocol.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}
