package state

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// Reaction is an ephemeral on-screen marker. The id and horizontal position
// are generated locally, never taken from the server, so two identical
// emoji arriving back to back stay independent entries.
type Reaction struct {
	ID       string  `json:"id"`
	UserID   int64   `json:"user_id"`
	Emoji    string  `json:"emoji"`
	Position float64 `json:"position"`
}

// Reactions is the queue of currently visible reactions.
type Reactions struct {
	mu    sync.RWMutex
	queue []Reaction
}

func NewReactions() *Reactions {
	return &Reactions{}
}

// Add appends a reaction with a fresh id and random placement and returns
// it so the caller can schedule expiry for that id.
func (r *Reactions) Add(userID int64, emoji string) Reaction {
	re := Reaction{
		ID:       uuid.NewString(),
		UserID:   userID,
		Emoji:    emoji,
		Position: rand.Float64(),
	}
	r.mu.Lock()
	r.queue = append(r.queue, re)
	r.mu.Unlock()
	return re
}

// Expire removes exactly the reaction with the matching id. Other entries,
// including ones with the same emoji, are untouched.
func (r *Reactions) Expire(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.queue[:0]
	for _, re := range r.queue {
		if re.ID != id {
			kept = append(kept, re)
		}
	}
	r.queue = kept
}

func (r *Reactions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queue)
}

func (r *Reactions) Snapshot() []Reaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Reaction(nil), r.queue...)
}
