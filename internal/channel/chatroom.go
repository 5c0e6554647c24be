package channel

import (
	"fmt"
	"sync"
	"time"

	"github.com/edulane/liveclass/internal/auth"
	"github.com/edulane/liveclass/internal/protocol"
	"github.com/edulane/liveclass/internal/state"
	"github.com/edulane/liveclass/internal/ws"
)

// TypingTTL is how long a typing indicator stays visible after the last
// typing event for that user.
const TypingTTL = 2 * time.Second

// ChatRoom is the channel for one open chat room: message history since
// open, who is online and who is typing. A room change tears the old
// instance down and creates a new one.
type ChatRoom struct {
	RoomID string
	sup    *ws.Supervisor
	timers *timerSet

	Typing *state.Typing

	mu       sync.RWMutex
	messages []protocol.ChatMessage
	online   []string
}

func NewChatRoom(baseURL, roomID string, token auth.TokenSource, tn ws.Tuning) *ChatRoom {
	r := &ChatRoom{
		RoomID: roomID,
		timers: newTimerSet(),
		Typing: state.NewTyping(),
	}
	r.sup = ws.NewSupervisor(ws.Config{
		Name:        "chat-room:" + roomID,
		URL:         fmt.Sprintf("%s/ws/chat/%s/", baseURL, roomID),
		Token:       token,
		OnEvent:     r.dispatch,
		BaseDelay:   tn.BaseDelay,
		MaxDelay:    tn.MaxDelay,
		MaxAttempts: tn.MaxAttempts,
	})
	return r
}

func (r *ChatRoom) Start() error { return r.sup.Start() }

func (r *ChatRoom) Close() {
	r.timers.stop()
	r.sup.Close()
}

func (r *ChatRoom) State() (ws.State, string) { return r.sup.State() }

func (r *ChatRoom) dispatch(env protocol.Envelope) {
	switch env.Tag() {
	case protocol.TagChatMessage:
		var m protocol.ChatMessage
		if err := env.Payload(&m); err != nil {
			return
		}
		r.mu.Lock()
		r.messages = append(r.messages, m)
		r.mu.Unlock()
	case protocol.TagChatOnline:
		var p protocol.ChatOnline
		if err := env.Payload(&p); err != nil {
			return
		}
		r.mu.Lock()
		r.online = append([]string(nil), p.Users...)
		r.mu.Unlock()
	case protocol.TagChatTyping:
		var p protocol.ChatTyping
		if err := env.Payload(&p); err != nil || p.Username == "" {
			return
		}
		r.Typing.Add(p.Username)
		// Repeated typing extends the indicator rather than stacking it.
		username := p.Username
		r.timers.schedule("typing:"+username, TypingTTL, func() {
			r.Typing.Remove(username)
		})
	default:
		// ignored
	}
}

// SendMessage posts a message to the room.
func (r *ChatRoom) SendMessage(text string) error {
	return r.sup.Send(map[string]string{"type": "chat.message", "message": text})
}

func (r *ChatRoom) Messages() []protocol.ChatMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]protocol.ChatMessage(nil), r.messages...)
}

func (r *ChatRoom) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.online...)
}
