package channel

import (
	"fmt"

	"github.com/edulane/liveclass/internal/auth"
	"github.com/edulane/liveclass/internal/protocol"
	"github.com/edulane/liveclass/internal/state"
	"github.com/edulane/liveclass/internal/ws"
)

// ChatNotify maintains the per-room unread index from the user-wide chat
// notification stream.
type ChatNotify struct {
	sup    *ws.Supervisor
	Unread *state.Unread
}

func NewChatNotify(baseURL, userID string, token auth.TokenSource, tn ws.Tuning) *ChatNotify {
	c := &ChatNotify{Unread: state.NewUnread()}
	c.sup = ws.NewSupervisor(ws.Config{
		Name:        "chat-notify",
		URL:         fmt.Sprintf("%s/ws/chat/user/%s/", baseURL, userID),
		Token:       token,
		OnEvent:     c.dispatch,
		BaseDelay:   tn.BaseDelay,
		MaxDelay:    tn.MaxDelay,
		MaxAttempts: tn.MaxAttempts,
	})
	return c
}

func (c *ChatNotify) Start() error { return c.sup.Start() }
func (c *ChatNotify) Close()       { c.sup.Close() }

func (c *ChatNotify) State() (ws.State, string) { return c.sup.State() }

func (c *ChatNotify) dispatch(env protocol.Envelope) {
	switch env.Tag() {
	case protocol.TagNewMessage:
		var m protocol.NewMessage
		if err := env.Payload(&m); err != nil {
			return
		}
		c.Unread.OnNewMessage(m.RoomID)
	default:
		// ignored
	}
}

// SetActiveRoom marks the open room; its unread entry is cleared and stays
// clear while open.
func (c *ChatNotify) SetActiveRoom(roomID string) {
	c.Unread.SetActive(roomID)
}

// MarkRead clears the unread entry for roomID. Idempotent.
func (c *ChatNotify) MarkRead(roomID string) {
	c.Unread.MarkRead(roomID)
}
