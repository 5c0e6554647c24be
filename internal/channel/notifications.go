package channel

import (
	"fmt"

	"github.com/edulane/liveclass/internal/auth"
	"github.com/edulane/liveclass/internal/protocol"
	"github.com/edulane/liveclass/internal/state"
	"github.com/edulane/liveclass/internal/ws"
)

// Notifications mirrors the user's notification feed and forwards mark-read
// actions to the server. Local state only changes on the server's marked /
// marked_all echoes, so the feed stays consistent with the authority.
type Notifications struct {
	sup  *ws.Supervisor
	Feed *state.Feed
}

func NewNotifications(baseURL string, token auth.TokenSource, tn ws.Tuning) *Notifications {
	n := &Notifications{Feed: state.NewFeed()}
	n.sup = ws.NewSupervisor(ws.Config{
		Name:        "notifications",
		URL:         fmt.Sprintf("%s/ws/notifications/", baseURL),
		Token:       token,
		OnEvent:     n.dispatch,
		BaseDelay:   tn.BaseDelay,
		MaxDelay:    tn.MaxDelay,
		MaxAttempts: tn.MaxAttempts,
	})
	return n
}

func (n *Notifications) Start() error { return n.sup.Start() }
func (n *Notifications) Close()       { n.sup.Close() }

func (n *Notifications) State() (ws.State, string) { return n.sup.State() }

func (n *Notifications) dispatch(env protocol.Envelope) {
	switch env.Tag() {
	case protocol.TagInit:
		var p protocol.Init
		if err := env.Payload(&p); err != nil {
			return
		}
		n.Feed.OnInit(p.Unread, p.Recent)
	case protocol.TagNotification:
		var item protocol.NotificationItem
		if err := env.Payload(&item); err != nil {
			return
		}
		n.Feed.OnNotification(item)
	case protocol.TagMarked:
		var p protocol.Marked
		if err := env.Payload(&p); err != nil {
			return
		}
		n.Feed.OnMarked(p.ID)
	case protocol.TagMarkedAll:
		n.Feed.OnMarkedAll()
	case protocol.TagHistory:
		var p protocol.History
		if err := env.Payload(&p); err != nil {
			return
		}
		n.Feed.OnHistory(p.Items)
	default:
		// ignored
	}
}

// MarkRead asks the server to mark one notification read.
func (n *Notifications) MarkRead(id int64) error {
	return n.sup.Send(protocol.MarkReadFrame(id))
}

// MarkAllRead asks the server to mark the whole feed read.
func (n *Notifications) MarkAllRead() error {
	return n.sup.Send(protocol.MarkAllReadFrame())
}

// FetchHistory requests an older page of the feed.
func (n *Notifications) FetchHistory(page int) error {
	return n.sup.Send(protocol.FetchHistoryFrame(page))
}
