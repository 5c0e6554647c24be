package channel

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/liveclass/internal/auth"
	"github.com/edulane/liveclass/internal/protocol"
	"github.com/edulane/liveclass/internal/ws"
)

func frame(t *testing.T, raw string) protocol.Envelope {
	t.Helper()
	env, err := protocol.Decode([]byte(raw))
	require.NoError(t, err)
	return env
}

func testSource() auth.TokenSource {
	return auth.Static("test-token")
}

// signedSource yields a token that passes the pre-dial expiry check, for
// tests that actually start a supervisor.
func signedSource(t *testing.T) auth.TokenSource {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	raw, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	return auth.Static(raw)
}

func TestChatNotifyCountsUnreadPerRoom(t *testing.T) {
	c := NewChatNotify("ws://example", "42", testSource(), ws.Tuning{})

	c.dispatch(frame(t, `{"event":"new_message","room_id":"r1"}`))
	c.dispatch(frame(t, `{"event":"new_message","room_id":"r1"}`))
	c.dispatch(frame(t, `{"event":"new_message","room_id":"r2"}`))

	assert.Equal(t, 2, c.Unread.Count("r1"))
	assert.Equal(t, 1, c.Unread.Count("r2"))

	c.MarkRead("r1")
	c.MarkRead("r1") // idempotent
	assert.Equal(t, 0, c.Unread.Count("r1"))
	assert.Equal(t, 1, c.Unread.Count("r2"))
}

func TestChatNotifyActiveRoomSuppressesUnread(t *testing.T) {
	c := NewChatNotify("ws://example", "42", testSource(), ws.Tuning{})
	c.SetActiveRoom("r1")

	c.dispatch(frame(t, `{"event":"new_message","room_id":"r1"}`))
	c.dispatch(frame(t, `{"event":"new_message","room_id":"r2"}`))

	assert.Equal(t, 0, c.Unread.Count("r1"), "the open room never accrues unread")
	assert.Equal(t, 1, c.Unread.Count("r2"))
}

func TestChatNotifyIgnoresUnknownTags(t *testing.T) {
	c := NewChatNotify("ws://example", "42", testSource(), ws.Tuning{})
	c.dispatch(frame(t, `{"event":"presence","room_id":"r1"}`))
	assert.Equal(t, 0, c.Unread.Count("r1"))
}

func TestNotificationsFeedLifecycle(t *testing.T) {
	n := NewNotifications("ws://example", testSource(), ws.Tuning{})

	n.dispatch(frame(t, `{"type":"init","unread":[{"id":1,"title":"a"}],"recent":[{"id":1,"title":"a"},{"id":2,"title":"b","is_read":true}]}`))
	assert.Equal(t, 1, n.Feed.UnreadCount())

	n.dispatch(frame(t, `{"type":"notification","id":3,"title":"c"}`))
	assert.Equal(t, 2, n.Feed.UnreadCount())
	unread, recent := n.Feed.Snapshot()
	require.Len(t, unread, 2)
	assert.Equal(t, int64(3), unread[0].ID, "newest entry is prepended")
	assert.Equal(t, int64(3), recent[0].ID)

	// Local state only moves on the server echo.
	n.dispatch(frame(t, `{"type":"marked","id":3}`))
	assert.Equal(t, 1, n.Feed.UnreadCount())
	_, recent = n.Feed.Snapshot()
	for _, item := range recent {
		if item.ID == 3 {
			assert.True(t, item.IsRead)
		}
	}

	n.dispatch(frame(t, `{"type":"marked_all"}`))
	assert.Equal(t, 0, n.Feed.UnreadCount())
}

func TestNotificationsHistoryAppends(t *testing.T) {
	n := NewNotifications("ws://example", testSource(), ws.Tuning{})
	n.dispatch(frame(t, `{"type":"init","unread":[],"recent":[{"id":9,"title":"new"}]}`))
	n.dispatch(frame(t, `{"type":"history","page":2,"items":[{"id":1,"title":"old","is_read":true}]}`))

	_, recent := n.Feed.Snapshot()
	require.Len(t, recent, 2)
	assert.Equal(t, int64(9), recent[0].ID)
	assert.Equal(t, int64(1), recent[1].ID, "older pages land after what is already shown")
}

func TestCourseNotifyAnnouncements(t *testing.T) {
	c := NewCourseNotify("ws://example", testSource(), ws.Tuning{})

	c.dispatch(frame(t, `{"event":"live_created","session_id":"s1","course_id":"c1","title":"Algebra"}`))
	c.dispatch(frame(t, `{"event":"live_started","session_id":"s1","course_id":"c1","title":"Algebra"}`))
	assert.Len(t, c.Announcements.Snapshot(), 1, "same session announced once")

	c.dispatch(frame(t, `{"event":"session_reminder","session_id":"s2","starts_at":"2026-09-01T10:00:00Z"}`))
	reminder := c.Announcements.Reminder()
	require.NotNil(t, reminder)
	assert.Equal(t, "s2", reminder.SessionID)

	c.dispatch(frame(t, `{"event":"live_cancelled","session_id":"s1"}`))
	assert.Empty(t, c.Announcements.Snapshot())
}

func TestCourseNotifyWatchIsIdempotentPerCourse(t *testing.T) {
	c := NewCourseNotify("ws://127.0.0.1:1", testSource(), ws.Tuning{})
	defer c.Close()

	// The first watch opens a supervisor; a dead endpoint is fine here, the
	// supervisor retries in the background and we only assert bookkeeping.
	require.NoError(t, c.Watch("c1"))
	require.NoError(t, c.Watch("c1"))
	assert.Len(t, c.States(), 1)

	c.Unwatch("c1")
	assert.Empty(t, c.States())
	c.Unwatch("c1") // absent course is a no-op
}

func TestCourseNotifyWatchAfterCloseIsRejected(t *testing.T) {
	c := NewCourseNotify("ws://127.0.0.1:1", testSource(), ws.Tuning{})
	c.Close()
	assert.Error(t, c.Watch("c1"))
}

func TestChatRoomMessagesAndOnline(t *testing.T) {
	r := NewChatRoom("ws://example", "r1", testSource(), ws.Tuning{})
	defer r.Close()

	r.dispatch(frame(t, `{"type":"chat.message","room_id":"r1","username":"ada","message":"hi"}`))
	r.dispatch(frame(t, `{"type":"chat.message","room_id":"r1","username":"grace","message":"hello"}`))
	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Message)

	r.dispatch(frame(t, `{"type":"chat.online","users":["ada","grace"]}`))
	r.dispatch(frame(t, `{"type":"chat.online","users":["ada"]}`))
	assert.Equal(t, []string{"ada"}, r.Online(), "online list is a replacement, not a merge")
}

func TestChatRoomTypingExpires(t *testing.T) {
	r := NewChatRoom("ws://example", "r1", testSource(), ws.Tuning{})
	defer r.Close()

	r.dispatch(frame(t, `{"type":"chat.typing","username":"ada"}`))
	assert.Equal(t, []string{"ada"}, r.Typing.Snapshot())

	// Repeated typing extends the window instead of stacking entries.
	r.dispatch(frame(t, `{"type":"chat.typing","username":"ada"}`))
	assert.Equal(t, []string{"ada"}, r.Typing.Snapshot())

	assert.Eventually(t, func() bool {
		return len(r.Typing.Snapshot()) == 0
	}, TypingTTL+time.Second, 10*time.Millisecond)
}

func TestReconnectTuningReachesSupervisor(t *testing.T) {
	// One attempt with a millisecond delay against a dead endpoint fails
	// within the test timeout; the package defaults (5 attempts from a 1s
	// base) would still be backing off.
	c := NewChatNotify("ws://127.0.0.1:1", "42", signedSource(t), ws.Tuning{
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		MaxAttempts: 1,
	})
	defer c.Close()
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool {
		st, _ := c.State()
		return st == ws.StateFailed
	}, 2*time.Second, 5*time.Millisecond)
	_, reason := c.State()
	assert.Equal(t, "reconnect attempts exhausted", reason)
}

func TestChatRoomTypingWithoutUsernameIsDropped(t *testing.T) {
	r := NewChatRoom("ws://example", "r1", testSource(), ws.Tuning{})
	defer r.Close()
	r.dispatch(frame(t, `{"type":"chat.typing"}`))
	assert.Empty(t, r.Typing.Snapshot())
}
