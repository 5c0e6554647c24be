package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/liveclass/internal/protocol"
)

func item(id int64) protocol.NotificationItem {
	return protocol.NotificationItem{ID: id, Title: "n"}
}

func TestFeedInitAndNotification(t *testing.T) {
	f := NewFeed()
	f.OnInit([]protocol.NotificationItem{item(1)}, []protocol.NotificationItem{item(1), item(2)})

	f.OnNotification(item(3))

	unread, recent := f.Snapshot()
	require.Len(t, unread, 2)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(3), unread[0].ID, "fresh entry is prepended")
	assert.Equal(t, int64(3), recent[0].ID)
}

func TestFeedMarked(t *testing.T) {
	f := NewFeed()
	f.OnInit([]protocol.NotificationItem{item(1), item(2)}, []protocol.NotificationItem{item(1), item(2)})

	f.OnMarked(1)
	unread, recent := f.Snapshot()
	require.Len(t, unread, 1)
	assert.Equal(t, int64(2), unread[0].ID)
	assert.True(t, recent[0].IsRead)
	assert.False(t, recent[1].IsRead)

	// Unknown id is a no-op.
	f.OnMarked(99)
	unread2, _ := f.Snapshot()
	assert.Equal(t, unread, unread2)
}

func TestFeedMarkedAll(t *testing.T) {
	f := NewFeed()
	f.OnInit([]protocol.NotificationItem{item(1), item(2)}, []protocol.NotificationItem{item(1), item(2), item(3)})

	f.OnMarkedAll()
	assert.Equal(t, 0, f.UnreadCount())
	_, recent := f.Snapshot()
	for _, n := range recent {
		assert.True(t, n.IsRead)
	}
}

func TestFeedHistoryAppendsToEnd(t *testing.T) {
	f := NewFeed()
	f.OnInit(nil, []protocol.NotificationItem{item(5), item(4)})
	f.OnHistory([]protocol.NotificationItem{item(3), item(2)})

	_, recent := f.Snapshot()
	require.Len(t, recent, 4)
	assert.Equal(t, int64(2), recent[3].ID)
}
