// Package http serves the agent's local observability and control API.
// It is a thin view over the client's reducers: every read is a snapshot,
// every write goes through the owning channel.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edulane/liveclass/internal/app"
)

func SetupRouter(mode string, client *app.Client) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")

	api.GET("/status", func(c *gin.Context) {
		chatState, chatReason := client.ChatNotify.State()
		feedState, feedReason := client.Notifications.State()
		resp := gin.H{
			"chat_notify":   gin.H{"state": chatState, "reason": chatReason},
			"notifications": gin.H{"state": feedState, "reason": feedReason},
			"course_notify": client.CourseNotify.States(),
		}
		if sess := client.Session(); sess != nil {
			st, reason := sess.State()
			resp["live_session"] = gin.H{
				"session_id":   sess.SessionID,
				"state":        st,
				"reason":       reason,
				"role":         sess.Role(),
				"ended":        sess.Ended(),
				"peers":        sess.Peers.PeerCount(),
				"media_denied": sess.Media.Denied(),
			}
		}
		if room := client.Room(); room != nil {
			st, reason := room.State()
			resp["chat_room"] = gin.H{"room_id": room.RoomID, "state": st, "reason": reason}
		}
		c.JSON(http.StatusOK, resp)
	})

	api.GET("/chat/unread", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"rooms": client.ChatNotify.Unread.Snapshot(),
			"count": client.ChatNotify.Unread.Rooms(),
		})
	})

	api.POST("/chat/rooms/:id/read", func(c *gin.Context) {
		client.ChatNotify.MarkRead(c.Param("id"))
		c.Status(http.StatusNoContent)
	})

	api.POST("/chat/rooms/:id/open", func(c *gin.Context) {
		room, err := client.OpenRoom(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		st, _ := room.State()
		c.JSON(http.StatusOK, gin.H{"room_id": room.RoomID, "state": st})
	})

	api.POST("/chat/rooms/close", func(c *gin.Context) {
		client.CloseRoom()
		c.Status(http.StatusNoContent)
	})

	api.GET("/notifications", func(c *gin.Context) {
		unread, recent := client.Notifications.Feed.Snapshot()
		c.JSON(http.StatusOK, gin.H{"unread": unread, "recent": recent})
	})

	api.POST("/notifications/read", func(c *gin.Context) {
		var req struct {
			ID  *int64 `json:"id"`
			All bool   `json:"all"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		var err error
		switch {
		case req.All:
			err = client.Notifications.MarkAllRead()
		case req.ID != nil:
			err = client.Notifications.MarkRead(*req.ID)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "id or all required"})
			return
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/announcements", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"sessions": client.CourseNotify.Announcements.Snapshot(),
			"reminder": client.CourseNotify.Announcements.Reminder(),
		})
	})

	api.POST("/live/:id/join", func(c *gin.Context) {
		sess, err := client.JoinSession(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		st, _ := sess.State()
		c.JSON(http.StatusOK, gin.H{"session_id": sess.SessionID, "state": st})
	})

	api.POST("/live/leave", func(c *gin.Context) {
		client.LeaveSession()
		c.Status(http.StatusNoContent)
	})

	api.GET("/live/participants", func(c *gin.Context) {
		sess := client.Session()
		if sess == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no live session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"participants": sess.Roster.Snapshot(),
			"reactions":    sess.Reactions.Snapshot(),
			"remote":       sess.Peers.RemoteTracks(),
		})
	})

	api.POST("/live/controls", func(c *gin.Context) {
		sess := client.Session()
		if sess == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no live session"})
			return
		}
		var req struct {
			Action string `json:"action" binding:"required"`
			Emoji  string `json:"emoji"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		var err error
		switch req.Action {
		case "toggle-mute":
			err = sess.ToggleMute()
		case "toggle-camera":
			err = sess.ToggleCamera()
		case "toggle-hand":
			err = sess.ToggleHand()
		case "reaction":
			err = sess.SendReaction(req.Emoji)
		case "screen-share":
			err = sess.Media.StartScreenShare()
		case "screen-share-stop":
			sess.Media.StopScreenShare()
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
			return
		}
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	return r
}
