// Package app wires the realtime channels for one signed-in user and owns
// the single-instance rule: at most one chat room and one live session are
// mounted at a time, and a key change tears the old mount down before the
// new one comes up.
package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edulane/liveclass/internal/auth"
	"github.com/edulane/liveclass/internal/channel"
	"github.com/edulane/liveclass/internal/config"
	"github.com/edulane/liveclass/internal/media"
	"github.com/edulane/liveclass/internal/ws"
)

type Client struct {
	cfg     *config.Config
	token   auth.TokenSource
	devices media.Provider
	tuning  ws.Tuning

	ChatNotify    *channel.ChatNotify
	Notifications *channel.Notifications
	CourseNotify  *channel.CourseNotify

	mu      sync.Mutex
	room    *channel.ChatRoom
	session *channel.LiveSession
	closed  bool
}

func NewClient(cfg *config.Config, devices media.Provider) *Client {
	token := auth.Static(cfg.Token)
	tn := ws.Tuning{
		BaseDelay:   cfg.ReconnectBase,
		MaxDelay:    cfg.ReconnectMax,
		MaxAttempts: cfg.MaxAttempts,
	}
	return &Client{
		cfg:           cfg,
		token:         token,
		devices:       devices,
		tuning:        tn,
		ChatNotify:    channel.NewChatNotify(cfg.WSBase, cfg.UserID, token, tn),
		Notifications: channel.NewNotifications(cfg.WSBase, token, tn),
		CourseNotify:  channel.NewCourseNotify(cfg.WSBase, token, tn),
	}
}

// Start brings up the always-on channels: chat notify, the notification
// feed, and the notify stream of every configured course.
func (c *Client) Start() error {
	if err := c.ChatNotify.Start(); err != nil {
		return err
	}
	if err := c.Notifications.Start(); err != nil {
		return err
	}
	for _, courseID := range c.cfg.Courses {
		if err := c.CourseNotify.Watch(courseID); err != nil {
			log.Warn().Str("module", "app").Str("course", courseID).Err(err).Msg("course watch failed")
		}
	}
	return nil
}

// OpenRoom mounts the chat room channel for roomID, tearing down any
// previously open room first. Opening the already open room is a no-op.
// Opening a room marks it read.
func (c *Client) OpenRoom(roomID string) (*channel.ChatRoom, error) {
	c.mu.Lock()
	if c.room != nil && c.room.RoomID == roomID {
		room := c.room
		c.mu.Unlock()
		return room, nil
	}
	old := c.room
	room := channel.NewChatRoom(c.cfg.WSBase, roomID, c.token, c.tuning)
	c.room = room
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	c.ChatNotify.SetActiveRoom(roomID)
	if err := room.Start(); err != nil {
		return nil, err
	}
	return room, nil
}

// CloseRoom unmounts the open chat room, if any.
func (c *Client) CloseRoom() {
	c.mu.Lock()
	old := c.room
	c.room = nil
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	c.ChatNotify.SetActiveRoom("")
}

// Room returns the currently open chat room, or nil.
func (c *Client) Room() *channel.ChatRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// JoinSession mounts the live-session channel for sessionID. Joining the
// already joined session is a no-op; a different session id replaces the
// old mount.
func (c *Client) JoinSession(sessionID string) (*channel.LiveSession, error) {
	c.mu.Lock()
	if c.session != nil && c.session.SessionID == sessionID {
		sess := c.session
		c.mu.Unlock()
		return sess, nil
	}
	old := c.session
	sess := channel.NewLiveSession(channel.LiveSessionConfig{
		BaseURL:   c.cfg.WSBase,
		SessionID: sessionID,
		Token:     c.token,
		Devices:   c.devices,
		Tuning:    c.tuning,
	})
	c.session = sess
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if err := sess.Start(); err != nil {
		return nil, err
	}
	return sess, nil
}

// LeaveSession unmounts the live session, if any.
func (c *Client) LeaveSession() {
	c.mu.Lock()
	old := c.session
	c.session = nil
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Session returns the currently joined live session, or nil.
func (c *Client) Session() *channel.LiveSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close tears every channel down. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	room := c.room
	sess := c.session
	c.room, c.session = nil, nil
	c.mu.Unlock()

	if room != nil {
		room.Close()
	}
	if sess != nil {
		sess.Close()
	}
	c.CourseNotify.Close()
	c.Notifications.Close()
	c.ChatNotify.Close()
	log.Info().Str("module", "app").Msg("client closed")
}
