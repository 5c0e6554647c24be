package channel

import (
	"fmt"
	"sync"

	"github.com/edulane/liveclass/internal/auth"
	"github.com/edulane/liveclass/internal/protocol"
	"github.com/edulane/liveclass/internal/state"
	"github.com/edulane/liveclass/internal/ws"
)

// CourseNotify watches the notify stream of every enrolled course, one
// supervisor per course id, all feeding a single announcements reducer.
type CourseNotify struct {
	baseURL string
	token   auth.TokenSource
	tuning  ws.Tuning

	mu      sync.Mutex
	watched map[string]*ws.Supervisor
	closed  bool

	Announcements *state.Announcements
}

func NewCourseNotify(baseURL string, token auth.TokenSource, tn ws.Tuning) *CourseNotify {
	return &CourseNotify{
		baseURL:       baseURL,
		token:         token,
		tuning:        tn,
		watched:       make(map[string]*ws.Supervisor),
		Announcements: state.NewAnnouncements(),
	}
}

// Watch opens the notify channel for one course. Watching an already
// watched course is a no-op; no duplicate socket per key.
func (c *CourseNotify) Watch(courseID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ws.ErrSuperseded
	}
	if _, ok := c.watched[courseID]; ok {
		c.mu.Unlock()
		return nil
	}
	sup := ws.NewSupervisor(ws.Config{
		Name:        "course-notify:" + courseID,
		URL:         fmt.Sprintf("%s/ws/notify/course/%s/", c.baseURL, courseID),
		Token:       c.token,
		OnEvent:     c.dispatch,
		BaseDelay:   c.tuning.BaseDelay,
		MaxDelay:    c.tuning.MaxDelay,
		MaxAttempts: c.tuning.MaxAttempts,
	})
	c.watched[courseID] = sup
	c.mu.Unlock()
	return sup.Start()
}

// Unwatch tears down the channel for one course.
func (c *CourseNotify) Unwatch(courseID string) {
	c.mu.Lock()
	sup, ok := c.watched[courseID]
	delete(c.watched, courseID)
	c.mu.Unlock()
	if ok {
		sup.Close()
	}
}

func (c *CourseNotify) dispatch(env protocol.Envelope) {
	var ev protocol.CourseEvent
	if err := env.Payload(&ev); err != nil {
		return
	}
	switch env.Tag() {
	case protocol.TagLiveCreated, protocol.TagLiveStarted:
		c.Announcements.OnLive(ev)
	case protocol.TagLiveCancelled:
		c.Announcements.OnCancelled(ev.SessionID)
	case protocol.TagSessionReminder:
		c.Announcements.OnReminder(ev)
	default:
		// ignored
	}
}

// States returns the connection state per watched course.
func (c *CourseNotify) States() map[string]ws.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]ws.State, len(c.watched))
	for id, sup := range c.watched {
		st, _ := sup.State()
		out[id] = st
	}
	return out
}

func (c *CourseNotify) Close() {
	c.mu.Lock()
	c.closed = true
	sups := make([]*ws.Supervisor, 0, len(c.watched))
	for _, sup := range c.watched {
		sups = append(sups, sup)
	}
	c.watched = make(map[string]*ws.Supervisor)
	c.mu.Unlock()
	for _, sup := range sups {
		sup.Close()
	}
}
