package ws

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulane/liveclass/internal/auth"
	"github.com/edulane/liveclass/internal/protocol"
)

func testToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	raw, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	return raw
}

// wsServer accepts websocket connections and hands them to accept.
type wsServer struct {
	srv    *httptest.Server
	dials  atomic.Int32
	accept func(*websocket.Conn)
}

func newWSServer(t *testing.T, accept func(*websocket.Conn)) *wsServer {
	t.Helper()
	s := &wsServer{accept: accept}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.accept(conn)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return strings.Replace(s.srv.URL, "http", "ws", 1)
}

// stateRecorder collects every transition for later assertions.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(st State, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *stateRecorder) saw(st State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == st {
			return true
		}
	}
	return false
}

func waitState(t *testing.T, s *Supervisor, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, _ := s.State()
		return st == want
	}, 3*time.Second, 5*time.Millisecond, "want state %s", want)
}

func TestSupervisorDeliversEventsInOrder(t *testing.T) {
	frames := []string{
		`{"type":"notification","id":1}`,
		`{"type":"notification","id":2}`,
		`{"type":"marked","id":1}`,
	}
	srv := newWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
	})

	var mu sync.Mutex
	var got []string
	sup := NewSupervisor(Config{
		Name:  "test",
		URL:   srv.url(),
		Token: auth.Static(testToken(t, time.Hour)),
		OnEvent: func(env protocol.Envelope) {
			mu.Lock()
			got = append(got, string(env.Raw))
			mu.Unlock()
		},
	})
	require.NoError(t, sup.Start())
	defer sup.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(frames)
	}, 3*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, frames, got, "reducer transitions apply in server-send order")
}

func TestSupervisorMalformedFramesAreDropped(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"no_tag":true}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ok"}`))
	})

	events := make(chan string, 8)
	sup := NewSupervisor(Config{
		Name:    "test",
		URL:     srv.url(),
		Token:   auth.Static(testToken(t, time.Hour)),
		OnEvent: func(env protocol.Envelope) { events <- env.Tag() },
	})
	require.NoError(t, sup.Start())
	defer sup.Close()

	select {
	case tag := <-events:
		assert.Equal(t, "ok", tag)
	case <-time.After(3 * time.Second):
		t.Fatal("expected the valid frame to arrive")
	}
	assert.Empty(t, events, "malformed frames never reach the handler")
}

func TestSupervisorAuthCloseIsTerminal(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseAuthFailed, "bad token"), time.Now().Add(time.Second))
		// Keep reading so the close handshake completes.
		_, _, _ = conn.ReadMessage()
		_ = conn.Close()
	})

	rec := &stateRecorder{}
	sup := NewSupervisor(Config{
		Name:      "test",
		URL:       srv.url(),
		Token:     auth.Static(testToken(t, time.Hour)),
		OnState:   rec.record,
		BaseDelay: time.Millisecond,
	})
	require.NoError(t, sup.Start())
	defer sup.Close()

	waitState(t, sup, StateFailed)
	// No reconnect timer may fire after an authorization close.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), srv.dials.Load(), "4003 must not trigger reconnect")
	assert.False(t, rec.saw(StateReconnecting))
}

func TestSupervisorHandshakeRejectionIsTerminal(t *testing.T) {
	// Credentials can be rejected before the upgrade completes; that must
	// not burn reconnect attempts any more than a 4003 close does.
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		dials.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	rec := &stateRecorder{}
	sup := NewSupervisor(Config{
		Name:      "test",
		URL:       strings.Replace(srv.URL, "http", "ws", 1),
		Token:     auth.Static(testToken(t, time.Hour)),
		OnState:   rec.record,
		BaseDelay: time.Millisecond,
	})
	require.NoError(t, sup.Start())
	defer sup.Close()

	waitState(t, sup, StateFailed)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), dials.Load(), "rejected handshake must not trigger reconnect")
	assert.False(t, rec.saw(StateReconnecting))
	_, reason := sup.State()
	assert.Equal(t, "handshake rejected with status 403", reason)
}

func TestSupervisorReconnectsAfterDrop(t *testing.T) {
	var accepted atomic.Int32
	srv := newWSServer(t, func(conn *websocket.Conn) {
		n := accepted.Add(1)
		if n < 3 {
			// Abnormal drop, no close handshake.
			_ = conn.Close()
			return
		}
		_, _, _ = conn.ReadMessage()
	})

	rec := &stateRecorder{}
	sup := NewSupervisor(Config{
		Name:      "test",
		URL:       srv.url(),
		Token:     auth.Static(testToken(t, time.Hour)),
		OnState:   rec.record,
		BaseDelay: time.Millisecond,
	})
	require.NoError(t, sup.Start())
	defer sup.Close()

	require.Eventually(t, func() bool { return accepted.Load() >= 3 }, 3*time.Second, 5*time.Millisecond)
	waitState(t, sup, StateOpen)
	assert.True(t, rec.saw(StateReconnecting))
	assert.Equal(t, 0, sup.recon.attempt, "successful open resets the attempt counter")
}

func TestSupervisorFailsAfterMaxAttempts(t *testing.T) {
	// Grab a port with no listener behind it.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := l.Addr().String()
	require.NoError(t, l.Close())

	rec := &stateRecorder{}
	sup := NewSupervisor(Config{
		Name:        "test",
		URL:         "ws://" + deadAddr + "/ws/notifications/",
		Token:       auth.Static(testToken(t, time.Hour)),
		OnState:     rec.record,
		BaseDelay:   time.Millisecond,
		MaxAttempts: 3,
	})
	require.NoError(t, sup.Start())
	defer sup.Close()

	waitState(t, sup, StateFailed)
	_, reason := sup.State()
	assert.Equal(t, "reconnect attempts exhausted", reason)
}

func TestSupervisorExpiredTokenFailsWithoutDialing(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) {})

	sup := NewSupervisor(Config{
		Name:  "test",
		URL:   srv.url(),
		Token: auth.Static(testToken(t, -time.Hour)),
	})
	require.NoError(t, sup.Start())
	defer sup.Close()

	waitState(t, sup, StateFailed)
	assert.Equal(t, int32(0), srv.dials.Load(), "expired credential must not open a socket")
}

func TestSupervisorSendRequiresOpen(t *testing.T) {
	sup := NewSupervisor(Config{
		Name:  "test",
		URL:   "ws://127.0.0.1:1/",
		Token: auth.Static(testToken(t, time.Hour)),
	})
	err := sup.Send(map[string]string{"type": "join"})
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestSupervisorCloseSendsLeaveAndIsIdempotent(t *testing.T) {
	received := make(chan string, 4)
	srv := newWSServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				close(received)
				return
			}
			received <- string(data)
		}
	})

	sup := NewSupervisor(Config{
		Name:       "test",
		URL:        srv.url(),
		Token:      auth.Static(testToken(t, time.Hour)),
		LeaveFrame: protocol.LeaveFrame(),
	})
	require.NoError(t, sup.Start())
	waitState(t, sup, StateOpen)

	sup.Close()
	sup.Close() // second teardown is harmless

	select {
	case frame := <-received:
		assert.JSONEq(t, `{"type":"leave"}`, frame)
	case <-time.After(3 * time.Second):
		t.Fatal("expected best-effort leave frame before close")
	}

	st, _ := sup.State()
	assert.Equal(t, StateClosed, st)
	assert.ErrorIs(t, sup.Start(), ErrSuperseded)
}

func TestSupervisorStartTwiceIsGuarded(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})
	sup := NewSupervisor(Config{
		Name:  "test",
		URL:   srv.url(),
		Token: auth.Static(testToken(t, time.Hour)),
	})
	require.NoError(t, sup.Start())
	defer sup.Close()
	assert.ErrorIs(t, sup.Start(), ErrSuperseded, "rapid re-entry cannot create a duplicate socket")

	waitState(t, sup, StateOpen)
	assert.Equal(t, int32(1), srv.dials.Load())
}
