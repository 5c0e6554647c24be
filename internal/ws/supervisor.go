// Package ws implements the connection supervisor: one owner per logical
// realtime channel, running connect, auth, receive and reconnect for a
// single websocket. Every channel in the client is an instance of this
// supervisor with its own endpoint and event handler.
package ws

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/edulane/liveclass/internal/auth"
	"github.com/edulane/liveclass/internal/protocol"
)

// State is the supervisor lifecycle state, exposed to the UI layer instead
// of errors. No error from the socket or a handler escapes a supervisor.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
	StateFailed       State = "failed"
)

// Close codes reserved by the server for auth failures. They must never
// trigger a reconnect.
const (
	CloseAuthFailed = 4003
	CloseForbidden  = 4004
)

var (
	ErrNotOpen    = errors.New("socket is not open")
	ErrSuperseded = errors.New("supervisor already started")
)

// Tuning carries the reconnect knobs from configuration down to each
// supervisor. Zero values fall back to the package defaults.
type Tuning struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// Config wires one supervisor instance.
type Config struct {
	// Name tags log lines, e.g. "chat-notify".
	Name string

	// URL is the full endpoint; the token is appended as ?token=.
	URL string

	// Token yields the credential for each connection attempt. The
	// supervisor checks expiry before dialing and fails terminally on an
	// unusable token.
	Token auth.TokenSource

	// TokenBuffer is the expiry safety margin (DefaultExpiryBuffer if zero).
	TokenBuffer time.Duration

	// OnEvent receives decoded frames synchronously in server-send order.
	OnEvent func(protocol.Envelope)

	// OnState observes every state transition. Optional.
	OnState func(State, string)

	// OnOpen runs after each successful open, before any frame is read.
	// Channels use it to send their join frame. Optional.
	OnOpen func()

	// OnDrop runs after the socket leaves open state for any reason.
	// Channels use it to clear connection-scoped state. Optional.
	OnDrop func()

	// LeaveFrame, when non-nil, is sent best-effort during teardown while
	// the socket is still open.
	LeaveFrame any

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Supervisor owns exactly one live websocket for its channel key. It is
// created idle; Start brings it up, Close tears it down. Both are
// idempotent.
type Supervisor struct {
	cfg    Config
	dialer *websocket.Dialer
	recon  *reconnector

	mu      sync.Mutex
	state   State
	reason  string
	conn    *websocket.Conn
	started bool
	stopped bool
	stopCh  chan struct{}
	writeMu sync.Mutex
}

func NewSupervisor(cfg Config) *Supervisor {
	d := cfg.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}
	if cfg.TokenBuffer == 0 {
		cfg.TokenBuffer = auth.DefaultExpiryBuffer
	}
	return &Supervisor{
		cfg:    cfg,
		dialer: d,
		recon:  newReconnector(cfg.BaseDelay, cfg.MaxDelay, cfg.MaxAttempts),
		state:  StateIdle,
		stopCh: make(chan struct{}),
	}
}

// Start brings the connection up. Calling it while the supervisor is
// already connecting or open is a no-op, so rapid re-entry cannot produce
// a duplicate socket for the same key.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
	return nil
}

// State returns the current lifecycle state and its reason (set for
// terminal states).
func (s *Supervisor) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.reason
}

// Send writes one outbound frame. When the socket is not open this is a
// no-op that reports ErrNotOpen; it never blocks on a dead connection.
func (s *Supervisor) Send(v any) error {
	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen
	s.mu.Unlock()
	if !open || conn == nil {
		return ErrNotOpen
	}
	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears the supervisor down: best-effort leave frame while open,
// normal close, and cancellation of any pending reconnect. Idempotent and
// safe to race with an in-flight reconnect timer.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	conn := s.conn
	open := s.state == StateOpen
	close(s.stopCh)
	s.mu.Unlock()

	if conn != nil {
		if open && s.cfg.LeaveFrame != nil {
			if data, err := protocol.Encode(s.cfg.LeaveFrame); err == nil {
				s.writeMu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
				_ = conn.WriteMessage(websocket.TextMessage, data)
				s.writeMu.Unlock()
			}
		}
		s.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	s.setState(StateClosed, "")
}

func (s *Supervisor) run() {
	for {
		if s.isStopped() {
			return
		}

		token := s.cfg.Token()
		if err := auth.CheckToken(token, s.cfg.TokenBuffer); err != nil {
			log.Warn().Str("module", "ws").Str("channel", s.cfg.Name).Err(err).Msg("credential unusable, not dialing")
			s.setState(StateFailed, err.Error())
			return
		}

		s.setState(StateConnecting, "")
		conn, status, err := s.dial(token)
		if err != nil {
			// The server can also reject credentials at upgrade time,
			// before the socket exists to carry a 4003 close.
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				log.Warn().Str("module", "ws").Str("channel", s.cfg.Name).Int("status", status).Msg("handshake rejected, not retrying")
				s.setState(StateFailed, fmt.Sprintf("handshake rejected with status %d", status))
				return
			}
			log.Error().Str("module", "ws").Str("channel", s.cfg.Name).Err(err).Msg("dial failed")
		} else {
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				_ = conn.Close()
				return
			}
			s.conn = conn
			s.mu.Unlock()

			s.recon.reset()
			s.setState(StateOpen, "")
			log.Info().Str("module", "ws").Str("channel", s.cfg.Name).Msg("connected")
			if s.cfg.OnOpen != nil {
				s.cfg.OnOpen()
			}

			terminal := s.readLoop(conn)

			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
			if s.cfg.OnDrop != nil {
				s.cfg.OnDrop()
			}
			if terminal {
				return
			}
			if s.isStopped() {
				return
			}
		}

		if s.recon.exhausted() {
			log.Warn().Str("module", "ws").Str("channel", s.cfg.Name).Msg("reconnect attempts exhausted")
			s.setState(StateFailed, "reconnect attempts exhausted")
			return
		}
		delay := s.recon.nextDelay()
		s.setState(StateReconnecting, "")
		log.Info().Str("module", "ws").Str("channel", s.cfg.Name).Dur("delay", delay).Msg("reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Supervisor) dial(token string) (*websocket.Conn, int, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, 0, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := s.dialer.Dial(u.String(), nil)
	status := 0
	if resp != nil {
		status = resp.StatusCode
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}
	return conn, status, err
}

// readLoop applies frames in server-send order until the socket drops.
// It reports whether the drop is terminal (auth close codes).
func (s *Supervisor) readLoop(conn *websocket.Conn) bool {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return s.interpretClose(err)
		}
		env, derr := protocol.Decode(data)
		if derr != nil {
			// Protocol evolution guard: unknown or malformed frames are
			// dropped, never fatal.
			log.Debug().Str("module", "ws").Str("channel", s.cfg.Name).Err(derr).Msg("dropping frame")
			continue
		}
		if s.cfg.OnEvent != nil {
			s.cfg.OnEvent(env)
		}
	}
}

func (s *Supervisor) interpretClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case CloseAuthFailed, CloseForbidden:
			log.Warn().Str("module", "ws").Str("channel", s.cfg.Name).Int("code", ce.Code).Msg("authorization close, not retrying")
			s.setState(StateFailed, ce.Error())
			return true
		}
	}
	if !s.isStopped() {
		log.Warn().Str("module", "ws").Str("channel", s.cfg.Name).Err(err).Msg("connection dropped")
	}
	return false
}

func (s *Supervisor) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Supervisor) setState(st State, reason string) {
	s.mu.Lock()
	if s.stopped && st != StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.reason = reason
	s.mu.Unlock()
	if s.cfg.OnState != nil {
		s.cfg.OnState(st, reason)
	}
}
