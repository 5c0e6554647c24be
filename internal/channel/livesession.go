package channel

import (
	"fmt"
	"sync"
	"time"

	"github.com/edulane/liveclass/internal/auth"
	"github.com/edulane/liveclass/internal/media"
	"github.com/edulane/liveclass/internal/protocol"
	"github.com/edulane/liveclass/internal/rtc"
	"github.com/edulane/liveclass/internal/state"
	"github.com/edulane/liveclass/internal/ws"
)

// ReactionTTL is how long a reaction marker stays on screen.
const ReactionTTL = 2 * time.Second

// LiveSession is the channel for one live class: roster, reactions, session
// lifecycle, and the signaling side channel feeding the peer mesh. Joining
// without usable local media is allowed; the session then runs receive-only
// with media controls disabled.
type LiveSession struct {
	SessionID string

	sup    *ws.Supervisor
	timers *timerSet

	Roster    *state.Roster
	Reactions *state.Reactions
	Peers     *rtc.Coordinator
	Media     *media.Controller

	mu     sync.RWMutex
	role   string
	ended  bool
	raised bool
}

// LiveSessionConfig wires one session mount.
type LiveSessionConfig struct {
	BaseURL   string
	SessionID string
	Token     auth.TokenSource
	Devices   media.Provider
	Tuning    ws.Tuning
}

func NewLiveSession(cfg LiveSessionConfig) *LiveSession {
	s := &LiveSession{
		SessionID: cfg.SessionID,
		timers:    newTimerSet(),
		Roster:    state.NewRoster(),
		Reactions: state.NewReactions(),
	}
	s.sup = ws.NewSupervisor(ws.Config{
		Name:        "live-session:" + cfg.SessionID,
		URL:         fmt.Sprintf("%s/ws/live/%s/", cfg.BaseURL, cfg.SessionID),
		Token:       cfg.Token,
		OnEvent:     s.dispatch,
		OnOpen:      s.onOpen,
		OnDrop:      s.onDrop,
		LeaveFrame:  protocol.LeaveFrame(),
		BaseDelay:   cfg.Tuning.BaseDelay,
		MaxDelay:    cfg.Tuning.MaxDelay,
		MaxAttempts: cfg.Tuning.MaxAttempts,
	})

	devices := cfg.Devices
	if devices == nil {
		devices = media.NewSampleProvider()
	}
	s.Media = media.NewController(devices, nil)
	s.Peers = rtc.NewCoordinator(s.sup, s.Media, rtc.DefaultConfiguration())
	s.Media.SetReplace(s.Peers.ReplaceVideoTrack)
	return s
}

// Start acquires local media and opens the session socket. Media failure
// is not fatal: the session proceeds receive-only, without senders.
func (s *LiveSession) Start() error {
	_ = s.Media.Start()
	return s.sup.Start()
}

// Close leaves the session and releases everything: pending reaction
// timers, the socket, every peer connection and local media.
func (s *LiveSession) Close() {
	s.timers.stop()
	s.sup.Close()
	s.Peers.CloseAll()
	s.Media.Close()
}

func (s *LiveSession) State() (ws.State, string) { return s.sup.State() }

func (s *LiveSession) onOpen() {
	if err := s.sup.Send(protocol.JoinFrame()); err != nil {
		return
	}
}

// onDrop clears connection-scoped state: the roster is rebuilt from the
// participants broadcast after a reconnect, and the peer mesh cannot
// survive a signaling gap.
func (s *LiveSession) onDrop() {
	s.Roster.Clear()
	s.Peers.CloseAll()
}

func (s *LiveSession) dispatch(env protocol.Envelope) {
	switch env.Tag() {
	case protocol.TagJoined:
		var p protocol.Joined
		if err := env.Payload(&p); err != nil {
			return
		}
		s.mu.Lock()
		s.role = p.Role
		s.mu.Unlock()

	case protocol.TagParticipants:
		var p protocol.Participants
		if err := env.Payload(&p); err != nil {
			return
		}
		s.Roster.Replace(p.Participants)

	case protocol.TagParticipant:
		var p protocol.ParticipantEvent
		if err := env.Payload(&p); err != nil {
			return
		}
		switch p.Event {
		case "joined":
			if p.Participant != nil {
				s.Roster.Join(*p.Participant)
			}
		case "left":
			s.Roster.Leave(p.UserID)
		}

	case protocol.TagMute:
		var p protocol.MuteEvent
		if err := env.Payload(&p); err != nil {
			return
		}
		s.Roster.SetMuted(p.UserID, p.IsMuted)

	case protocol.TagHand:
		var p protocol.HandEvent
		if err := env.Payload(&p); err != nil {
			return
		}
		s.Roster.SetHandRaised(p.UserID, p.HandRaised)

	case protocol.TagCamera:
		var p protocol.CameraEvent
		if err := env.Payload(&p); err != nil {
			return
		}
		s.Roster.SetCameraOn(p.UserID, p.CameraOn)

	case protocol.TagReaction:
		var p protocol.ReactionEvent
		if err := env.Payload(&p); err != nil {
			return
		}
		re := s.Reactions.Add(p.UserID, p.Emoji)
		s.timers.schedule(re.ID, ReactionTTL, func() {
			s.Reactions.Expire(re.ID)
		})

	case protocol.TagSessionEnded:
		var p protocol.SessionEnded
		if err := env.Payload(&p); err != nil {
			return
		}
		s.mu.Lock()
		s.ended = true
		s.mu.Unlock()

	case protocol.TagPeers, protocol.TagOffer, protocol.TagAnswer,
		protocol.TagCandidate, protocol.TagLeft:
		s.Peers.HandleSignal(env)

	default:
		// ignored
	}
}

// Role returns this user's role as assigned by the server on join.
func (s *LiveSession) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Ended reports whether the server ended the session.
func (s *LiveSession) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}

// ToggleMute flips the local mic and announces the new state.
func (s *LiveSession) ToggleMute() error {
	micOn, err := s.Media.ToggleMic()
	if err != nil {
		return err
	}
	return s.sup.Send(protocol.ToggleMuteFrame(!micOn))
}

// ToggleCamera flips the local camera gate and announces the new state.
func (s *LiveSession) ToggleCamera() error {
	on, err := s.Media.ToggleCamera()
	if err != nil {
		return err
	}
	return s.sup.Send(protocol.ToggleCameraFrame(on))
}

// ToggleHand flips the raised-hand flag and announces it.
func (s *LiveSession) ToggleHand() error {
	s.mu.Lock()
	s.raised = !s.raised
	raised := s.raised
	s.mu.Unlock()
	return s.sup.Send(protocol.ToggleHandFrame(raised))
}

// SendReaction emits an emoji reaction to the room.
func (s *LiveSession) SendReaction(emoji string) error {
	return s.sup.Send(protocol.ReactionFrame(emoji))
}
