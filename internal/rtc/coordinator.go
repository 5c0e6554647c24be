// Package rtc drives the mesh of peer connections for one live session,
// signaled through the session's websocket supervisor. The coordinator is
// the only writer of the peer map; everything readers see is a snapshot.
package rtc

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/edulane/liveclass/internal/protocol"
)

// Signaler sends outbound signaling frames. *ws.Supervisor satisfies it.
type Signaler interface {
	Send(v any) error
}

// TrackSource provides the local outgoing tracks. media.Controller
// satisfies it; a nil or not-ready source means receive-only.
type TrackSource interface {
	Ready() bool
	Tracks() []webrtc.TrackLocal
}

// RemoteTrack is the display slot for one remote peer's media.
type RemoteTrack struct {
	PeerID   string `json:"peer_id"`
	TrackID  string `json:"track_id"`
	StreamID string `json:"stream_id"`
	Kind     string `json:"kind"`
}

type peerEntry struct {
	pc      *webrtc.PeerConnection
	senders map[string]*webrtc.RTPSender // by track kind
}

// Coordinator owns the per-peer connection table for one session instance.
type Coordinator struct {
	signaler Signaler
	local    TrackSource
	webCfg   webrtc.Configuration

	mu     sync.Mutex
	peers  map[string]*peerEntry
	remote map[string]RemoteTrack

	// OnRemoteTrack observes display slot changes. Optional.
	OnRemoteTrack func(RemoteTrack)
}

// DefaultConfiguration matches the STUN setup the sessions use.
func DefaultConfiguration() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

func NewCoordinator(signaler Signaler, local TrackSource, cfg webrtc.Configuration) *Coordinator {
	return &Coordinator{
		signaler: signaler,
		local:    local,
		webCfg:   cfg,
		peers:    make(map[string]*peerEntry),
		remote:   make(map[string]RemoteTrack),
	}
}

// HandleSignal dispatches one signaling frame from the session socket.
// Unknown tags are ignored.
func (c *Coordinator) HandleSignal(env protocol.Envelope) {
	var sig protocol.Signal
	if err := env.Payload(&sig); err != nil {
		log.Debug().Str("module", "rtc").Err(err).Msg("dropping malformed signal")
		return
	}
	switch env.Tag() {
	case protocol.TagPeers:
		var p protocol.Peers
		if err := env.Payload(&p); err == nil {
			c.HandlePeers(p.IDs)
		}
	case protocol.TagOffer:
		c.HandleOffer(sig.From, sig.SDP)
	case protocol.TagAnswer:
		c.HandleAnswer(sig.From, sig.SDP)
	case protocol.TagCandidate:
		c.HandleCandidate(sig.From, sig.Candidate)
	case protocol.TagLeft:
		var l protocol.Left
		if err := env.Payload(&l); err == nil {
			c.RemovePeer(l.PeerID)
		}
	}
}

// HandlePeers offers to every listed peer we do not already track. The
// server sends the list to a new arrival so it initiates toward existing
// participants.
func (c *Coordinator) HandlePeers(ids []string) {
	for _, id := range ids {
		c.mu.Lock()
		_, exists := c.peers[id]
		c.mu.Unlock()
		if exists {
			continue
		}
		entry, err := c.createPeer(id)
		if err != nil {
			log.Error().Str("module", "rtc").Str("peer", id).Err(err).Msg("create peer")
			continue
		}
		offer, err := entry.pc.CreateOffer(nil)
		if err != nil {
			log.Error().Str("module", "rtc").Str("peer", id).Err(err).Msg("create offer")
			c.RemovePeer(id)
			continue
		}
		if err := entry.pc.SetLocalDescription(offer); err != nil {
			log.Error().Str("module", "rtc").Str("peer", id).Err(err).Msg("set local offer")
			c.RemovePeer(id)
			continue
		}
		if err := c.signaler.Send(protocol.OfferFrame(id, offer.SDP)); err != nil {
			log.Warn().Str("module", "rtc").Str("peer", id).Err(err).Msg("send offer")
		}
	}
}

// HandleOffer answers an incoming offer, creating the peer connection on
// first contact.
func (c *Coordinator) HandleOffer(from, sdp string) {
	if from == "" || sdp == "" {
		return
	}
	c.mu.Lock()
	entry, ok := c.peers[from]
	c.mu.Unlock()
	if !ok {
		var err error
		entry, err = c.createPeer(from)
		if err != nil {
			log.Error().Str("module", "rtc").Str("peer", from).Err(err).Msg("create peer for offer")
			return
		}
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := entry.pc.SetRemoteDescription(offer); err != nil {
		log.Error().Str("module", "rtc").Str("peer", from).Err(err).Msg("apply offer")
		return
	}
	answer, err := entry.pc.CreateAnswer(nil)
	if err != nil {
		log.Error().Str("module", "rtc").Str("peer", from).Err(err).Msg("create answer")
		return
	}
	if err := entry.pc.SetLocalDescription(answer); err != nil {
		log.Error().Str("module", "rtc").Str("peer", from).Err(err).Msg("set local answer")
		return
	}
	if err := c.signaler.Send(protocol.AnswerFrame(from, answer.SDP)); err != nil {
		log.Warn().Str("module", "rtc").Str("peer", from).Err(err).Msg("send answer")
	}
}

// HandleAnswer applies a remote answer to a connection this side offered.
// A late or duplicate answer with no connection is dropped.
func (c *Coordinator) HandleAnswer(from, sdp string) {
	c.mu.Lock()
	entry, ok := c.peers[from]
	c.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "rtc").Str("peer", from).Msg("answer for unknown peer, dropped")
		return
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := entry.pc.SetRemoteDescription(answer); err != nil {
		log.Error().Str("module", "rtc").Str("peer", from).Err(err).Msg("apply answer")
	}
}

// HandleCandidate applies a trickled ICE candidate. Malformed or late
// candidates are swallowed and logged; they must not end the session.
func (c *Coordinator) HandleCandidate(from string, raw json.RawMessage) {
	c.mu.Lock()
	entry, ok := c.peers[from]
	c.mu.Unlock()
	if !ok || len(raw) == 0 {
		return
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &ci); err != nil {
		log.Debug().Str("module", "rtc").Str("peer", from).Err(err).Msg("malformed candidate, dropped")
		return
	}
	if ci.Candidate == "" {
		return
	}
	if err := entry.pc.AddICECandidate(ci); err != nil {
		log.Warn().Str("module", "rtc").Str("peer", from).Err(err).Msg("add candidate")
	}
}

// RemovePeer closes and forgets a peer and its display slot. Idempotent:
// a second left for the same peer is a no-op.
func (c *Coordinator) RemovePeer(peerID string) {
	c.mu.Lock()
	entry, ok := c.peers[peerID]
	if ok {
		delete(c.peers, peerID)
		delete(c.remote, peerID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if err := entry.pc.Close(); err != nil {
		log.Debug().Str("module", "rtc").Str("peer", peerID).Err(err).Msg("close peer")
	}
	log.Info().Str("module", "rtc").Str("peer", peerID).Msg("peer removed")
}

// CloseAll tears every peer down. Called when the session socket closes.
func (c *Coordinator) CloseAll() {
	c.mu.Lock()
	entries := c.peers
	c.peers = make(map[string]*peerEntry)
	c.remote = make(map[string]RemoteTrack)
	c.mu.Unlock()
	for id, entry := range entries {
		if err := entry.pc.Close(); err != nil {
			log.Debug().Str("module", "rtc").Str("peer", id).Err(err).Msg("close peer")
		}
	}
}

// PeerCount reports the number of live peer connections.
func (c *Coordinator) PeerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.peers)
}

// HasPeer reports whether a connection exists for peerID.
func (c *Coordinator) HasPeer(peerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.peers[peerID]
	return ok
}

// RemoteTracks returns the current display slots.
func (c *Coordinator) RemoteTracks() []RemoteTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RemoteTrack, 0, len(c.remote))
	for _, rt := range c.remote {
		out = append(out, rt)
	}
	return out
}

// ReplaceVideoTrack swaps the outgoing video track on every active peer.
// Used for screen share start and end. A failure on one peer is logged and
// does not abort replacement for the others.
func (c *Coordinator) ReplaceVideoTrack(track webrtc.TrackLocal) {
	c.mu.Lock()
	senders := make(map[string]*webrtc.RTPSender, len(c.peers))
	for id, entry := range c.peers {
		if s, ok := entry.senders[webrtc.RTPCodecTypeVideo.String()]; ok {
			senders[id] = s
		}
	}
	c.mu.Unlock()
	for id, sender := range senders {
		if err := sender.ReplaceTrack(track); err != nil {
			log.Warn().Str("module", "rtc").Str("peer", id).Err(err).Msg("replace video track")
		}
	}
}

func (c *Coordinator) createPeer(peerID string) (*peerEntry, error) {
	pc, err := webrtc.NewPeerConnection(c.webCfg)
	if err != nil {
		return nil, err
	}
	entry := &peerEntry{pc: pc, senders: make(map[string]*webrtc.RTPSender)}

	if c.local != nil && c.local.Ready() {
		for _, track := range c.local.Tracks() {
			sender, aerr := pc.AddTrack(track)
			if aerr != nil {
				log.Warn().Str("module", "rtc").Str("peer", peerID).Err(aerr).Msg("add local track")
				continue
			}
			entry.senders[track.Kind().String()] = sender
		}
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		raw, merr := json.Marshal(cand.ToJSON())
		if merr != nil {
			return
		}
		if serr := c.signaler.Send(protocol.CandidateFrame(peerID, raw)); serr != nil {
			log.Debug().Str("module", "rtc").Str("peer", peerID).Err(serr).Msg("send candidate")
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		rt := RemoteTrack{
			PeerID:   peerID,
			TrackID:  track.ID(),
			StreamID: track.StreamID(),
			Kind:     track.Kind().String(),
		}
		c.mu.Lock()
		// Renegotiation replaces the prior slot for this peer.
		c.remote[peerID] = rt
		c.mu.Unlock()
		log.Info().Str("module", "rtc").Str("peer", peerID).Str("kind", rt.Kind).Msg("remote track attached")
		if c.OnRemoteTrack != nil {
			c.OnRemoteTrack(rt)
		}
	})

	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Debug().Str("module", "rtc").Str("peer", peerID).Str("state", st.String()).Msg("peer state")
		switch st {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			c.RemovePeer(peerID)
		}
	})

	c.mu.Lock()
	c.peers[peerID] = entry
	c.mu.Unlock()
	return entry, nil
}
