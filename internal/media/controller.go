// Package media owns the local audio and video for one live-session mount.
// Peer connections read the tracks as senders; only the owning controller
// may stop the underlying devices, and it stops each exactly once.
package media

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrPermissionDenied = errors.New("camera or microphone permission denied")
	ErrNotReady         = errors.New("local media not acquired")
	ErrAlreadySharing   = errors.New("screen share already active")
)

// ReplaceFunc swaps the outgoing video track on every active peer. Wired to
// rtc.Coordinator.ReplaceVideoTrack.
type ReplaceFunc func(track webrtc.TrackLocal)

// Controller acquires camera and microphone on Start, exposes the mute and
// camera toggles (flag flips, no re-acquisition) and screen-share track
// substitution, and releases everything once on Close.
type Controller struct {
	provider Provider
	replace  ReplaceFunc

	mu        sync.Mutex
	camDev    Device
	micDev    Device
	screenDev Device
	camTrack  webrtc.TrackLocal
	micTrack  webrtc.TrackLocal
	micOn     bool
	cameraOn  bool
	sharing   bool
	denied    bool
	closed    bool
}

func NewController(provider Provider, replace ReplaceFunc) *Controller {
	return &Controller{provider: provider, replace: replace}
}

// SetReplace wires the peer-side track replacement after construction,
// breaking the controller/coordinator construction cycle.
func (c *Controller) SetReplace(fn ReplaceFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replace = fn
}

// Start acquires audio and video. On failure the controller enters a
// permission-denied state: media controls are disabled but the session can
// continue receive-only.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotReady
	}

	camDev, err := c.provider.Camera()
	if err != nil {
		c.denied = true
		log.Warn().Str("module", "media").Err(err).Msg("camera acquisition failed")
		return ErrPermissionDenied
	}
	micDev, err := c.provider.Microphone()
	if err != nil {
		_ = camDev.Close()
		c.denied = true
		log.Warn().Str("module", "media").Err(err).Msg("microphone acquisition failed")
		return ErrPermissionDenied
	}

	camTrack, err := camDev.Open()
	if err != nil {
		_ = camDev.Close()
		_ = micDev.Close()
		c.denied = true
		return ErrPermissionDenied
	}
	micTrack, err := micDev.Open()
	if err != nil {
		_ = camDev.Close()
		_ = micDev.Close()
		c.denied = true
		return ErrPermissionDenied
	}

	c.camDev, c.micDev = camDev, micDev
	c.camTrack, c.micTrack = camTrack, micTrack
	c.micOn, c.cameraOn = true, true
	log.Info().Str("module", "media").Msg("local media acquired")
	return nil
}

// Ready reports whether local tracks exist. Implements rtc.TrackSource.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camTrack != nil && c.micTrack != nil && !c.closed
}

// Tracks returns the outgoing tracks. Implements rtc.TrackSource.
func (c *Controller) Tracks() []webrtc.TrackLocal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.camTrack == nil || c.micTrack == nil {
		return nil
	}
	return []webrtc.TrackLocal{c.micTrack, c.camTrack}
}

// Denied reports the permission-denied state for the UI layer.
func (c *Controller) Denied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.denied
}

// ToggleMic flips the outgoing-audio gate without re-acquiring the device
// and returns the new state.
func (c *Controller) ToggleMic() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.micTrack == nil {
		return false, ErrNotReady
	}
	c.micOn = !c.micOn
	return c.micOn, nil
}

// ToggleCamera flips the outgoing-video gate and returns the new state.
func (c *Controller) ToggleCamera() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.camTrack == nil {
		return false, ErrNotReady
	}
	c.cameraOn = !c.cameraOn
	return c.cameraOn, nil
}

func (c *Controller) MicOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.micOn
}

func (c *Controller) CameraOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cameraOn
}

// StartScreenShare substitutes the screen track for the camera track on
// every active peer.
func (c *Controller) StartScreenShare() error {
	c.mu.Lock()
	if c.camTrack == nil {
		c.mu.Unlock()
		return ErrNotReady
	}
	if c.sharing {
		c.mu.Unlock()
		return ErrAlreadySharing
	}
	dev, err := c.provider.Screen()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	track, err := dev.Open()
	if err != nil {
		_ = dev.Close()
		c.mu.Unlock()
		return err
	}
	c.screenDev = dev
	c.sharing = true
	replace := c.replace
	c.mu.Unlock()

	if replace != nil {
		replace(track)
	}
	log.Info().Str("module", "media").Msg("screen share started")
	return nil
}

// StopScreenShare restores the camera track on every active peer and
// releases the screen device. A stop without an active share is a no-op.
func (c *Controller) StopScreenShare() {
	c.mu.Lock()
	if !c.sharing {
		c.mu.Unlock()
		return
	}
	dev := c.screenDev
	cam := c.camTrack
	c.screenDev = nil
	c.sharing = false
	replace := c.replace
	c.mu.Unlock()

	if replace != nil && cam != nil {
		replace(cam)
	}
	if dev != nil {
		_ = dev.Close()
	}
	log.Info().Str("module", "media").Msg("screen share stopped")
}

// Close releases every acquired device exactly once. Safe to call twice;
// repeated mount/unmount cycles must not leak devices.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	devs := []Device{c.camDev, c.micDev, c.screenDev}
	c.camDev, c.micDev, c.screenDev = nil, nil, nil
	c.camTrack, c.micTrack = nil, nil
	c.sharing = false
	c.mu.Unlock()

	for _, d := range devs {
		if d != nil {
			if err := d.Close(); err != nil {
				log.Debug().Str("module", "media").Err(err).Msg("device close")
			}
		}
	}
}
