package media

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Device is one capture source (camera, microphone, screen). Open acquires
// it and yields the outgoing track; Close releases it. A device is opened
// and closed at most once by the owning controller.
type Device interface {
	Open() (webrtc.TrackLocal, error)
	Close() error
}

// Provider hands out the user's devices. Acquisition errors surface as a
// permission-denied state on the controller, never as a crash.
type Provider interface {
	Camera() (Device, error)
	Microphone() (Device, error)
	Screen() (Device, error)
}

// sampleDevice is a Device over a static sample track. Capture pipelines
// feed the track from outside; the controller only owns the lifecycle.
type sampleDevice struct {
	track  *webrtc.TrackLocalStaticSample
	closed bool
}

func newSampleDevice(mimeType, id, stream string) (*sampleDevice, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType}, id, stream)
	if err != nil {
		return nil, err
	}
	return &sampleDevice{track: track}, nil
}

func (d *sampleDevice) Open() (webrtc.TrackLocal, error) {
	return d.track, nil
}

func (d *sampleDevice) Close() error {
	d.closed = true
	return nil
}

// SampleProvider is the default provider: VP8 video and Opus audio sample
// tracks, one stream id per provider instance.
type SampleProvider struct {
	streamID string
}

func NewSampleProvider() *SampleProvider {
	return &SampleProvider{streamID: uuid.NewString()}
}

func (p *SampleProvider) Camera() (Device, error) {
	return newSampleDevice(webrtc.MimeTypeVP8, "camera", p.streamID)
}

func (p *SampleProvider) Microphone() (Device, error) {
	return newSampleDevice(webrtc.MimeTypeOpus, "microphone", p.streamID)
}

func (p *SampleProvider) Screen() (Device, error) {
	return newSampleDevice(webrtc.MimeTypeVP8, "screen", p.streamID)
}
