// Package protocol implements the JSON envelope codec shared by every
// realtime channel. Frames are text messages of the form {"type": ...} or
// {"event": ...} with a tag-specific payload alongside the tag.
package protocol

import (
	"encoding/json"
	"errors"
)

var (
	ErrBadFrame = errors.New("frame is not a JSON object")
	ErrNoTag    = errors.New("frame has no type or event tag")
)

// Envelope is one decoded inbound frame. Raw keeps the full frame so the
// channel can decode the tag-specific payload lazily.
type Envelope struct {
	Type  string `json:"type"`
	Event string `json:"event"`

	Raw json.RawMessage `json:"-"`
}

// Tag returns the discriminator of the frame. The chat-notify and
// course-notify servers tag with "event", everything else with "type";
// "type" wins when both are present.
func (e Envelope) Tag() string {
	if e.Type != "" {
		return e.Type
	}
	return e.Event
}

// Decode parses one inbound text frame. Callers drop (and log) frames that
// fail here; a bad frame must never take the channel down.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, ErrBadFrame
	}
	if env.Tag() == "" {
		return Envelope{}, ErrNoTag
	}
	env.Raw = data
	return env, nil
}

// Payload decodes the tag-specific fields of the frame into v.
func (e Envelope) Payload(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// Encode builds an outbound frame. Outgoing shape is not validated beyond
// the tag being present, per protocol policy.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
