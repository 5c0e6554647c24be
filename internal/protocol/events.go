package protocol

import "encoding/json"

// Inbound tags per channel. Anything not listed here is ignored by the
// channel dispatchers (explicit ignored branch, never a crash).
const (
	// chat-notify
	TagNewMessage = "new_message"

	// notifications
	TagInit         = "init"
	TagNotification = "notification"
	TagMarked       = "marked"
	TagMarkedAll    = "marked_all"
	TagHistory      = "history"

	// course-notify
	TagSessionReminder = "session_reminder"
	TagLiveCreated     = "live_created"
	TagLiveStarted     = "live_started"
	TagLiveCancelled   = "live_cancelled"

	// live-session
	TagJoined       = "joined"
	TagParticipants = "participants"
	TagParticipant  = "participant"
	TagMute         = "mute"
	TagCamera       = "camera"
	TagHand         = "hand"
	TagReaction     = "reaction"
	TagSessionEnded = "session_ended"
	TagPeers        = "peers"
	TagOffer        = "offer"
	TagAnswer       = "answer"
	TagCandidate    = "candidate"
	TagLeft         = "left"

	// chat room
	TagChatMessage = "chat.message"
	TagChatOnline  = "chat.online"
	TagChatTyping  = "chat.typing"
)

// NewMessage announces a chat message in some room of the user.
type NewMessage struct {
	RoomID string `json:"room_id"`
}

// NotificationItem is one feed entry as the server serializes it.
type NotificationItem struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Kind      string `json:"kind"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// Init carries the initial unread + recent feed snapshot.
type Init struct {
	Unread []NotificationItem `json:"unread"`
	Recent []NotificationItem `json:"recent"`
}

type Marked struct {
	ID int64 `json:"id"`
}

// History is a fetched page of older feed entries.
type History struct {
	Page  int                `json:"page"`
	Items []NotificationItem `json:"items"`
}

// CourseEvent covers every course-notify tag; unused fields stay zero.
type CourseEvent struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	CourseID  string `json:"course_id"`
	Title     string `json:"title"`
	StartsAt  string `json:"starts_at"`
	JoinURL   string `json:"join_url"`
}

// Participant is one roster entry as broadcast by the live-session server.
type Participant struct {
	UserID     int64  `json:"user_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	IsMuted    bool   `json:"is_muted"`
	HandRaised bool   `json:"hand_raised"`
	CameraOn   bool   `json:"camera_on"`
}

// Joined is sent back to the joining user only, carrying their role.
type Joined struct {
	Role   string `json:"role"`
	UserID int64  `json:"user_id"`
}

type Participants struct {
	Participants []Participant `json:"participants"`
}

// ParticipantEvent wraps joined/left roster broadcasts.
type ParticipantEvent struct {
	Event       string       `json:"event"`
	UserID      int64        `json:"user_id"`
	Participant *Participant `json:"participant"`
}

type MuteEvent struct {
	UserID  int64 `json:"user_id"`
	IsMuted bool  `json:"is_muted"`
}

type HandEvent struct {
	UserID     int64 `json:"user_id"`
	HandRaised bool  `json:"hand_raised"`
}

type CameraEvent struct {
	UserID   int64 `json:"user_id"`
	CameraOn bool  `json:"camera_on"`
}

type ReactionEvent struct {
	UserID int64  `json:"user_id"`
	Emoji  string `json:"emoji"`
}

type SessionEnded struct {
	SessionID string `json:"session_id"`
}

// Peers lists already-present peer ids; the new arrival offers to each.
type Peers struct {
	IDs []string `json:"ids"`
}

// Signal is one WebRTC signaling frame. From is assigned by the server on
// the way in; To addresses the remote peer on the way out.
type Signal struct {
	Type      string          `json:"type"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type Left struct {
	PeerID string `json:"peerId"`
}

// ChatMessage is a message inside an open chat room.
type ChatMessage struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type ChatOnline struct {
	Users []string `json:"users"`
}

type ChatTyping struct {
	Username string `json:"username"`
}

// Outbound frames. Only the tag field is required by the codec.

func JoinFrame() any  { return map[string]string{"type": "join"} }
func LeaveFrame() any { return map[string]string{"type": "leave"} }

func MarkReadFrame(id int64) any {
	return map[string]any{"action": "mark_read", "id": id}
}

func MarkAllReadFrame() any {
	return map[string]any{"action": "mark_all_read"}
}

func FetchHistoryFrame(page int) any {
	return map[string]any{"action": "fetch", "page": page}
}

func ToggleMuteFrame(muted bool) any {
	return map[string]any{"type": "toggle-mute", "muted": muted}
}

func ToggleCameraFrame(on bool) any {
	return map[string]any{"type": "toggle-camera", "camera_on": on}
}

func ToggleHandFrame(raised bool) any {
	return map[string]any{"type": "toggle-hand", "raised": raised}
}

func ReactionFrame(emoji string) any {
	return map[string]any{"type": "reaction", "emoji": emoji}
}

func OfferFrame(to, sdp string) Signal {
	return Signal{Type: TagOffer, To: to, SDP: sdp}
}

func AnswerFrame(to, sdp string) Signal {
	return Signal{Type: TagAnswer, To: to, SDP: sdp}
}

func CandidateFrame(to string, candidate json.RawMessage) Signal {
	return Signal{Type: TagCandidate, To: to, Candidate: candidate}
}
