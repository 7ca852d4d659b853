package chatroom

const (
	frameInfo  = "info"
	frameChat  = "chat"
	frameError = "error"
	frameLeave = "leave"
)

// Frame is the envelope server -> client.
// Pointer fields distinguish an absent key from an empty value.
type Frame struct {
	Type      string  `json:"type"`
	Event     string  `json:"event,omitempty"`
	User      *string `json:"user,omitempty"`
	Room      *string `json:"room,omitempty"`
	Message   *string `json:"message,omitempty"`
	Code      int     `json:"code,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// OutboundMessage is the envelope client -> server.
// Build it with NewChatMessage or NewLeaveMessage.
type OutboundMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	User    string `json:"user,omitempty"`
	Room    string `json:"room,omitempty"`
}

// NewChatMessage posts text to the room.
func NewChatMessage(text string) OutboundMessage {
	return OutboundMessage{Type: frameChat, Message: text}
}

// NewLeaveMessage announces that user is leaving room.
func NewLeaveMessage(user, room string) OutboundMessage {
	return OutboundMessage{Type: frameLeave, User: user, Room: room}
}
