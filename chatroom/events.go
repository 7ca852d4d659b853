package chatroom

// InfoKind names a membership notice.
type InfoKind string

const (
	InfoJoin   InfoKind = "join"   // another user entered
	InfoLeave  InfoKind = "leave"  // a user left
	InfoJoined InfoKind = "joined" // this client entered
)

// RoomEvent is a decoded inbound event: InfoEvent or ChatEvent.
type RoomEvent interface {
	roomEvent()
}

// InfoEvent emitted when someone joins or leaves.
type InfoEvent struct {
	Kind InfoKind
	User string
	Room string
	TS   int64
}

// ChatEvent emitted when someone sends message.
type ChatEvent struct {
	User    string
	Message string
	TS      int64
}

func (InfoEvent) roomEvent() {}
func (ChatEvent) roomEvent() {}
