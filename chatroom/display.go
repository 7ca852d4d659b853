package chatroom

import "fmt"

// Sender classifies a DisplayMessage for rendering.
type Sender string

const (
	SenderSystem Sender = "system"
	SenderSelf   Sender = "user"
	SenderOther  Sender = "other"
)

// DisplayMessage is one line of the room log as a user sees it.
type DisplayMessage struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
	User   string `json:"user,omitempty"`
}

const (
	textDisconnected    = "Disconnected from server."
	textConnectionError = "Connection error occurred."
)

func systemMessage(text string) DisplayMessage {
	return DisplayMessage{Sender: SenderSystem, Text: text}
}

func welcomeMessage(username string) DisplayMessage {
	return systemMessage("Welcome to Room " + username)
}

func infoMessage(ev InfoEvent) DisplayMessage {
	switch ev.Kind {
	case InfoJoin:
		return systemMessage(fmt.Sprintf("%s joined the room.", ev.User))
	case InfoLeave:
		return systemMessage(fmt.Sprintf("%s left the room.", ev.User))
	default:
		return systemMessage(fmt.Sprintf("You joined Room %s", ev.Room))
	}
}

// chatMessage recognizes our own lines by the server's echo of our username.
func chatMessage(ev ChatEvent, username string) DisplayMessage {
	sender := SenderOther
	if ev.User == username {
		sender = SenderSelf
	}
	return DisplayMessage{Sender: sender, Text: ev.Message, User: ev.User}
}
