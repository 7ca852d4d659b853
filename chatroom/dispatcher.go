package chatroom

import (
	"encoding/json"
	"fmt"
)

// Decode parses one raw inbound frame.
// Unknown types or events and missing required fields yield an ErrorDecode
// error; a server "error" frame yields a server error (see IsServerError).
func Decode(raw []byte) (RoomEvent, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, WrapError(ErrorDecode, "invalid JSON", err)
	}
	switch f.Type {
	case frameInfo:
		return decodeInfo(f)
	case frameChat:
		if f.User == nil || *f.User == "" || f.Message == nil {
			return nil, NewError(ErrorDecode, "chat frame requires user and message")
		}
		return ChatEvent{User: *f.User, Message: *f.Message, TS: f.Timestamp}, nil
	case frameError:
		msg := ""
		if f.Message != nil {
			msg = *f.Message
		}
		return nil, NewError(ServerErrorCode(f.Code), msg)
	default:
		return nil, NewError(ErrorDecode, fmt.Sprintf("unknown frame type %q", f.Type))
	}
}

func decodeInfo(f Frame) (RoomEvent, error) {
	ev := InfoEvent{Kind: InfoKind(f.Event), TS: f.Timestamp}
	if f.User != nil {
		ev.User = *f.User
	}
	if f.Room != nil {
		ev.Room = *f.Room
	}
	switch ev.Kind {
	case InfoJoin, InfoLeave:
		if ev.User == "" {
			return nil, NewError(ErrorDecode, string(ev.Kind)+" notice requires user")
		}
	case InfoJoined:
		if ev.Room == "" {
			return nil, NewError(ErrorDecode, "joined notice requires room")
		}
	default:
		return nil, NewError(ErrorDecode, fmt.Sprintf("unknown info event %q", f.Event))
	}
	return ev, nil
}

// Dispatcher routes decoded frames to registered callbacks.
// Frames are dispatched in arrival order, once each, on the caller's goroutine.
type Dispatcher struct {
	onInfo  func(InfoEvent)
	onChat  func(ChatEvent)
	onError func(error)
	onDrop  func(raw []byte, err error)
}

func (d *Dispatcher) SetOnInfo(fn func(InfoEvent))     { d.onInfo = fn }
func (d *Dispatcher) SetOnChat(fn func(ChatEvent))     { d.onChat = fn }
func (d *Dispatcher) SetOnError(fn func(error))        { d.onError = fn }
func (d *Dispatcher) SetOnDrop(fn func([]byte, error)) { d.onDrop = fn }

// Dispatch decodes raw and invokes the matching callback.
// Malformed frames go to the drop callback and nowhere else.
func (d *Dispatcher) Dispatch(raw []byte) {
	ev, err := Decode(raw)
	if err != nil {
		if IsServerError(err) {
			if d.onError != nil {
				d.onError(err)
			}
			return
		}
		if d.onDrop != nil {
			d.onDrop(raw, err)
		}
		return
	}
	switch ev := ev.(type) {
	case InfoEvent:
		if d.onInfo != nil {
			d.onInfo(ev)
		}
	case ChatEvent:
		if d.onChat != nil {
			d.onChat(ev)
		}
	}
}
