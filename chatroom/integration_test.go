package chatroom_test

import (
	"context"
	"testing"
	"time"

	"github.com/Eternal-Darkness-07/chat-Plus-Plus/chatroom"
	"github.com/Eternal-Darkness-07/chat-Plus-Plus/chatroom/chattest"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func hasLast(r *chatroom.Room, text string) bool {
	msgs := r.Messages()
	return msgs[len(msgs)-1].Text == text
}

func contains(r *chatroom.Room, m chatroom.DisplayMessage) bool {
	for _, got := range r.Messages() {
		if got == m {
			return true
		}
	}
	return false
}

func join(t *testing.T, cfg chatroom.Config, room, user string, store chatroom.SessionStore) *chatroom.Room {
	t.Helper()
	r, err := chatroom.NewRoom(cfg, room, user, store)
	if err != nil {
		t.Fatalf("new room %s: %v", user, err)
	}
	if err := r.Join(context.Background()); err != nil {
		t.Fatalf("join %s: %v", user, err)
	}
	waitFor(t, user+" joined", func() bool { return hasLast(r, "You joined Room "+room) })
	return r
}

func TestRoomAgainstServer(t *testing.T) {
	srv := chattest.NewServer()
	defer srv.Close()

	cfg := chatroom.DefaultConfig()
	cfg.URL = srv.WSURL()
	cfg.ReconnectDelay = 50 * time.Millisecond
	ctx := context.Background()

	aliceStore := chatroom.NewMemoryStore()
	alice := join(t, cfg, "room1", "alice", aliceStore)
	defer alice.Leave(ctx)
	if alice.State() != chatroom.RoomActive {
		t.Fatalf("alice state = %s", alice.State())
	}

	bobStore := chatroom.NewMemoryStore()
	bob := join(t, cfg, "room1", "bob", bobStore)
	waitFor(t, "join notice", func() bool { return hasLast(alice, "bob joined the room.") })

	if err := alice.Send(ctx, "hello bob"); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, "echo to alice", func() bool {
		return contains(alice, chatroom.DisplayMessage{Sender: chatroom.SenderSelf, Text: "hello bob", User: "alice"})
	})
	waitFor(t, "delivery to bob", func() bool {
		return contains(bob, chatroom.DisplayMessage{Sender: chatroom.SenderOther, Text: "hello bob", User: "alice"})
	})

	n := len(alice.Messages())
	srv.Hub.BroadcastRaw("room1", []byte("garbage"))
	srv.Hub.Broadcast("room1", map[string]any{"type": "info", "event": "join", "user": "zed"})
	waitFor(t, "zed notice", func() bool { return hasLast(alice, "zed joined the room.") })
	if got := len(alice.Messages()); got != n+1 {
		t.Fatalf("malformed frame changed the log: %d -> %d", n, got)
	}

	if err := bob.Leave(ctx); err != nil {
		t.Fatalf("bob leave: %v", err)
	}
	waitFor(t, "leave notice", func() bool { return hasLast(alice, "bob left the room.") })
	if _, ok, _ := bobStore.Load(); ok {
		t.Fatalf("bob's store not cleared")
	}

	rec, ok, _ := aliceStore.Load()
	if !ok || len(rec.Messages) != len(alice.Messages()) {
		t.Fatalf("alice's store out of step: %+v", rec)
	}
}

func TestRoomReconnectsAfterServerDrop(t *testing.T) {
	srv := chattest.NewServer()
	defer srv.Close()

	cfg := chatroom.DefaultConfig()
	cfg.URL = srv.WSURL()
	cfg.ReconnectDelay = 50 * time.Millisecond
	ctx := context.Background()

	alice := join(t, cfg, "room1", "alice", nil)
	defer alice.Leave(ctx)
	states := make(chan chatroom.ConnectionState, 32)
	alice.OnConnectionState(func(ev chatroom.StateEvent) { states <- ev.NewState })

	srv.Hub.DropAll()
	waitFor(t, "disconnect notice", func() bool {
		return contains(alice, chatroom.DisplayMessage{Sender: chatroom.SenderSystem, Text: "Disconnected from server."})
	})
	waitFor(t, "rejoin", func() bool { return hasLast(alice, "You joined Room room1") })
	waitFor(t, "active", func() bool { return alice.State() == chatroom.RoomActive })

	seenReconnecting := false
	for len(states) > 0 {
		if <-states == chatroom.StateReconnecting {
			seenReconnecting = true
		}
	}
	if !seenReconnecting {
		t.Fatalf("reconnecting state not reported")
	}

	if err := alice.Send(ctx, "back"); err != nil {
		t.Fatalf("send after reconnect: %v", err)
	}
	waitFor(t, "echo after reconnect", func() bool { return hasLast(alice, "back") })
}
