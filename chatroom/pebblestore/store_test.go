package pebblestore

import (
	"reflect"
	"testing"

	"github.com/Eternal-Darkness-07/chat-Plus-Plus/chatroom"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "tab-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok, err := s.Load(); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	rec := chatroom.SessionRecord{
		Username: "alice",
		RoomID:   "r1",
		Messages: []chatroom.DisplayMessage{
			{Sender: chatroom.SenderSystem, Text: "Welcome to Room alice"},
			{Sender: chatroom.SenderOther, Text: "hi", User: "bob"},
			{Sender: chatroom.SenderSelf, Text: "hey", User: "alice"},
		},
	}
	if err := s.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(dir, "tab-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, ok, err := s.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("got %+v, want %+v", got, rec)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.Load(); ok {
		t.Fatalf("record survived clear")
	}
}

func TestStoreScopesAreIndependent(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, "a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	_ = a.Save(chatroom.SessionRecord{Username: "alice", RoomID: "r1"})

	b := &Store{db: a.db, scope: "b"}
	if _, ok, _ := b.Load(); ok {
		t.Fatalf("scope b sees scope a")
	}
}

func TestRoomRestoresFromPebble(t *testing.T) {
	s, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	first, err := chatroom.NewRoom(chatroom.DefaultConfig(), "r1", "alice", s)
	if err != nil {
		t.Fatalf("new room: %v", err)
	}
	resumed, err := chatroom.ResumeRoom(chatroom.DefaultConfig(), s)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !reflect.DeepEqual(resumed.Messages(), first.Messages()) {
		t.Fatalf("resumed %+v, want %+v", resumed.Messages(), first.Messages())
	}
}
