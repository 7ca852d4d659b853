package chatroom

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.Reconnect || cfg.ReconnectDelay != 3*time.Second {
		t.Fatalf("unexpected reconnect defaults: %+v", cfg)
	}
}

func TestEndpointEncodesParams(t *testing.T) {
	cfg := DefaultConfig()
	got, err := cfg.Endpoint("room 1&x", "Zoë Doe")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	want := "ws://localhost:8080/ws/chat?roomId=room%201%26x&username=Zo%C3%AB%20Doe"
	if got != want {
		t.Fatalf("endpoint = %s, want %s", got, want)
	}

	cfg.URL = "wss://chat.example.com/ws/chat?v=2"
	got, _ = cfg.Endpoint("r", "u")
	if got != "wss://chat.example.com/ws/chat?v=2&roomId=r&username=u" {
		t.Fatalf("endpoint with query = %s", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.URL = "" },
		func(c *Config) { c.URL = "http://localhost:8080/ws/chat" },
		func(c *Config) { c.URL = "ws://[::1" },
		func(c *Config) { c.ReconnectDelay = -time.Second },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		err := cfg.Validate()
		if !errors.Is(err, NewError(ErrorInvalidConfig, "")) {
			t.Fatalf("case %d: expected invalid config, got %v", i, err)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.yaml")
	data := []byte("url: wss://chat.example.com/ws/chat\nreconnect_delay: 1500ms\nread_timeout: 1m\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.URL != "wss://chat.example.com/ws/chat" || cfg.ReconnectDelay != 1500*time.Millisecond || cfg.ReadTimeout != time.Minute {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.APIBaseURL != "http://localhost:8080" || !cfg.Reconnect {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("url: [unclosed\n"), 0o600)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestErrorClassifiers(t *testing.T) {
	wrapped := WrapError(ErrorTransport, "dial failed", errors.New("refused"))
	if !IsTransportError(wrapped) || IsServerError(wrapped) || IsDecodeError(wrapped) {
		t.Fatalf("classification wrong for %v", wrapped)
	}
	if errors.Unwrap(wrapped).Error() != "refused" {
		t.Fatalf("unwrap: %v", errors.Unwrap(wrapped))
	}
	if ServerErrorCode(409) != ErrorReplaced || ServerErrorCode(500) != ErrorServer {
		t.Fatalf("server code mapping wrong")
	}
	if IsServerError(errors.New("plain")) {
		t.Fatalf("plain error classified as server error")
	}
	if ErrorSendRejected.String() != "send_rejected" {
		t.Fatalf("string = %s", ErrorSendRejected)
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	if _, ok, _ := s.Load(); ok {
		t.Fatalf("empty store reported a record")
	}
	msgs := []DisplayMessage{{Sender: SenderSystem, Text: "a"}}
	_ = s.Save(SessionRecord{Username: "u", RoomID: "r", Messages: msgs})
	msgs[0].Text = "mutated"

	rec, ok, _ := s.Load()
	if !ok || rec.Messages[0].Text != "a" {
		t.Fatalf("store kept caller slice: %+v", rec)
	}
	rec.Messages[0].Text = "mutated again"
	rec2, _, _ := s.Load()
	if rec2.Messages[0].Text != "a" {
		t.Fatalf("store returned shared slice")
	}
	_ = s.Clear()
	if _, ok, _ := s.Load(); ok {
		t.Fatalf("record survived clear")
	}
}
