package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Eternal-Darkness-07/chat-Plus-Plus/chatroom/chattest"
)

func TestCreateAndActivateRoom(t *testing.T) {
	srv := chattest.NewServer()
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	id, err := c.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if len(id) != 16 {
		t.Fatalf("room id %q has length %d", id, len(id))
	}
	if srv.Hub.IsActive(id) {
		t.Fatalf("room active before activation")
	}
	if err := c.ActivateRoom(context.Background(), id); err != nil {
		t.Fatalf("activate room: %v", err)
	}
	if !srv.Hub.IsActive(id) {
		t.Fatalf("room not active after activation")
	}
}

func TestActivateRoomEmptyID(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	if err := c.ActivateRoom(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty room id")
	}
}

func TestAPIErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid or missing 'roomId'"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).ActivateRoom(context.Background(), "abc")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || !strings.Contains(apiErr.Message, "roomId") {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestCreateRoomEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).CreateRoom(context.Background()); err == nil {
		t.Fatalf("expected error for empty room id")
	}
}
