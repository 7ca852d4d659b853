// Package chattest runs an in-process chat room server that speaks the same
// protocol as the production backend, for tests and local demos.
package chattest

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	maxMessageLength = 1000
	maxPerMinute     = 20
	roomIDLength     = 16
	roomIDAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	writeTimeout     = 5 * time.Second
)

type client struct {
	ws   *websocket.Conn
	room string
	user string

	writeMu sync.Mutex
	sent    []time.Time
}

func (c *client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.ws, v)
}

func (c *client) writeRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Hub holds rooms and their connections.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*client]struct{}
	users  map[string]*client
	active map[string]struct{}
	log    zerolog.Logger
	now    func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		rooms:  map[string]map[*client]struct{}{},
		users:  map[string]*client{},
		active: map[string]struct{}{},
		log:    zerolog.Nop(),
		now:    time.Now,
	}
}

// SetLogger replaces the default no-op logger.
func (h *Hub) SetLogger(l zerolog.Logger) { h.log = l }

// Handler routes the provisioning API and the websocket endpoint.
func (h *Hub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/Chat/CreateRoomId", h.createRoom)
	r.Post("/Chat/ActiveRoomId", h.activateRoom)
	r.Get("/ws/chat", h.serveWS)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Hub) createRoom(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	var id string
	for {
		id = randomRoomID()
		if _, used := h.active[id]; !used {
			break
		}
	}
	h.mu.Unlock()
	h.log.Info().Str("room", id).Msg("[chattest] generated room id")
	writeJSON(w, http.StatusOK, map[string]string{"roomId": id})
}

func (h *Hub) activateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID *string `json:"roomId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid or missing 'roomId'"})
		return
	}
	h.mu.Lock()
	h.active[*req.RoomID] = struct{}{}
	h.mu.Unlock()
	h.log.Info().Str("room", *req.RoomID).Msg("[chattest] activated room id")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Room ID activated successfully."})
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("[chattest] accept")
		return
	}
	q := r.URL.Query()
	c := &client{ws: ws, room: q.Get("roomId"), user: q.Get("username")}
	if c.room == "" || c.user == "" {
		_ = c.write(errorFrame("Room and username parameters are required.", 400))
		_ = ws.Close(websocket.StatusPolicyViolation, "missing parameters")
		return
	}

	replaced := h.register(c)
	if !replaced {
		h.broadcast(c.room, map[string]any{"type": "info", "event": "join", "user": c.user, "timestamp": h.now().Unix()}, c)
		_ = c.write(map[string]any{"type": "info", "event": "joined", "room": c.room})
	}

	ctx := r.Context()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			h.unregister(c)
			return
		}
		h.handleFrame(c, data)
	}
}

// register adds c. A previous connection of the same user is kicked and the
// newcomer is treated as a reconnect (no join notice).
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	old, replaced := h.users[c.user]
	if replaced {
		h.removeLocked(old)
	}
	if h.rooms[c.room] == nil {
		h.rooms[c.room] = map[*client]struct{}{}
	}
	h.rooms[c.room][c] = struct{}{}
	h.users[c.user] = c
	h.mu.Unlock()

	if replaced {
		h.log.Info().Str("user", c.user).Str("room", c.room).Msg("[chattest] user reconnected")
		_ = old.write(errorFrame("You have been disconnected due to a new connection.", 409))
		_ = old.ws.Close(websocket.StatusPolicyViolation, "replaced")
	}
	return replaced
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *client) {
	if set := h.rooms[c.room]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, c.room)
		}
	}
	if h.users[c.user] == c {
		delete(h.users, c.user)
	}
}

func (h *Hub) handleFrame(c *client, data []byte) {
	if !h.allow(c) {
		_ = c.write(errorFrame("Rate limit exceeded. Please wait before sending more messages.", 429))
		return
	}

	var msg struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		User    string `json:"user"`
		Room    string `json:"room"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		// Non-JSON payloads are plain chat text.
		msg.Type, msg.Message = "chat", string(data)
	}
	if msg.Type == "" {
		msg.Type = "chat"
	}

	switch msg.Type {
	case "chat":
		if msg.Message == "" || len(msg.Message) > maxMessageLength {
			_ = c.write(errorFrame("Message must be 1-1000 characters", 400))
			return
		}
		if !utf8.ValidString(msg.Message) {
			_ = c.write(errorFrame("Message is not valid UTF-8", 400))
			return
		}
		h.broadcast(c.room, map[string]any{"type": "chat", "user": c.user, "message": msg.Message, "timestamp": h.now().Unix()}, nil)
	case "leave":
		if msg.Room == "" || msg.User == "" {
			_ = c.write(errorFrame("Room and username are required for leave message", 400))
			return
		}
		h.log.Info().Str("user", c.user).Str("room", c.room).Msg("[chattest] user left")
		h.unregister(c)
		h.broadcast(c.room, map[string]any{"type": "info", "event": "leave", "user": c.user, "timestamp": h.now().Unix()}, nil)
	default:
		_ = c.write(errorFrame("Unknown message type: "+msg.Type, 400))
	}
}

// allow applies the per-connection limit of maxPerMinute frames.
func (h *Hub) allow(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	keep := c.sent[:0]
	for _, t := range c.sent {
		if now.Sub(t) < time.Minute {
			keep = append(keep, t)
		}
	}
	c.sent = keep
	if len(c.sent) >= maxPerMinute {
		return false
	}
	c.sent = append(c.sent, now)
	return true
}

func (h *Hub) members(room string, exclude *client) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c != exclude {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) broadcast(room string, v any, exclude *client) {
	for _, c := range h.members(room, exclude) {
		if err := c.write(v); err != nil {
			h.log.Debug().Err(err).Str("user", c.user).Msg("[chattest] write")
		}
	}
}

// Broadcast sends v as JSON to everyone in room.
func (h *Hub) Broadcast(room string, v any) { h.broadcast(room, v, nil) }

// BroadcastRaw sends data unmodified, e.g. a malformed frame.
func (h *Hub) BroadcastRaw(room string, data []byte) {
	for _, c := range h.members(room, nil) {
		_ = c.writeRaw(data)
	}
}

// Users lists the connected users of room, sorted.
func (h *Hub) Users(room string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	users := make([]string, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		users = append(users, c.user)
	}
	sort.Strings(users)
	return users
}

// IsActive reports whether roomID was activated.
func (h *Hub) IsActive(roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.active[roomID]
	return ok
}

// DropAll closes every connection, as a server restart would.
func (h *Hub) DropAll() {
	h.mu.Lock()
	var all []*client
	for _, set := range h.rooms {
		for c := range set {
			all = append(all, c)
		}
	}
	h.rooms = map[string]map[*client]struct{}{}
	h.users = map[string]*client{}
	h.mu.Unlock()
	for _, c := range all {
		_ = c.ws.Close(websocket.StatusGoingAway, "server restart")
	}
}

func errorFrame(msg string, code int) map[string]any {
	return map[string]any{"type": "error", "message": msg, "code": code}
}

func randomRoomID() string {
	var b strings.Builder
	size := big.NewInt(int64(len(roomIDAlphabet)))
	for i := 0; i < roomIDLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			panic(err)
		}
		b.WriteByte(roomIDAlphabet[n.Int64()])
	}
	return b.String()
}

// Server is a Hub behind an httptest.Server.
type Server struct {
	*httptest.Server
	Hub *Hub
}

// NewServer starts a server on a loopback port. Call Close when done.
func NewServer() *Server {
	hub := NewHub()
	return &Server{Server: httptest.NewServer(hub.Handler()), Hub: hub}
}

// WSURL is the websocket endpoint, without query parameters.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/chat"
}
