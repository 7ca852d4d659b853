package chatroom

import (
	"context"
	"strings"
	"sync"
)

// Room is the client side of one user in one chat room. It owns a Session
// with reconnection enabled, turns its events into DisplayMessages and keeps
// the SessionStore in step with every change.
//
// The server is the only source of chat lines: Send does not append anything
// locally. A sent line appears once the server echoes it back, and is shown
// as SenderSelf because the echoed user matches ours.
type Room struct {
	roomID   string
	username string
	store    SessionStore
	link     Link
	session  *Session // nil when the link is not a Session
	done     chan struct{}
	stop     chan struct{}

	dispatcher Dispatcher

	mu       sync.Mutex
	logger   Logger
	state    RoomState
	messages []DisplayMessage
	pending  []func()
	flushing bool
	closed   bool

	onMessage func(DisplayMessage)
	onState   func(RoomStateEvent)
	onError   func(error)
}

// NewRoom builds a controller for username in roomID. A record in store for the
// same room and user is restored; otherwise the log starts with a welcome line.
// A nil store means a fresh MemoryStore. The room is not joined until Join.
func NewRoom(cfg Config, roomID, username string, store SessionStore, opts ...SessionOption) (*Room, error) {
	if roomID == "" || username == "" {
		return nil, NewError(ErrorValidation, "room id and username are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint, err := cfg.Endpoint(roomID, username)
	if err != nil {
		return nil, err
	}
	cfg.Reconnect = true
	s := NewSession(cfg, endpoint, opts...)
	r, err := newRoom(roomID, username, store, s)
	if err != nil {
		return nil, err
	}
	r.session = s
	return r, nil
}

// ResumeRoom rebuilds the controller from the record held in store,
// taking room id and username from it.
func ResumeRoom(cfg Config, store SessionStore, opts ...SessionOption) (*Room, error) {
	if store == nil {
		return nil, NewError(ErrorStore, "no session store")
	}
	rec, ok, err := store.Load()
	if err != nil {
		return nil, WrapError(ErrorStore, "load session", err)
	}
	if !ok || rec.RoomID == "" || rec.Username == "" {
		return nil, NewError(ErrorStore, "no saved session")
	}
	return NewRoom(cfg, rec.RoomID, rec.Username, store, opts...)
}

func newRoom(roomID, username string, store SessionStore, link Link) (*Room, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	r := &Room{
		roomID:   roomID,
		username: username,
		store:    store,
		link:     link,
		logger:   noopLogger{},
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}

	rec, ok, err := store.Load()
	if err != nil {
		return nil, WrapError(ErrorStore, "load session", err)
	}
	if ok && rec.RoomID == roomID && rec.Username == username {
		r.messages = append(r.messages, rec.Messages...)
	}
	if len(r.messages) == 0 {
		r.messages = []DisplayMessage{welcomeMessage(username)}
	}
	if err := r.store.Save(r.recordLocked()); err != nil {
		return nil, WrapError(ErrorStore, "save session", err)
	}

	r.dispatcher.SetOnInfo(func(ev InfoEvent) { r.appendLocked(infoMessage(ev)) })
	r.dispatcher.SetOnChat(func(ev ChatEvent) { r.appendLocked(chatMessage(ev, r.username)) })
	r.dispatcher.SetOnError(func(err error) {
		r.logger.Warn("server error", map[string]any{"error": err.Error()})
		r.errorLocked(err)
	})
	r.dispatcher.SetOnDrop(func(raw []byte, err error) {
		r.logger.Warn("frame dropped", map[string]any{"frame": string(raw), "error": err.Error()})
	})
	return r, nil
}

// SetLogger overrides logger (optional).
func (r *Room) SetLogger(l Logger) {
	if l == nil {
		return
	}
	r.mu.Lock()
	r.logger = l
	r.mu.Unlock()
	if r.session != nil {
		r.session.SetLogger(l)
	}
}

// OnMessage registers callback for every appended DisplayMessage.
func (r *Room) OnMessage(fn func(DisplayMessage)) {
	r.mu.Lock()
	r.onMessage = fn
	r.mu.Unlock()
}

// OnStateChanged registers callback for controller transitions.
func (r *Room) OnStateChanged(fn func(RoomStateEvent)) {
	r.mu.Lock()
	r.onState = fn
	r.mu.Unlock()
}

// OnError registers callback for server, transport and store errors.
func (r *Room) OnError(fn func(error)) {
	r.mu.Lock()
	r.onError = fn
	r.mu.Unlock()
}

// OnConnectionState registers callback for the underlying Session.
func (r *Room) OnConnectionState(fn func(StateEvent)) {
	if r.session != nil {
		r.session.OnStateChanged(fn)
	}
}

func (r *Room) RoomID() string   { return r.roomID }
func (r *Room) Username() string { return r.username }

// Done is closed when the room has been left; callers navigate away.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Messages returns a copy of the log in arrival order.
func (r *Room) Messages() []DisplayMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DisplayMessage(nil), r.messages...)
}

// Record returns a copy of the current session record.
func (r *Room) Record() SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyRecord(r.recordLocked())
}

// Join connects and starts processing events. Calls after the first are no-ops.
func (r *Room) Join(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return NewError(ErrorTransport, "room closed")
	}
	switch r.state {
	case RoomLeft:
		r.mu.Unlock()
		return ErrLeft
	case RoomUninitialized:
	default:
		r.mu.Unlock()
		return nil
	}
	r.transitionLocked(RoomJoining)
	r.mu.Unlock()
	r.flush()

	if err := r.link.Connect(ctx); err != nil {
		return err
	}
	go r.run()
	return nil
}

// Send posts text to the room. Blank text is rejected before anything is
// written, and nothing is added to the log until the server echoes it.
func (r *Room) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if r.State() == RoomLeft {
		return ErrLeft
	}
	return r.link.Send(ctx, NewChatMessage(text))
}

// Leave announces departure, closes the connection for good and clears the
// store. Events still in flight are discarded. Safe to call more than once.
func (r *Room) Leave(ctx context.Context) error {
	r.mu.Lock()
	if r.state == RoomLeft {
		r.mu.Unlock()
		return nil
	}
	r.transitionLocked(RoomLeft)
	close(r.done)
	logger := r.logger
	r.mu.Unlock()
	r.flush()

	if err := r.link.Send(ctx, NewLeaveMessage(r.username, r.roomID)); err != nil {
		logger.Warn("leave notice not sent", map[string]any{"error": err.Error()})
	}
	if err := r.link.Close(); err != nil {
		logger.Debug("close", map[string]any{"error": err.Error()})
	}
	if err := r.store.Clear(); err != nil {
		return WrapError(ErrorStore, "clear session", err)
	}
	return nil
}

// Close drops the connection without leaving: no leave notice is sent and
// the store keeps the record, so a later Room can pick the session up again.
// This is what closing the tab does. Safe to call more than once.
func (r *Room) Close() error {
	r.mu.Lock()
	if r.closed || r.state == RoomLeft {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.stop)
	r.mu.Unlock()
	return r.link.Close()
}

func (r *Room) run() {
	events := r.link.Events()
	for {
		select {
		case <-r.done:
			return
		case <-r.stop:
			return
		case ev := <-events:
			r.handle(ev)
		}
	}
}

// handle applies one transport event. Events are handled one at a time.
func (r *Room) handle(ev Event) {
	r.mu.Lock()
	if r.state == RoomLeft || r.closed {
		r.mu.Unlock()
		return
	}
	switch ev.Kind {
	case EventOpen:
		r.transitionLocked(RoomActive)
	case EventFrame:
		r.dispatcher.Dispatch(ev.Frame)
	case EventClose:
		r.appendLocked(systemMessage(textDisconnected))
		r.transitionLocked(RoomDisconnected)
	case EventError:
		r.appendLocked(systemMessage(textConnectionError))
		if ev.Err != nil {
			r.errorLocked(ev.Err)
		}
	}
	r.mu.Unlock()
	r.flush()
}

func (r *Room) recordLocked() SessionRecord {
	return SessionRecord{Username: r.username, RoomID: r.roomID, Messages: r.messages}
}

func (r *Room) appendLocked(m DisplayMessage) {
	r.messages = append(r.messages, m)
	if err := r.store.Save(r.recordLocked()); err != nil {
		r.logger.Error("save session", map[string]any{"error": err.Error()})
		r.errorLocked(WrapError(ErrorStore, "save session", err))
	}
	if fn := r.onMessage; fn != nil {
		r.pending = append(r.pending, func() { fn(m) })
	}
}

func (r *Room) transitionLocked(to RoomState) {
	from := r.state
	if from == to {
		return
	}
	r.state = to
	if fn := r.onState; fn != nil {
		r.pending = append(r.pending, func() { fn(RoomStateEvent{OldState: from, NewState: to}) })
	}
}

func (r *Room) errorLocked(err error) {
	if fn := r.onError; fn != nil {
		r.pending = append(r.pending, func() { fn(err) })
	}
}

// flush runs queued callbacks outside the lock, in queue order. A callback
// that calls back into the Room only queues; the active flusher drains it.
func (r *Room) flush() {
	r.mu.Lock()
	if r.flushing {
		r.mu.Unlock()
		return
	}
	r.flushing = true
	for len(r.pending) > 0 {
		p := r.pending
		r.pending = nil
		r.mu.Unlock()
		for _, fn := range p {
			fn()
		}
		r.mu.Lock()
	}
	r.flushing = false
	r.mu.Unlock()
}
