package chatroom

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"

	"github.com/Eternal-Darkness-07/chat-Plus-Plus/chatroom/internal"
)

// Conn is one physical connection to the room endpoint.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, v any) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens connections. The default dials with coder/websocket.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct {
	cfg Config
}

func (d wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, err := internal.Dial(ctx, url, d.cfg.ReadTimeout, d.cfg.WriteTimeout)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// EventKind tags a transport notification.
type EventKind int

const (
	EventOpen EventKind = iota
	EventFrame
	EventClose
	EventError
)

// Event is a transport notification, delivered in order on Session.Events.
type Event struct {
	Kind   EventKind
	Frame  []byte               // EventFrame
	Code   websocket.StatusCode // EventClose
	Reason string               // EventClose
	Err    error                // EventError, and EventClose when abnormal
}

// Link is what a Room needs from its transport.
type Link interface {
	Connect(ctx context.Context) error
	Events() <-chan Event
	Send(ctx context.Context, msg OutboundMessage) error
	Close() error
}

const eventBuffer = 64

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) SessionOption {
	return func(s *Session) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithClock replaces the clock driving the reconnect timer.
func WithClock(c clock.Clock) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// Session owns at most one connection at a time and reconnects after a
// fixed delay when the connection ends without Close being called.
type Session struct {
	url    string
	cfg    Config
	dialer Dialer
	clock  clock.Clock
	logger Logger
	events chan Event
	done   chan struct{}

	mu          sync.Mutex
	state       ConnectionState
	conn        Conn
	started     bool
	closed      bool
	timer       *clock.Timer
	cancel      context.CancelFunc
	closeCode   websocket.StatusCode
	closeReason string
	onState     func(StateEvent)
	onDropped   func(OutboundMessage)

	writeMu sync.Mutex
}

// NewSession prepares a session for url. Nothing is dialed until Connect.
func NewSession(cfg Config, url string, opts ...SessionOption) *Session {
	s := &Session{
		url:    url,
		cfg:    cfg,
		dialer: wsDialer{cfg: cfg},
		clock:  clock.New(),
		logger: noopLogger{},
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLogger overrides logger (optional).
func (s *Session) SetLogger(l Logger) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.logger = l
	s.mu.Unlock()
}

// OnStateChanged registers callback for connection state changes.
// It may be called from any goroutine.
func (s *Session) OnStateChanged(fn func(StateEvent)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// OnSendDropped registers callback for messages rejected by Send.
func (s *Session) OnSendDropped(fn func(OutboundMessage)) {
	s.mu.Lock()
	s.onDropped = fn
	s.mu.Unlock()
}

// Events returns the notification stream. It is never closed; stop reading
// once Done is closed.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed by Close.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CloseStatus returns the code and reason of the last closure.
func (s *Session) CloseStatus() (websocket.StatusCode, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCode, s.closeReason
}

// Connect starts the first connection attempt in the background and returns.
// Only the first call has an effect. Failures surface as events, not errors.
// Cancelling ctx is equivalent to Close.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NewError(ErrorTransport, "session closed")
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	context.AfterFunc(runCtx, func() { _ = s.Close() })
	go s.attempt(runCtx)
	return nil
}

// Send writes msg if the connection is open. Otherwise msg is dropped:
// it is logged, reported to OnSendDropped and never retried.
func (s *Session) Send(ctx context.Context, msg OutboundMessage) error {
	s.mu.Lock()
	conn, state := s.conn, s.state
	logger, drop := s.logger, s.onDropped
	s.mu.Unlock()

	if state != StateOpen || conn == nil {
		logger.Warn("message not sent", map[string]any{"state": state.String(), "type": msg.Type})
		if drop != nil {
			drop(msg)
		}
		return ErrSendRejected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.Write(ctx, msg); err != nil {
		logger.Warn("write failed", map[string]any{"type": msg.Type, "error": err.Error()})
		return WrapError(ErrorTransport, "write failed", err)
	}
	return nil
}

// Close ends the session for good: the open connection is closed and any
// scheduled reconnection is cancelled. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	conn := s.conn
	s.conn = nil
	cancel := s.cancel
	s.closeCode, s.closeReason = websocket.StatusNormalClosure, "client close"
	close(s.done)
	notify := s.transition(StateClosed, nil)
	s.mu.Unlock()
	notify()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client close")
	}
	if cancel != nil {
		cancel()
	}
	return err
}

// attempt dials once and, on success, reads until the connection ends.
// It runs on its own goroutine, started by Connect or the reconnect timer.
func (s *Session) attempt(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	logger := s.logger
	notify := s.transition(StateConnecting, nil)
	s.mu.Unlock()
	notify()

	dialCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.HandshakeTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	}
	conn, err := s.dialer.Dial(dialCtx, s.url)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		terr := WrapError(ErrorTransport, "dial failed", err)
		logger.Error("connection error", map[string]any{"url": s.url, "error": err.Error()})
		s.emit(Event{Kind: EventError, Err: terr})
		s.lost(ctx, websocket.StatusAbnormalClosure, "", terr)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "client close")
		return
	}
	s.conn = conn
	notify = s.transition(StateOpen, nil)
	s.mu.Unlock()
	notify()

	logger.Info("connected", map[string]any{"url": s.url})
	s.emit(Event{Kind: EventOpen})
	s.readLoop(ctx, conn)
}

func (s *Session) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return
			}
			_ = conn.Close(websocket.StatusNormalClosure, "")
			code, reason := closeStatus(err)
			var cause error
			if code == websocket.StatusAbnormalClosure {
				cause = WrapError(ErrorTransport, "connection lost", err)
			}
			s.lost(ctx, code, reason, cause)
			return
		}
		s.emit(Event{Kind: EventFrame, Frame: data})
	}
}

// lost records an unexpected closure and arms the reconnect timer.
func (s *Session) lost(ctx context.Context, code websocket.StatusCode, reason string, cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.closeCode, s.closeReason = code, reason
	logger := s.logger
	notify := s.transition(StateClosed, cause)
	s.mu.Unlock()
	notify()

	logger.Warn("disconnected", map[string]any{"code": int(code), "reason": reason})
	s.emit(Event{Kind: EventClose, Code: code, Reason: reason, Err: cause})

	s.mu.Lock()
	if s.closed || !s.cfg.Reconnect || s.timer != nil {
		s.mu.Unlock()
		return
	}
	// The timer re-checks closed when it fires; Close also stops it.
	s.timer = s.clock.AfterFunc(s.cfg.ReconnectDelay, func() { s.attempt(ctx) })
	notify = s.transition(StateReconnecting, nil)
	s.mu.Unlock()
	notify()
	logger.Info("reconnect scheduled", map[string]any{"delay_ms": s.cfg.ReconnectDelay.Milliseconds()})
}

// emit delivers ev unless the session has been closed.
func (s *Session) emit(ev Event) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// transition must be called with s.mu held. The returned func fires the
// state callback and must be called after unlocking.
func (s *Session) transition(to ConnectionState, err error) func() {
	from := s.state
	s.state = to
	fn := s.onState
	if fn == nil || from == to {
		return func() {}
	}
	return func() { fn(StateEvent{OldState: from, NewState: to, Error: err}) }
}

func closeStatus(err error) (websocket.StatusCode, string) {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Reason
	}
	return websocket.StatusAbnormalClosure, ""
}
