package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/marketplace-messaging/domain/user"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

// State is the lifecycle state of a Session.
type State int

// Session states, in the order a connection moves through them.
const (
	StateConnecting State = iota
	StateOpen
	StateReceiving
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReceiving:
		return "receiving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Verifier resolves a bearer token to the user it was issued for.
type Verifier interface {
	Verify(ctx context.Context, token string) (*user.User, error)
}

const closeWriteWait = time.Second

// Session drives one websocket connection: authenticate, register, receive
// frames until the connection goes away, then clean up.
type Session struct {
	conn     Conn
	verifier Verifier
	registry *Registry
	router   *Router
	decoder  *Decoder
	handles  HandleConfig
	logger   types.Logger

	mu     sync.Mutex
	state  State
	user   *user.User
	handle *Handle
}

func newSession(conn Conn, verifier Verifier, registry *Registry, router *Router, decoder *Decoder, handles HandleConfig, logger types.Logger) *Session {
	return &Session{
		conn:     conn,
		verifier: verifier,
		registry: registry,
		router:   router,
		decoder:  decoder,
		handles:  handles,
		logger:   logger,
		state:    StateConnecting,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the authenticated user, or nil before authentication.
func (s *Session) User() *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run authenticates token and serves the connection until it closes.
// It returns once every resource held by the session has been released.
func (s *Session) Run(ctx context.Context, token string) {
	u, err := s.verifier.Verify(ctx, token)
	if err != nil {
		s.logger.Info("WebSocket authentication failed", "error", err)
		s.reject("authentication failed")
		return
	}

	h := s.open(u)
	defer s.close(u, h)

	s.receive(ctx, u, h)
}

// reject closes the transport with a policy violation before registration.
func (s *Session) reject(reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait)); err != nil {
		s.logger.Debug("Failed to send close frame", "error", err)
	}
	_ = s.conn.Close()
	s.setState(StateClosed)
}

func (s *Session) open(u *user.User) *Handle {
	h := newHandle(u.ID, s.conn, s.handles, s.logger)

	s.mu.Lock()
	s.user = u
	s.handle = h
	s.state = StateOpen
	s.mu.Unlock()

	s.registry.Put(u.ID, h)
	s.logger.Info("WebSocket connected", "userID", u.ID, "handleID", h.ID())
	return h
}

func (s *Session) receive(ctx context.Context, u *user.User, h *Handle) {
	s.setState(StateReceiving)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if isDisconnect(err) {
				s.logger.Info("WebSocket disconnected", "userID", u.ID, "handleID", h.ID())
			} else {
				s.logger.Warn("WebSocket read failed", "userID", u.ID, "handleID", h.ID(), "error", err)
			}
			return
		}

		frame, err := s.decoder.Decode(data)
		if err != nil {
			s.logger.Debug("Dropping invalid frame", "userID", u.ID, "error", err)
			s.sendError(h, CodeInvalidFrame, err.Error())
			continue
		}

		if _, err := s.router.Route(ctx, u.ID, h, frame); err != nil {
			s.logger.Error("Failed to route message", "userID", u.ID, "error", err)
			code := CodePersistFailed
			if errors.Is(err, ErrDecode) {
				code = CodeInvalidFrame
			}
			s.sendError(h, code, "message was not delivered")
		}
	}
}

// close is the single exit path once the session has been opened.
func (s *Session) close(u *user.User, h *Handle) {
	removed := s.registry.Remove(u.ID, h)
	_ = s.conn.Close()
	h.stop()
	s.setState(StateClosed)

	s.logger.Debug("Session closed", "userID", u.ID, "handleID", h.ID(), "deregistered", removed)
}

// Shutdown asks the peer to go away and closes the transport, which ends the
// receive loop. Cleanup still happens in Run.
func (s *Session) Shutdown() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	_ = s.conn.Close()
}

func (s *Session) sendError(h *Handle, code, msg string) {
	if err := h.Push(encodeError(code, msg)); err != nil {
		s.logger.Debug("Failed to push error frame", "userID", h.UserID(), "error", err)
	}
}

func isDisconnect(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
	)
}
