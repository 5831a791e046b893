package messaging

import (
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// Conn is the subset of a websocket connection the messaging core uses.
// *websocket.Conn from gofiber/contrib satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// HandleConfig bounds how a handle delivers outbound frames.
type HandleConfig struct {
	SendBuffer   int
	PushTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultHandleConfig returns the settings used when none are configured.
func DefaultHandleConfig() HandleConfig {
	return HandleConfig{
		SendBuffer:   64,
		PushTimeout:  2 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Handle is the outbound side of one live connection. Frames pushed to it are
// queued and written by a single writer goroutine, so concurrent routers never
// write to the transport directly.
type Handle struct {
	id     string
	userID int64
	conn   Conn
	cfg    HandleConfig
	logger types.Logger

	send     chan []byte
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

// newHandle creates a handle and starts its writer.
func newHandle(userID int64, conn Conn, cfg HandleConfig, logger types.Logger) *Handle {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultHandleConfig().SendBuffer
	}
	h := &Handle{
		id:       uuid.New().String(),
		userID:   userID,
		conn:     conn,
		cfg:      cfg,
		logger:   logger,
		send:     make(chan []byte, cfg.SendBuffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go h.writeLoop()
	return h
}

// ID returns the unique handle identifier.
func (h *Handle) ID() string {
	return h.id
}

// UserID returns the user this handle belongs to.
func (h *Handle) UserID() int64 {
	return h.userID
}

// Push queues data for delivery. It waits at most PushTimeout for room in the
// queue and never writes to the transport itself.
func (h *Handle) Push(data []byte) error {
	select {
	case <-h.done:
		return ErrHandleClosed
	default:
	}

	if h.cfg.PushTimeout <= 0 {
		select {
		case h.send <- data:
			return nil
		case <-h.done:
			return ErrHandleClosed
		default:
			return ErrPushTimeout
		}
	}

	timer := time.NewTimer(h.cfg.PushTimeout)
	defer timer.Stop()

	select {
	case h.send <- data:
		return nil
	case <-h.done:
		return ErrHandleClosed
	case <-timer.C:
		return ErrPushTimeout
	}
}

// stop signals the writer to exit and waits until it has.
func (h *Handle) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	<-h.finished
}

// closed reports whether the handle no longer accepts frames.
func (h *Handle) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) writeLoop() {
	defer close(h.finished)

	for {
		select {
		case <-h.done:
			return
		case data := <-h.send:
			if h.cfg.WriteTimeout > 0 {
				_ = h.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			}
			if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("Failed to write frame",
					"userID", h.userID,
					"handleID", h.id,
					"error", err)
				h.stopOnce.Do(func() {
					close(h.done)
				})
				// Unblocks the reader so the session deregisters this handle.
				_ = h.conn.Close()
				return
			}
		}
	}
}
