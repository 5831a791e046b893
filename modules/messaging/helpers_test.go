package messaging

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/marketplace-messaging/domain/message"
	"github.com/example/marketplace-messaging/domain/user"
	"github.com/example/marketplace-messaging/modules/auth"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }

var errConnClosed = errors.New("use of closed network connection")

// fakeConn is an in-memory websocket connection. Tests feed frames through
// inbound and observe what the server wrote through writes.
type fakeConn struct {
	inbound  chan []byte
	writes   chan []byte
	block    chan struct{}
	writeErr error

	mu       sync.Mutex
	controls [][]byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		writes:  make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return 0, nil, errConnClosed
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	if c.block != nil {
		select {
		case <-c.block:
		case <-c.closed:
			return errConnClosed
		}
	}
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.writes <- data
	return nil
}

func (c *fakeConn) WriteControl(_ int, data []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, data)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// closeCodes returns the status codes of the close frames written so far.
func (c *fakeConn) closeCodes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	codes := make([]int, 0, len(c.controls))
	for _, data := range c.controls {
		if len(data) >= 2 {
			codes = append(codes, int(binary.BigEndian.Uint16(data[:2])))
		}
	}
	return codes
}

func (c *fakeConn) send(data string) {
	c.inbound <- []byte(data)
}

func expectFrame(t *testing.T, c *fakeConn) []byte {
	t.Helper()
	select {
	case data := <-c.writes:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func expectNoFrame(t *testing.T, c *fakeConn) {
	t.Helper()
	select {
	case data := <-c.writes:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

// fakeStore assigns increasing IDs and records every saved message.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	saved  []message.ChatMessage
	err    error
}

func (s *fakeStore) SaveMessage(ctx context.Context, msg *message.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.nextID++
	msg.ID = s.nextID
	msg.CreatedAt = time.Now()
	s.saved = append(s.saved, *msg)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// fakeVerifier maps tokens to users.
type fakeVerifier map[string]*user.User

func (v fakeVerifier) Verify(_ context.Context, token string) (*user.User, error) {
	u, ok := v[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return u, nil
}

func testHandleConfig() HandleConfig {
	return HandleConfig{
		SendBuffer:   8,
		PushTimeout:  50 * time.Millisecond,
		WriteTimeout: time.Second,
	}
}

func int64Ptr(v int64) *int64 { return &v }
