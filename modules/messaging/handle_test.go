package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_PushWrites(t *testing.T) {
	conn := newFakeConn()
	h := newHandle(7, conn, testHandleConfig(), &mockLogger{})
	defer h.stop()

	assert.NotEmpty(t, h.ID())
	assert.Equal(t, int64(7), h.UserID())

	require.NoError(t, h.Push([]byte("one")))
	require.NoError(t, h.Push([]byte("two")))

	assert.Equal(t, "one", string(expectFrame(t, conn)))
	assert.Equal(t, "two", string(expectFrame(t, conn)))
}

func TestHandle_PushAfterStop(t *testing.T) {
	h := newHandle(1, newFakeConn(), testHandleConfig(), &mockLogger{})
	h.stop()

	assert.True(t, h.closed())
	assert.ErrorIs(t, h.Push([]byte("late")), ErrHandleClosed)

	// stop is idempotent
	h.stop()
}

func TestHandle_PushTimeout(t *testing.T) {
	conn := newFakeConn()
	conn.block = make(chan struct{})
	cfg := HandleConfig{SendBuffer: 1, PushTimeout: 20 * time.Millisecond}
	h := newHandle(1, conn, cfg, &mockLogger{})
	defer h.stop()

	// The writer takes the first frame and blocks on the transport,
	// the second fills the queue.
	require.NoError(t, h.Push([]byte("1")))
	require.Eventually(t, func() bool { return len(h.send) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.Push([]byte("2")))

	start := time.Now()
	err := h.Push([]byte("3"))
	assert.ErrorIs(t, err, ErrPushTimeout)
	assert.Less(t, time.Since(start), time.Second)

	close(conn.block)
	assert.Equal(t, "1", string(expectFrame(t, conn)))
	assert.Equal(t, "2", string(expectFrame(t, conn)))
}

func TestHandle_WriteFailureClosesHandle(t *testing.T) {
	conn := newFakeConn()
	h := newHandle(1, conn, testHandleConfig(), &mockLogger{})
	defer h.stop()

	require.NoError(t, conn.Close())
	require.NoError(t, h.Push([]byte("lost")))

	require.Eventually(t, h.closed, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.Push([]byte("after")), ErrHandleClosed)
}

func TestHandle_WriteFailureClosesTransport(t *testing.T) {
	conn := newFakeConn()
	conn.writeErr = errors.New("write deadline exceeded")
	h := newHandle(1, conn, testHandleConfig(), &mockLogger{})
	defer h.stop()

	require.NoError(t, h.Push([]byte("lost")))

	require.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)
	assert.True(t, h.closed())
}
