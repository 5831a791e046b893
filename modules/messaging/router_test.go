package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/marketplace-messaging/domain/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerFixture struct {
	store    *fakeStore
	registry *Registry
	router   *Router
}

func newRouterFixture() *routerFixture {
	store := &fakeStore{}
	registry := NewRegistry()
	return &routerFixture{
		store:    store,
		registry: registry,
		router:   NewRouter(store, registry, time.Second, &mockLogger{}),
	}
}

func (f *routerFixture) connect(t *testing.T, userID int64) (*Handle, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	h := newHandle(userID, conn, testHandleConfig(), &mockLogger{})
	t.Cleanup(h.stop)
	f.registry.Put(userID, h)
	return h, conn
}

func decodeFrame(t *testing.T, data []byte) message.Frame {
	t.Helper()
	var f message.Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestRouter_ReceiverOffline(t *testing.T) {
	f := newRouterFixture()
	senderHandle, senderConn := f.connect(t, 1)

	msg, err := f.router.Route(context.Background(), 1, senderHandle, InboundFrame{
		ReceiverID: int64Ptr(2),
		Content:    "hi",
	})
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, 1, f.store.count())

	ack := decodeFrame(t, expectFrame(t, senderConn))
	assert.Equal(t, msg.ID, ack.ID)
	assert.Equal(t, "hi", ack.Content)
	assert.Equal(t, int64(1), ack.SenderID)
	assert.Equal(t, int64(2), ack.ReceiverID)
	assert.Nil(t, ack.PropertyID)
	expectNoFrame(t, senderConn)
}

func TestRouter_BothOnline(t *testing.T) {
	f := newRouterFixture()
	senderHandle, senderConn := f.connect(t, 1)
	_, receiverConn := f.connect(t, 2)

	msg, err := f.router.Route(context.Background(), 1, senderHandle, InboundFrame{
		ReceiverID: int64Ptr(2),
		Content:    "is it available?",
		PropertyID: int64Ptr(77),
	})
	require.NoError(t, err)

	toReceiver := expectFrame(t, receiverConn)
	toSender := expectFrame(t, senderConn)
	assert.Equal(t, toReceiver, toSender)

	frame := decodeFrame(t, toReceiver)
	assert.Equal(t, msg.ID, frame.ID)
	require.NotNil(t, frame.PropertyID)
	assert.Equal(t, int64(77), *frame.PropertyID)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(toReceiver, &raw))
	assert.ElementsMatch(t, []string{"id", "content", "sender_id", "receiver_id", "property_id"}, keys(raw))
}

func TestRouter_SenderIdentityIsTrusted(t *testing.T) {
	f := newRouterFixture()
	senderHandle, senderConn := f.connect(t, 5)

	_, err := f.router.Route(context.Background(), 5, senderHandle, InboundFrame{ReceiverID: int64Ptr(6), Content: "x"})
	require.NoError(t, err)

	ack := decodeFrame(t, expectFrame(t, senderConn))
	assert.Equal(t, int64(5), ack.SenderID)
	assert.Equal(t, int64(5), f.store.saved[0].SenderID)
}

func TestRouter_PersistenceFailure(t *testing.T) {
	f := newRouterFixture()
	dbErr := errors.New("disk full")
	f.store.err = dbErr
	senderHandle, senderConn := f.connect(t, 1)
	_, receiverConn := f.connect(t, 2)

	hookCalled := false
	f.router.OnPersisted(func(context.Context, *message.ChatMessage) { hookCalled = true })

	msg, err := f.router.Route(context.Background(), 1, senderHandle, InboundFrame{ReceiverID: int64Ptr(2), Content: "hi"})
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, hookCalled)

	expectNoFrame(t, senderConn)
	expectNoFrame(t, receiverConn)
}

func TestRouter_SelfMessage(t *testing.T) {
	f := newRouterFixture()
	h, conn := f.connect(t, 3)

	_, err := f.router.Route(context.Background(), 3, h, InboundFrame{ReceiverID: int64Ptr(3), Content: "note to self"})
	require.NoError(t, err)

	first := expectFrame(t, conn)
	second := expectFrame(t, conn)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.store.count())
}

func TestRouter_PersistsWhenCallerCancelled(t *testing.T) {
	f := newRouterFixture()
	h, conn := f.connect(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg, err := f.router.Route(ctx, 1, h, InboundFrame{ReceiverID: int64Ptr(2), Content: "bye"})
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	expectFrame(t, conn)
}

func TestRouter_ClosedReceiverDoesNotFailRoute(t *testing.T) {
	f := newRouterFixture()
	senderHandle, senderConn := f.connect(t, 1)
	receiverHandle, _ := f.connect(t, 2)
	receiverHandle.stop()

	_, err := f.router.Route(context.Background(), 1, senderHandle, InboundFrame{ReceiverID: int64Ptr(2), Content: "hi"})
	require.NoError(t, err)
	expectFrame(t, senderConn)
}

func TestRouter_PersistedHookRunsBeforePush(t *testing.T) {
	f := newRouterFixture()
	h, conn := f.connect(t, 1)

	var hooked *message.ChatMessage
	f.router.OnPersisted(func(_ context.Context, msg *message.ChatMessage) {
		hooked = msg
		assert.Empty(t, conn.writes)
	})

	msg, err := f.router.Route(context.Background(), 1, h, InboundFrame{ReceiverID: int64Ptr(2), Content: "hi"})
	require.NoError(t, err)
	require.NotNil(t, hooked)
	assert.Equal(t, msg.ID, hooked.ID)
	expectFrame(t, conn)
}

func TestRouter_PersistedHooksRunInOrder(t *testing.T) {
	f := newRouterFixture()
	h, _ := f.connect(t, 1)

	var order []string
	f.router.OnPersisted(func(context.Context, *message.ChatMessage) { order = append(order, "invalidate") })
	f.router.OnPersisted(func(context.Context, *message.ChatMessage) { order = append(order, "publish") })

	_, err := f.router.Route(context.Background(), 1, h, InboundFrame{ReceiverID: int64Ptr(2), Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"invalidate", "publish"}, order)
}

func TestRouter_MissingReceiver(t *testing.T) {
	f := newRouterFixture()
	h, _ := f.connect(t, 1)

	_, err := f.router.Route(context.Background(), 1, h, InboundFrame{Content: "hi"})
	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, 0, f.store.count())
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
