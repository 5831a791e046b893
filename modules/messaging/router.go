package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/marketplace-messaging/domain/message"
	"github.com/go-monolith/mono/pkg/types"
)

// MessageSaver persists chat messages. SaveMessage must fill in the stored ID.
type MessageSaver interface {
	SaveMessage(ctx context.Context, msg *message.ChatMessage) error
}

// PersistedHook is called after a message is stored and before it is pushed.
type PersistedHook func(ctx context.Context, msg *message.ChatMessage)

// Router persists inbound frames and fans them out to the live connections
// of the receiver and the sender.
type Router struct {
	store        MessageSaver
	registry     *Registry
	storeTimeout time.Duration
	onPersisted  []PersistedHook
	logger       types.Logger
}

// NewRouter creates a router. storeTimeout bounds each persistence call.
func NewRouter(store MessageSaver, registry *Registry, storeTimeout time.Duration, logger types.Logger) *Router {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Router{
		store:        store,
		registry:     registry,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// OnPersisted adds a hook run after each successful persistence. Hooks run
// in the order they were added. It must not be called while routing.
func (r *Router) OnPersisted(hook PersistedHook) {
	r.onPersisted = append(r.onPersisted, hook)
}

// Route stores the message described by frame on behalf of senderID, then
// pushes it to the receiver's connection if one is registered and to sender
// as an acknowledgement. Push failures are logged, never returned.
//
// Persistence runs on a context detached from ctx cancellation, so a closing
// connection cannot abandon a write halfway.
func (r *Router) Route(ctx context.Context, senderID int64, sender *Handle, frame InboundFrame) (*message.ChatMessage, error) {
	if frame.ReceiverID == nil {
		return nil, fmt.Errorf("%w: receiver_id is required", ErrDecode)
	}

	msg := &message.ChatMessage{
		Content:    frame.Content,
		SenderID:   senderID,
		ReceiverID: *frame.ReceiverID,
		PropertyID: frame.PropertyID,
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.storeTimeout)
	defer cancel()

	if err := r.store.SaveMessage(storeCtx, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	for _, hook := range r.onPersisted {
		hook(storeCtx, msg)
	}

	data, err := json.Marshal(msg.ToFrame())
	if err != nil {
		// Stored, but nothing can be pushed.
		r.logger.Error("Failed to encode message", "messageID", msg.ID, "error", err)
		return msg, nil
	}

	if receiver, ok := r.registry.Get(msg.ReceiverID); ok {
		r.push(receiver, msg, data)
	}
	if sender != nil {
		r.push(sender, msg, data)
	}

	return msg, nil
}

func (r *Router) push(h *Handle, msg *message.ChatMessage, data []byte) {
	if err := h.Push(data); err != nil {
		r.logger.Warn("Failed to push message",
			"messageID", msg.ID,
			"userID", h.UserID(),
			"handleID", h.ID(),
			"error", err)
	}
}
