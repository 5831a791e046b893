package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessagePersistedEvent is emitted after a chat message has been durably stored.
type MessagePersistedEvent struct {
	MessageID  int64     `json:"message_id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	PropertyID *int64    `json:"property_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessagePersistedV1 is the typed event definition for stored messages.
// Subject: events.messaging.v1.message-persisted
var MessagePersistedV1 = helper.EventDefinition[MessagePersistedEvent](
	"messaging", "MessagePersisted", "v1",
)
