// Package store provides durable persistence for chat messages and the
// read-only user lookups the messaging core needs.
package store

import (
	"context"
	"errors"

	"github.com/example/marketplace-messaging/domain/message"
	"github.com/example/marketplace-messaging/domain/user"
)

var (
	// ErrNotFound is returned when a message does not exist.
	ErrNotFound = errors.New("message not found")
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnknownReference is returned when a message references a missing user or property.
	ErrUnknownReference = errors.New("message references an unknown user or property")
	// ErrNotStarted is returned when the store module is used before Start.
	ErrNotStarted = errors.New("store not started")
)

// Store is the durable message store.
//
// SaveMessage inserts msg and reads the stored row back into it, so the
// caller observes the assigned ID and timestamps.
type Store interface {
	SaveMessage(ctx context.Context, msg *message.ChatMessage) error
	FindMessageByID(ctx context.Context, id int64) (*message.ChatMessage, error)
	ListInbox(ctx context.Context, receiverID int64, limit int) ([]message.ChatMessage, error)
	FindUserByID(ctx context.Context, id int64) (*user.User, error)
	FindUserByEmail(ctx context.Context, email string) (*user.User, error)
	Ping(ctx context.Context) error
	Close() error
}
