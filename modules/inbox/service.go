// Package inbox serves a user's received messages, newest first, with an
// optional Redis cache in front of the message store.
package inbox

import (
	"context"
	"fmt"

	"github.com/example/marketplace-messaging/domain/message"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

// MaxLimit caps the number of messages a single inbox request returns.
const MaxLimit = 1000

// Reader lists the messages received by a user.
type Reader interface {
	ListInbox(ctx context.Context, receiverID int64, limit int) ([]message.ChatMessage, error)
}

// Cacher is the cache used by Service. *Cache implements it.
type Cacher interface {
	Generation(ctx context.Context, receiverID int64) (int64, error)
	Bump(ctx context.Context, receiverID int64) error
	GetFrames(ctx context.Context, receiverID, gen int64, limit int) ([]message.Frame, bool, error)
	SetFrames(ctx context.Context, receiverID, gen int64, limit int, frames []message.Frame) error
}

// Service implements inbox reads with cache-aside.
type Service struct {
	store   Reader
	cache   Cacher
	sfGroup singleflight.Group
	logger  types.Logger
}

// NewService creates a new inbox service. A nil cache disables caching.
func NewService(store Reader, cache Cacher, logger types.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// NormalizeLimit clamps limit to [0, MaxLimit]; 0 means no limit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 0
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// List returns the messages received by receiverID, newest first, and whether
// the result came from the cache.
//
// Pages are cached under the receiver's generation as read before the store
// query, so a page read across an Invalidate is never served afterwards.
func (s *Service) List(ctx context.Context, receiverID int64, limit int) ([]message.Frame, bool, error) {
	limit = NormalizeLimit(limit)

	useCache := s.cache != nil
	var gen int64
	if useCache {
		var err error
		gen, err = s.cache.Generation(ctx, receiverID)
		if err != nil {
			// Without a generation the cache cannot be trusted; go to the store.
			s.logger.Warn("Inbox cache unavailable", "receiverID", receiverID, "error", err)
			useCache = false
		}
	}

	if useCache {
		cached, found, err := s.cache.GetFrames(ctx, receiverID, gen, limit)
		if err != nil {
			s.logger.Warn("Inbox cache read failed", "receiverID", receiverID, "error", err)
		}
		if found {
			return cached, true, nil
		}
	}

	key := fmt.Sprintf("%d:%d:%d", receiverID, gen, limit)
	val, err, _ := s.sfGroup.Do(key, func() (any, error) {
		msgs, err := s.store.ListInbox(ctx, receiverID, limit)
		if err != nil {
			return nil, err
		}
		return lo.Map(msgs, func(m message.ChatMessage, _ int) message.Frame {
			return m.ToFrame()
		}), nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to list inbox: %w", err)
	}
	frames := val.([]message.Frame)

	if useCache {
		if err := s.cache.SetFrames(ctx, receiverID, gen, limit, frames); err != nil {
			s.logger.Warn("Inbox cache write failed", "receiverID", receiverID, "error", err)
		}
	}

	return frames, false, nil
}

// Invalidate retires every cached inbox page of receiverID.
func (s *Service) Invalidate(ctx context.Context, receiverID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Bump(ctx, receiverID)
}
