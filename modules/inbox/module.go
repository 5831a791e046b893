package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/example/marketplace-messaging/config"
	"github.com/example/marketplace-messaging/domain/message"
	"github.com/example/marketplace-messaging/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "inbox:"

// Module serves inbox reads and keeps the cache consistent with new messages.
type Module struct {
	cfg     config.Redis
	store   Reader
	client  *redis.Client
	cache   *Cache
	service *Service
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
)

// NewModule creates the inbox module. An empty cfg.Addr disables caching.
func NewModule(cfg config.Redis, store Reader, logger types.Logger) *Module {
	return &Module{
		cfg:     cfg,
		store:   store,
		service: NewService(store, nil, logger),
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "inbox"
}

// Start connects to Redis when a cache address is configured.
func (m *Module) Start(ctx context.Context) error {
	if m.cfg.Addr == "" {
		m.logger.Info("Inbox module started", "cache", "disabled")
		return nil
	}

	m.client = redis.NewClient(&redis.Options{
		Addr:         m.cfg.Addr,
		Password:     m.cfg.Password,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := m.client.Ping(ctx).Err(); err != nil {
		_ = m.client.Close()
		m.client = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	m.cache = NewCache(m.client, keyPrefix, m.cfg.TTL)
	m.service = NewService(m.store, m.cache, m.logger)

	m.logger.Info("Inbox module started", "cache", m.cfg.Addr, "ttl", m.cfg.TTL)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
		m.client = nil
	}
	m.logger.Info("Inbox module stopped")
	return nil
}

// Health reports cache connectivity and statistics.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.cache == nil {
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational (cache disabled)",
		}
	}
	if err := m.cache.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"cache": m.cache.GetStats(),
		},
	}
}

// RegisterEventConsumers subscribes to persisted messages to invalidate the
// receiver's cached inbox.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.MessagePersistedV1, m.handleMessagePersisted, m); err != nil {
		return fmt.Errorf("failed to register MessagePersisted consumer: %w", err)
	}
	m.logger.Info("Registered inbox event consumers")
	return nil
}

func (m *Module) handleMessagePersisted(ctx context.Context, event events.MessagePersistedEvent, _ *mono.Msg) error {
	if err := m.service.Invalidate(ctx, event.ReceiverID); err != nil {
		m.logger.Warn("Failed to invalidate inbox cache",
			"receiverID", event.ReceiverID,
			"messageID", event.MessageID,
			"error", err)
		return nil
	}
	return nil
}

// InvalidateMessage retires the cached inbox of msg's receiver. It runs
// synchronously after persistence so the receiver never reads an inbox older
// than a message it was already pushed.
func (m *Module) InvalidateMessage(ctx context.Context, msg *message.ChatMessage) {
	if err := m.service.Invalidate(ctx, msg.ReceiverID); err != nil {
		m.logger.Warn("Failed to invalidate inbox cache",
			"receiverID", msg.ReceiverID,
			"messageID", msg.ID,
			"error", err)
	}
}

// List returns the inbox of receiverID; see Service.List.
func (m *Module) List(ctx context.Context, receiverID int64, limit int) ([]message.Frame, bool, error) {
	return m.service.List(ctx, receiverID, limit)
}
