package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/marketplace-messaging/config"
	"github.com/example/marketplace-messaging/domain/message"
	"github.com/example/marketplace-messaging/events"
	"github.com/example/marketplace-messaging/modules/auth"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

// Module owns the connection registry and serves chat connections.
type Module struct {
	registry *Registry
	router   *Router
	decoder  *Decoder
	handles  HandleConfig
	verifier Verifier
	eventBus mono.EventBus
	logger   types.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
	stopping bool
	wg       sync.WaitGroup
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
)

// NewModule creates the messaging module. store persists every routed message.
func NewModule(cfg config.Session, store MessageSaver, logger types.Logger) *Module {
	registry := NewRegistry()
	m := &Module{
		registry: registry,
		router:   NewRouter(store, registry, cfg.StoreTimeout, logger),
		decoder:  NewDecoder(cfg.MaxMessageLength),
		handles: HandleConfig{
			SendBuffer:   cfg.SendBuffer,
			PushTimeout:  cfg.PushTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger:   logger,
		sessions: make(map[*Session]struct{}),
	}
	m.router.OnPersisted(m.publishPersisted)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "messaging"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.verifier = auth.NewAuthAdapter(container)
	}
}

// SetVerifier overrides the token verifier.
func (m *Module) SetVerifier(v Verifier) {
	m.verifier = v
}

// AddPersistedHook runs hook after every stored message, before it is pushed
// to any connection. Call it before Start.
func (m *Module) AddPersistedHook(hook PersistedHook) {
	m.router.OnPersisted(hook)
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessagePersistedV1.ToBase(),
	}
}

// Start verifies the module has been wired.
func (m *Module) Start(_ context.Context) error {
	if m.verifier == nil {
		return fmt.Errorf("auth dependency not set")
	}
	m.mu.Lock()
	m.stopping = false
	m.mu.Unlock()

	m.logger.Info("Messaging module started")
	return nil
}

// Stop closes every live connection and waits for their sessions to finish.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopping = true
	sessions := make([]*Session, 0, len(m.sessions))
	for s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Shutdown()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Messaging module stopped", "closedSessions", len(sessions))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for sessions to close: %w", ctx.Err())
	}
}

// Health reports the number of connected users.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	m.mu.Lock()
	sessions := len(m.sessions)
	m.mu.Unlock()

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_users": m.registry.Len(),
			"sessions":        sessions,
		},
	}
}

// Registry returns the connection registry.
func (m *Module) Registry() *Registry {
	return m.registry
}

// ServeConn runs a session for conn authenticated by token and blocks until
// the connection is closed.
func (m *Module) ServeConn(ctx context.Context, conn Conn, token string) {
	s := newSession(conn, m.verifier, m.registry, m.router, m.decoder, m.handles, m.logger)

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
		_ = conn.Close()
		return
	}
	m.sessions[s] = struct{}{}
	m.wg.Add(1)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.sessions, s)
		m.mu.Unlock()
		m.wg.Done()
	}()

	s.Run(ctx, token)
}

func (m *Module) publishPersisted(_ context.Context, msg *message.ChatMessage) {
	if m.eventBus == nil {
		return
	}
	event := events.MessagePersistedEvent{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		PropertyID: msg.PropertyID,
		Timestamp:  msg.CreatedAt,
	}
	if err := events.MessagePersistedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish MessagePersisted event", "messageID", msg.ID, "error", err)
	}
}
