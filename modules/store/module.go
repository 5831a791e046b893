package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/marketplace-messaging/config"
	"github.com/example/marketplace-messaging/domain/message"
	"github.com/example/marketplace-messaging/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the message store connection. It satisfies Store itself by
// delegating to the backend opened in Start, so other modules can be wired
// to it before the application starts.
type Module struct {
	cfg    config.Database
	logger types.Logger

	mu      sync.RWMutex
	backend Store
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Store                      = (*Module)(nil)
)

// NewModule creates a new store module for the configured driver.
func NewModule(cfg config.Database, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		logger: logger,
	}
}

// NewModuleWithStore creates a module around an already opened backend.
func NewModuleWithStore(backend Store, logger types.Logger) *Module {
	return &Module{
		logger:  logger,
		backend: backend,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start opens the configured backend unless one was injected.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		m.logger.Info("Store module started", "driver", "injected")
		return nil
	}

	switch m.cfg.Driver {
	case config.DriverPostgres:
		s, err := OpenPostgres(ctx, m.cfg.URL)
		if err != nil {
			return err
		}
		m.backend = s
	case config.DriverSQLite, "":
		s, err := OpenSQLite(m.cfg.Path)
		if err != nil {
			return err
		}
		m.backend = s
	default:
		return fmt.Errorf("unsupported database driver: %s", m.cfg.Driver)
	}

	m.logger.Info("Store module started", "driver", m.cfg.Driver)
	return nil
}

// Stop closes the backend.
func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend == nil {
		return nil
	}
	err := m.backend.Close()
	m.backend = nil
	if err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	m.logger.Info("Store module stopped")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.cfg.Driver,
		},
	}
}

func (m *Module) store() (Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.backend == nil {
		return nil, ErrNotStarted
	}
	return m.backend, nil
}

// SaveMessage delegates to the backend.
func (m *Module) SaveMessage(ctx context.Context, msg *message.ChatMessage) error {
	s, err := m.store()
	if err != nil {
		return err
	}
	return s.SaveMessage(ctx, msg)
}

// FindMessageByID delegates to the backend.
func (m *Module) FindMessageByID(ctx context.Context, id int64) (*message.ChatMessage, error) {
	s, err := m.store()
	if err != nil {
		return nil, err
	}
	return s.FindMessageByID(ctx, id)
}

// ListInbox delegates to the backend.
func (m *Module) ListInbox(ctx context.Context, receiverID int64, limit int) ([]message.ChatMessage, error) {
	s, err := m.store()
	if err != nil {
		return nil, err
	}
	return s.ListInbox(ctx, receiverID, limit)
}

// FindUserByID delegates to the backend.
func (m *Module) FindUserByID(ctx context.Context, id int64) (*user.User, error) {
	s, err := m.store()
	if err != nil {
		return nil, err
	}
	return s.FindUserByID(ctx, id)
}

// FindUserByEmail delegates to the backend.
func (m *Module) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	s, err := m.store()
	if err != nil {
		return nil, err
	}
	return s.FindUserByEmail(ctx, email)
}

// Ping delegates to the backend.
func (m *Module) Ping(ctx context.Context) error {
	s, err := m.store()
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Close is a no-op; the backend is released by Stop.
func (m *Module) Close() error {
	return nil
}
