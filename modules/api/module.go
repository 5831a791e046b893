// Package api exposes the messaging core over HTTP and websockets.
package api

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/example/marketplace-messaging/config"
	"github.com/example/marketplace-messaging/domain/message"
	"github.com/example/marketplace-messaging/modules/auth"
	"github.com/example/marketplace-messaging/modules/messaging"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// ConnServer serves an upgraded websocket connection until it closes.
type ConnServer interface {
	ServeConn(ctx context.Context, conn messaging.Conn, token string)
}

// InboxLister lists a user's received messages.
type InboxLister interface {
	List(ctx context.Context, receiverID int64, limit int) ([]message.Frame, bool, error)
}

// HealthSource is a module whose health is reported on /health.
type HealthSource interface {
	Name() string
	Health(ctx context.Context) mono.HealthStatus
}

// Module is the HTTP API module with WebSocket support.
type Module struct {
	cfg           config.Config
	app           *fiber.App
	auth          auth.AuthPort
	messaging     ConnServer
	inbox         InboxLister
	healthSources []HealthSource
	logger        types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new API module.
func NewModule(cfg config.Config, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.auth = auth.NewAuthAdapter(container)
	}
}

// SetAuth overrides the authentication port.
func (m *Module) SetAuth(port auth.AuthPort) {
	m.auth = port
}

// SetMessaging sets the websocket connection server (called from main.go).
func (m *Module) SetMessaging(s ConnServer) {
	m.messaging = s
}

// SetInbox sets the inbox lister (called from main.go).
func (m *Module) SetInbox(l InboxLister) {
	m.inbox = l
}

// AddHealthSources registers modules reported by /health.
func (m *Module) AddHealthSources(sources ...HealthSource) {
	m.healthSources = append(m.healthSources, sources...)
}

// newApp builds the Fiber application with middleware and routes.
func (m *Module) newApp() (*fiber.App, error) {
	if m.auth == nil {
		return nil, fmt.Errorf("auth dependency not set")
	}
	if m.messaging == nil {
		return nil, fmt.Errorf("messaging dependency not set")
	}
	if m.inbox == nil {
		return nil, fmt.Errorf("inbox dependency not set")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(loggerMiddleware(m.logger))

	origins := m.cfg.AllowedOrigins
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Content-Type,Authorization",
		AllowCredentials: len(origins) > 0 && !slices.Contains(origins, "*"),
	}))

	m.setupRoutes(app)
	return app, nil
}

// Start initializes the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	app, err := m.newApp()
	if err != nil {
		return err
	}
	m.app = app

	addr := m.cfg.Addr()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "addr", addr)
	return nil
}

// Stop gracefully shuts down the HTTP server. Upgraded websocket connections
// are closed by the messaging module.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr": m.cfg.Addr(),
		},
	}
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
