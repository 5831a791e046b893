package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/marketplace-messaging/config"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module exposes token verification as the verify-token request-reply service.
type Module struct {
	cfg      config.JWT
	users    UserFinder
	verifier *TokenVerifier
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the auth module. users resolves token identities.
func NewModule(cfg config.JWT, users UserFinder, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		users:  users,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// Start builds the token verifier.
func (m *Module) Start(_ context.Context) error {
	if m.users == nil {
		return fmt.Errorf("user store not set")
	}
	manager, err := NewJWTManager(m.cfg)
	if err != nil {
		return err
	}
	m.verifier = NewTokenVerifier(manager, m.users)

	m.logger.Info("Auth module started", "algorithm", m.cfg.Algorithm)
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Auth module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.verifier == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "verifier not initialized",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"algorithm": m.cfg.Algorithm,
		},
	}
}

// Verifier returns the token verifier. It is nil until Start.
func (m *Module) Verifier() *TokenVerifier {
	return m.verifier
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		"verify-token",
		json.Unmarshal,
		json.Marshal,
		m.handleVerifyToken,
	); err != nil {
		return fmt.Errorf("failed to register verify-token service: %w", err)
	}

	m.logger.Info("Registered services", "services", "verify-token")
	return nil
}

// handleVerifyToken handles token verification.
func (m *Module) handleVerifyToken(ctx context.Context, req VerifyTokenRequest, _ *mono.Msg) (VerifyTokenResponse, error) {
	if m.verifier == nil {
		return VerifyTokenResponse{}, fmt.Errorf("auth module not started")
	}

	u, err := m.verifier.Verify(ctx, req.Token)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			// Validation failures are a response, not a service error.
			return VerifyTokenResponse{
				Valid:  false,
				Reason: reasonFor(err),
				Error:  err.Error(),
			}, nil
		}
		return VerifyTokenResponse{}, err
	}

	return VerifyTokenResponse{
		Valid:    true,
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     string(u.Role),
	}, nil
}
