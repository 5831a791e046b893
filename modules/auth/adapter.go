package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/marketplace-messaging/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the interface other modules use to authenticate callers.
type AuthPort interface {
	Verify(ctx context.Context, token string) (*user.User, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// Verify resolves token to a user through the verify-token service.
func (a *AuthAdapter) Verify(ctx context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	req := VerifyTokenRequest{Token: token}
	var resp VerifyTokenResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"verify-token",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("verify-token request failed: %w", err)
	}

	if !resp.Valid {
		return nil, errorForReason(resp.Reason)
	}

	return &user.User{
		ID:       resp.UserID,
		Username: resp.Username,
		Email:    resp.Email,
		Role:     user.Role(resp.Role),
	}, nil
}
