// Package auth resolves bearer tokens to marketplace users.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/marketplace-messaging/domain/user"
	"github.com/example/marketplace-messaging/modules/store"
)

var (
	// ErrUnauthenticated matches every token verification failure.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrMissingToken is returned when no token was supplied.
	ErrMissingToken = fmt.Errorf("%w: missing token", ErrUnauthenticated)
	// ErrInvalidToken is returned when the token is malformed or badly signed.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = fmt.Errorf("%w: token has expired", ErrUnauthenticated)
	// ErrUnknownUser is returned when the token refers to a user that does not exist.
	ErrUnknownUser = fmt.Errorf("%w: unknown user", ErrUnauthenticated)
)

// UserFinder looks up users by ID or email.
type UserFinder interface {
	FindUserByID(ctx context.Context, id int64) (*user.User, error)
	FindUserByEmail(ctx context.Context, email string) (*user.User, error)
}

// TokenVerifier validates a token and loads the user it names.
type TokenVerifier struct {
	jwt   *JWTManager
	users UserFinder
}

// NewTokenVerifier creates a TokenVerifier.
func NewTokenVerifier(jwt *JWTManager, users UserFinder) *TokenVerifier {
	return &TokenVerifier{
		jwt:   jwt,
		users: users,
	}
}

// Verify returns the user identified by token. The user_id claim is preferred;
// tokens without it are resolved through their email subject.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (*user.User, error) {
	claims, err := v.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	var u *user.User
	if claims.UserID != nil {
		u, err = v.users.FindUserByID(ctx, *claims.UserID)
	} else {
		u, err = v.users.FindUserByEmail(ctx, claims.Subject)
	}
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to resolve token user: %w", err)
	}
	return u, nil
}
