package api

import (
	"errors"
	"strings"

	"github.com/example/marketplace-messaging/domain/user"
	"github.com/example/marketplace-messaging/modules/auth"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

const (
	// UserContextKey is the key used to store the authenticated user in the Fiber context.
	UserContextKey = "user"
)

// AuthMiddleware creates a middleware that resolves the bearer token to a user.
func AuthMiddleware(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Token is required",
			})
		}

		u, err := authPort.Verify(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
					Error:   "unauthorized",
					Message: "Could not validate credentials",
				})
			}
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error:   "auth_unavailable",
				Message: "Authentication is temporarily unavailable",
			})
		}

		c.Locals(UserContextKey, u)
		return c.Next()
	}
}

// currentUser returns the user stored by AuthMiddleware.
func currentUser(c *fiber.Ctx) (*user.User, bool) {
	u, ok := c.Locals(UserContextKey).(*user.User)
	return u, ok && u != nil
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware(logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket") {
			return c.Next()
		}
		err := c.Next()
		logger.Info("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode())
		return err
	}
}
