package api

import (
	"context"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const welcomeMessage = "Welcome to the marketplace messaging service"

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes(app *fiber.App) {
	app.Get("/", m.welcomeHandler)
	app.Get("/health", m.healthHandler)

	messages := app.Group("/messages")

	// WebSocket endpoint
	messages.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	messages.Get("/ws", websocket.New(m.handleWebSocket))

	messages.Get("/inbox", AuthMiddleware(m.auth), m.inboxHandler)
}

// welcomeHandler handles GET /.
func (m *Module) welcomeHandler(c *fiber.Ctx) error {
	return c.JSON(WelcomeResponse{Message: welcomeMessage})
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:  "healthy",
		Modules: make(map[string]ModuleHealth, len(m.healthSources)),
	}
	for _, src := range m.healthSources {
		h := src.Health(c.UserContext())
		resp.Modules[src.Name()] = ModuleHealth{
			Healthy: h.Healthy,
			Message: h.Message,
			Details: h.Details,
		}
		if !h.Healthy {
			resp.Status = "unhealthy"
		}
	}

	status := fiber.StatusOK
	if resp.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

// handleWebSocket hands an upgraded connection to the messaging module.
// The token is read from the query string since browsers cannot set headers
// on websocket requests.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	m.messaging.ServeConn(context.Background(), c, c.Query("token"))
}

// inboxHandler handles GET /messages/inbox.
func (m *Module) inboxHandler(c *fiber.Ctx) error {
	u, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Could not validate credentials",
		})
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_request",
				Message: "limit must be a non-negative integer",
			})
		}
		limit = n
	}

	frames, cached, err := m.inbox.List(c.UserContext(), u.ID, limit)
	if err != nil {
		m.logger.Error("Failed to list inbox", "userID", u.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "inbox_failed",
			Message: "Failed to load inbox",
		})
	}

	if cached {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
	return c.JSON(frames)
}
