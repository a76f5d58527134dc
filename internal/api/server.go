package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"

	"github.com/euOvictin/messaging-service/internal/auth"
	"github.com/euOvictin/messaging-service/internal/service"
	"github.com/euOvictin/messaging-service/internal/ws"
)

// Pinger is anything the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	history  *service.History
	store    Pinger
	registry Pinger
}

// NewServer wires the HTTP surface: websocket upgrade, history/conversations
// REST and the health probes.
func NewServer(gw *ws.Gateway, history *service.History, verifier *auth.Verifier, store, registry Pinger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())

	s := &Server{history: history, store: store, registry: registry}

	app.Get("/health", s.health)
	app.Get("/ready", s.ready)

	app.Get("/ws", gw.Upgrade(), websocket.New(gw.Handle()))

	api := app.Group("/api/v1", requireAuth(verifier))
	api.Get("/messages", s.getMessages)
	api.Get("/conversations", s.getConversations)

	return app
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "messaging-service",
		"timestamp": time.Now().UTC(),
	})
}

// ready pings the ledger and the presence registry; either failing makes the
// service not ready.
func (s *Server) ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	deps := fiber.Map{"mongodb": "connected", "redis": "connected"}
	failed := false
	if err := s.store.Ping(ctx); err != nil {
		deps["mongodb"] = "unreachable"
		failed = true
	}
	if err := s.registry.Ping(ctx); err != nil {
		deps["redis"] = "unreachable"
		failed = true
	}

	if failed {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":       "not_ready",
			"service":      "messaging-service",
			"dependencies": deps,
		})
	}
	return c.JSON(fiber.Map{
		"status":       "ready",
		"service":      "messaging-service",
		"dependencies": deps,
	})
}
