// Package api wires the fiber app: health and stats endpoints, the room
// directory routes, and the WebSocket upgrade path.
package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/fathima-sithara/realtime-service/internal/auth"
	"github.com/fathima-sithara/realtime-service/internal/hub"
	"github.com/fathima-sithara/realtime-service/internal/rooms"
	"github.com/fathima-sithara/realtime-service/internal/ws"
)

type Server struct {
	hub *hub.Hub
	dir rooms.Directory
}

// NewServer builds the fiber app. dir may be nil when no room store is
// configured; the room routes then answer 503.
func NewServer(wsSrv *ws.Server, h *hub.Hub, dir rooms.Directory, verifier *auth.Verifier) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{hub: h, dir: dir}

	api := app.Group("/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api.Get("/stats", func(c *fiber.Ctx) error {
		roomCount, connCount := h.Stats()
		return c.JSON(fiber.Map{"rooms": roomCount, "connections": connCount})
	})

	api.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(wsSrv.HandleWS()))

	roomAPI := api.Group("/rooms", auth.Middleware(verifier))
	roomAPI.Post("/", s.createRoom)
	roomAPI.Get("/:room_id", s.getRoom)

	return app
}

func (s *Server) createRoom(c *fiber.Ctx) error {
	if s.dir == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "room store not configured")
	}
	id, ok := auth.IdentityFromCtx(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	var req struct {
		RoomID string `json:"roomId"`
		Name   string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	if req.RoomID == "" {
		req.RoomID = uuid.New().String()
	}

	room, err := s.dir.Create(c.Context(), req.RoomID, req.Name, id.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

func (s *Server) getRoom(c *fiber.Ctx) error {
	if s.dir == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "room store not configured")
	}
	room, err := s.dir.Get(c.Context(), c.Params("room_id"))
	if errors.Is(err, rooms.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "room not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(room)
}
