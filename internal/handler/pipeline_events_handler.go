package handler

import (
	internalWS "content-pipeline-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// PipelineEventsHandler exposes the websocket endpoint that streams live
// pipeline stage events.
type PipelineEventsHandler struct {
	hub *internalWS.Hub
}

func NewPipelineEventsHandler(hub *internalWS.Hub) *PipelineEventsHandler {
	return &PipelineEventsHandler{hub: hub}
}

func (h *PipelineEventsHandler) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/pipeline", websocket.New(func(conn *websocket.Conn) {
		internalWS.ServeWs(h.hub, conn)
	}))
}
