package server

import (
	"context"
	"errors"
	"log/slog"

	"ynetwork/internal/models"
	"ynetwork/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// registerFailure tells the client why its connection was refused before closing it.
func registerFailure(conn *websocket.Conn, err error) {
	code := websocket.CloseInternalServerErr
	if errors.Is(err, notifications.ErrRegistryFull) || errors.Is(err, notifications.ErrRegistryClosed) {
		code = websocket.CloseTryAgainLater
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, err.Error()))
	_ = conn.Close()
}

// WebsocketHandler upgrades GET /api/ws into the caller's realtime handle.
// AuthRequired has already resolved the user from the bearer token or ticket.
func (s *Server) WebsocketHandler() fiber.Handler {
	serve := websocket.New(func(conn *websocket.Conn) {
		uid, _ := conn.Locals(localUserID).(uint)
		if uid == 0 {
			_ = conn.Close()
			return
		}

		h, err := s.registry.Register(context.Background(), uid, conn)
		if err != nil {
			slog.Warn("websocket refused", slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			registerFailure(conn, err)
			return
		}
		h.Serve()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				fiber.NewError(fiber.StatusUpgradeRequired, "Websocket upgrade required"))
		}
		return serve(c)
	}
}
