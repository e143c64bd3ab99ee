package server

import (
	"context"
	"log/slog"

	"echoes/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler registers notification connections with the hub.
// Authentication is handled by route middleware and userID is read from
// connection locals. Non-upgrade requests get 426 from websocket.New.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok || uid == 0 {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration refused",
				slog.Uint64("user_id", uint64(uid)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		// Seed the badge so the client does not need a separate request.
		ctx := context.Background()
		if n, err := s.notificationService.UnreadCount(ctx, uid); err == nil {
			if msg, err := encodeEvent(EventUnreadCount, map[string]interface{}{"unread": n}); err == nil {
				client.TrySend([]byte(msg))
			}
		}

		go client.WritePump()
		client.ReadPump()
	})
}
