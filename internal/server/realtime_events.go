package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"echoes/internal/middleware"
	"echoes/internal/notifications"
)

// Event type constants prevent typos in event names.
const (
	EventCommentCreated = "comment_created"
	EventUnreadCount    = "unread_count"
)

// realtimePublisher routes payloads through Redis when it is configured, so
// every instance's hub sees them via StartWiring. Without Redis it delivers
// to the local hub directly.
type realtimePublisher struct {
	hub      *notifications.Hub
	notifier *notifications.Notifier
}

func (p *realtimePublisher) PublishUser(ctx context.Context, userID uint, payload string) error {
	if p.notifier.Enabled() {
		return p.notifier.PublishUser(ctx, userID, payload)
	}
	return p.hub.PublishUser(ctx, userID, payload)
}

func (p *realtimePublisher) PublishBroadcast(ctx context.Context, payload string) error {
	if p.notifier.Enabled() {
		return p.notifier.PublishBroadcast(ctx, payload)
	}
	p.hub.BroadcastAll(payload)
	return nil
}

func encodeEvent(eventType string, payload map[string]interface{}) (string, error) {
	b, err := json.Marshal(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	})
	return string(b), err
}

func (s *Server) publishUserEvent(ctx context.Context, userID uint, eventType string, payload map[string]interface{}) {
	message, err := encodeEvent(eventType, payload)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal event",
			slog.String("event", eventType), slog.String("error", err.Error()))
		return
	}
	if err := s.publisher.PublishUser(ctx, userID, message); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish user event",
			slog.String("event", eventType),
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
	}
}

func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload map[string]interface{}) {
	message, err := encodeEvent(eventType, payload)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal event",
			slog.String("event", eventType), slog.String("error", err.Error()))
		return
	}
	if err := s.publisher.PublishBroadcast(ctx, message); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish broadcast event",
			slog.String("event", eventType), slog.String("error", err.Error()))
	}
}
