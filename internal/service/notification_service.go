package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"echoes/internal/featureflags"
	"echoes/internal/middleware"
	"echoes/internal/models"
	"echoes/internal/observability"
	"echoes/internal/repository"
)

// MaxNotifications caps the notification list.
const MaxNotifications = 50

// Notifier records a social event for its recipient. Implementations must not
// fail the action that triggered them.
type Notifier interface {
	Notify(ctx context.Context, in NotifyInput)
}

// Publisher pushes a payload to a user's realtime channel.
type Publisher interface {
	PublishUser(ctx context.Context, userID uint, payload string) error
}

// NotifyInput describes one notification.
type NotifyInput struct {
	UserID  uint
	Type    models.NotificationType
	ActorID uint
	PostID  *uint
}

type NotificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
	flags     *featureflags.Manager
}

func NewNotificationService(
	repo repository.NotificationRepository,
	publisher Publisher,
	flags *featureflags.Manager,
) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher, flags: flags}
}

// Notify writes the notification and pushes it to the recipient's live
// connections. Errors are logged and counted, never returned. Users are not
// notified about their own actions.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) {
	if in.UserID == 0 || in.UserID == in.ActorID {
		return
	}

	n := &models.Notification{UserID: in.UserID, Type: in.Type, PostID: in.PostID}
	if in.ActorID != 0 {
		actor := in.ActorID
		n.ActorID = &actor
	}

	log := middleware.Logger.With(
		slog.String("type", string(in.Type)),
		slog.Uint64("recipient_id", uint64(in.UserID)),
	)

	if err := s.repo.Create(ctx, n); err != nil {
		observability.NotificationFailures.WithLabelValues("persist").Inc()
		log.ErrorContext(ctx, "failed to persist notification", slog.String("error", err.Error()))
		return
	}
	observability.NotificationsCreated.WithLabelValues(string(in.Type)).Inc()

	if s.publisher == nil || !s.flags.Enabled(featureflags.RealtimeNotifications, in.UserID) {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":    "notification",
		"payload": n,
	})
	if err != nil {
		observability.NotificationFailures.WithLabelValues("encode").Inc()
		return
	}
	if err := s.publisher.PublishUser(ctx, in.UserID, string(payload)); err != nil {
		observability.NotificationFailures.WithLabelValues("publish").Inc()
		log.WarnContext(ctx, "failed to publish notification", slog.String("error", err.Error()))
	}
}

// List returns the newest notifications of userID.
func (s *NotificationService) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	return s.repo.ListByUser(ctx, userID, MaxNotifications)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one notification read. Notifications of other users are
// reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.repo.MarkRead(ctx, userID, id)
}

// MarkAllRead returns the number of notifications that changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
