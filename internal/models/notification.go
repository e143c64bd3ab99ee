package models

import "time"

// NotificationType names the social event that produced a notification.
type NotificationType string

const (
	NotificationLike           NotificationType = "like"
	NotificationComment        NotificationType = "comment"
	NotificationEcho           NotificationType = "echo"
	NotificationReply          NotificationType = "reply"
	NotificationFollowRequest  NotificationType = "follow_request"
	NotificationFollowAccepted NotificationType = "follow_accepted"
)

// Notification is an append-only record of a social event for its recipient.
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index:idx_notifications_user_read" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	ActorID   *uint            `json:"actor_id,omitempty"`
	Actor     *User            `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	PostID    *uint            `json:"post_id,omitempty"`
	Read      bool             `gorm:"not null;default:false;index:idx_notifications_user_read" json:"read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}
