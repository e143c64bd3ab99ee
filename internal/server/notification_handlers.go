package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications
// @Summary Newest notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} object{notifications=[]models.Notification}
// @Security BearerAuth
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	items, err := s.notificationService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"notifications": items})
}

// GetUnreadCount handles GET /api/notifications/unread
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Success 200 {object} object{unread=int}
// @Security BearerAuth
// @Router /notifications/unread [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	n, err := s.notificationService.UnreadCount(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"unread": n})
}

// MarkNotificationRead handles PATCH /api/notifications/:id
// @Summary Mark one notification read
// @Tags notifications
// @Param id path int true "Notification ID"
// @Success 200 {object} object{ok=bool}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/{id} [patch]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	userID := currentUserID(c)
	if err := s.notificationService.MarkRead(ctx, userID, id); err != nil {
		return respondError(c, err)
	}
	s.pushUnreadCount(c, userID)
	return ok(c)
}

// MarkAllNotificationsRead handles PATCH /api/notifications/mark-all/read
// @Summary Mark every notification read
// @Tags notifications
// @Produce json
// @Success 200 {object} object{updated=int}
// @Security BearerAuth
// @Router /notifications/mark-all/read [patch]
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	userID := currentUserID(c)
	n, err := s.notificationService.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	s.pushUnreadCount(c, userID)
	return c.JSON(fiber.Map{"updated": n})
}

// pushUnreadCount keeps the user's other open tabs in sync after a read.
func (s *Server) pushUnreadCount(c *fiber.Ctx, userID uint) {
	ctx := c.UserContext()
	n, err := s.notificationService.UnreadCount(ctx, userID)
	if err != nil {
		return
	}
	s.publishUserEvent(ctx, userID, EventUnreadCount, map[string]interface{}{"unread": n})
}
