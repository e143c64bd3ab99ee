package server

import (
	"echoes/internal/models"

	"github.com/gofiber/fiber/v2"
)

type avatarRequest struct {
	AvatarURL string `json:"avatarUrl" validate:"required,url"`
}

type bioRequest struct {
	Bio string `json:"bio"`
}

// GetUsers handles GET /api/users
// @Summary User directory
// @Description Every other user plus the ids the viewer follows or has pending requests to
// @Tags users
// @Produce json
// @Success 200 {object} service.UsersOverview
// @Security BearerAuth
// @Router /users [get]
func (s *Server) GetUsers(c *fiber.Ctx) error {
	overview, err := s.socialService.ListUsers(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(overview)
}

// GetUserProfile handles GET /api/users/:id
// @Summary User profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} service.Profile
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.GetProfile(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateAvatar handles POST /api/users/me/avatar
// @Summary Set avatar URL
// @Tags users
// @Accept json
// @Produce json
// @Param request body avatarRequest true "Avatar"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me/avatar [post]
func (s *Server) UpdateAvatar(c *fiber.Ctx) error {
	var req avatarRequest
	if err := bind(c, &req); err != nil {
		return nil
	}
	user, err := s.userService.UpdateAvatar(c.UserContext(), currentUserID(c), req.AvatarURL)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateBio handles POST /api/users/me/bio
// @Summary Set bio
// @Tags users
// @Accept json
// @Produce json
// @Param request body bioRequest true "Bio"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me/bio [post]
func (s *Server) UpdateBio(c *fiber.Ctx) error {
	var req bioRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	// Length is checked after trimming by the service.
	user, err := s.userService.UpdateBio(c.UserContext(), currentUserID(c), req.Bio)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetFollowing handles GET /api/users/following
// @Summary Users the viewer follows
// @Tags follows
// @Produce json
// @Success 200 {object} object{users=[]models.PublicProfile}
// @Security BearerAuth
// @Router /users/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	users, err := s.socialService.ListFollowing(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// GetOutgoingFollowRequests handles GET /api/users/follow-requests/outgoing
// @Summary Pending requests sent by the viewer
// @Tags follows
// @Produce json
// @Success 200 {object} object{requests=[]models.FollowRequest}
// @Security BearerAuth
// @Router /users/follow-requests/outgoing [get]
func (s *Server) GetOutgoingFollowRequests(c *fiber.Ctx) error {
	requests, err := s.socialService.ListPendingOutgoing(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"requests": requests})
}

// GetIncomingFollowRequests handles GET /api/users/follow-requests/incoming
// @Summary Pending requests addressed to the viewer
// @Tags follows
// @Produce json
// @Success 200 {object} object{requests=[]models.FollowRequest}
// @Security BearerAuth
// @Router /users/follow-requests/incoming [get]
func (s *Server) GetIncomingFollowRequests(c *fiber.Ctx) error {
	requests, err := s.socialService.ListPendingIncoming(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"requests": requests})
}

// SendFollowRequest handles POST /api/users/:id/follow-request
// @Summary Ask to follow a user
// @Tags follows
// @Produce json
// @Param id path int true "User ID"
// @Success 201 {object} models.FollowRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/follow-request [post]
func (s *Server) SendFollowRequest(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := s.socialService.SendFollowRequest(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// AcceptFollowRequest handles POST /api/users/follow-requests/:id/accept
// @Summary Accept a follow request
// @Description Only the target of the request may accept it
// @Tags follows
// @Param id path int true "Follow request ID"
// @Success 200 {object} object{ok=bool}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/follow-requests/{id}/accept [post]
func (s *Server) AcceptFollowRequest(c *fiber.Ctx) error {
	requestID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.socialService.AcceptFollowRequest(c.UserContext(), currentUserID(c), requestID); err != nil {
		return respondError(c, err)
	}
	return ok(c)
}

// RejectFollowRequest handles POST /api/users/follow-requests/:id/reject
// @Summary Reject a follow request
// @Tags follows
// @Param id path int true "Follow request ID"
// @Success 200 {object} object{ok=bool}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/follow-requests/{id}/reject [post]
func (s *Server) RejectFollowRequest(c *fiber.Ctx) error {
	requestID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.socialService.RejectFollowRequest(c.UserContext(), currentUserID(c), requestID); err != nil {
		return respondError(c, err)
	}
	return ok(c)
}
