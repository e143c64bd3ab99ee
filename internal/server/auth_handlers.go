package server

import (
	"log/slog"
	"time"

	"echoes/internal/cache"
	"echoes/internal/middleware"
	"echoes/internal/models"
	"echoes/internal/observability"
	"echoes/internal/service"

	"github.com/gofiber/fiber/v2"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,notblank,min=2"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new account and start a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body signupRequest true "Signup request"
// @Success 201 {object} object{token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := bind(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Signup(c.UserContext(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return respondError(c, err)
	}
	return s.issueSession(c, fiber.StatusCreated, user)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Login credentials"
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		observability.AuthFailures.WithLabelValues("login").Inc()
		return respondError(c, err)
	}
	return s.issueSession(c, fiber.StatusOK, user)
}

// GuestLogin handles POST /api/auth/guest
// @Summary Guest login
// @Description Start a session on the shared guest account
// @Tags auth
// @Produce json
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/guest [post]
func (s *Server) GuestLogin(c *fiber.Ctx) error {
	user, err := s.userService.GuestLogin(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return s.issueSession(c, fiber.StatusOK, user)
}

// Logout handles POST /api/auth/logout. The token id is blacklisted until the
// token would have expired anyway.
// @Summary Logout
// @Tags auth
// @Produce json
// @Success 200 {object} object{ok=bool}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals("jti").(string)
	exp, _ := c.Locals("tokenExp").(time.Time)

	if jti != "" && s.redis != nil {
		if ttl := time.Until(exp); ttl > 0 {
			if err := s.redis.Set(c.UserContext(), cache.BlacklistKey(jti), "1", ttl).Err(); err != nil {
				observability.RedisErrorRate.WithLabelValues("blacklist").Inc()
				middleware.Logger.WarnContext(c.UserContext(), "failed to blacklist token",
					slog.String("error", err.Error()))
			}
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return ok(c)
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.UserContext(), currentUserID(c))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Session user no longer exists"))
		}
		return respondError(c, err)
	}
	return c.JSON(user)
}

// issueSession signs a token for user, sets the session cookie and writes
// {token, user} with status.
func (s *Server) issueSession(c *fiber.Ctx, status int, user *models.User) error {
	token, claims, err := middleware.IssueToken(s.config.JWTSecret, user.ID, middleware.SessionTTL)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Status(status).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}
