// Package server contains HTTP and WebSocket handlers for the Echoes API.
package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	_ "echoes/docs" // swagger docs
	"echoes/internal/cache"
	"echoes/internal/config"
	"echoes/internal/featureflags"
	"echoes/internal/middleware"
	"echoes/internal/models"
	"echoes/internal/notifications"
	"echoes/internal/repository"
	"echoes/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// globalRateLimit is the per-IP request ceiling per minute across all routes.
const globalRateLimit = 300

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo repository.UserRepository
	postRepo repository.PostRepository

	notifier     *notifications.Notifier
	hub          *notifications.Hub
	publisher    *realtimePublisher
	featureFlags *featureflags.Manager

	userService         *service.UserService
	postService         *service.PostService
	commentService      *service.CommentService
	feedService         *service.FeedService
	socialService       *service.SocialService
	searchService       *service.SearchService
	notificationService *service.NotificationService
}

// NewServer creates a Server using already-initialized dependencies. The
// bootstrap layer owns connecting to the database and Redis; rdb may be nil.
func NewServer(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	followRepo := repository.NewFollowRepository(db)
	hashtagRepo := repository.NewHashtagRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          rdb,
		promMiddleware: middleware.InitMetrics("echoes-api"),
		userRepo:       userRepo,
		postRepo:       postRepo,
		notifier:       notifications.NewNotifier(rdb),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	s.publisher = &realtimePublisher{hub: s.hub, notifier: s.notifier}

	s.notificationService = service.NewNotificationService(notificationRepo, s.publisher, s.featureFlags)
	s.userService = service.NewUserService(userRepo, postRepo, service.GuestConfig{
		Email:    cfg.GuestEmail,
		Password: cfg.GuestPassword,
		Name:     cfg.GuestName,
	})
	s.postService = service.NewPostService(postRepo, engagementRepo, s.notificationService)
	s.commentService = service.NewCommentService(commentRepo, postRepo, s.notificationService)
	s.feedService = service.NewFeedService(followRepo, postRepo)
	s.socialService = service.NewSocialService(followRepo, userRepo, s.notificationService)
	s.searchService = service.NewSearchService(postRepo, userRepo, hashtagRepo)

	return s, nil
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	bodyLimit := s.config.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 2
	}
	app := fiber.New(fiber.Config{
		AppName:      "Echoes API",
		BodyLimit:    bodyLimit * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler turns errors that escape a handler into the standard envelope.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := models.StatusCode(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
		return models.RespondWithError(c, status, models.NewInternalError(err))
	}
	return models.RespondWithError(c, status, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.Timeout(s.config.RequestTimeout))

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())

	// After requestid and context middleware so log lines carry both ids.
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit (e.g. limiter) so
	// browser clients still see CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global per-IP ceiling. Preflight requests are left to CORS.
	app.Use(limiter.New(limiter.Config{
		Max:        globalRateLimit,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)
	if !s.config.IsProduction() {
		app.Get("/monitor", monitor.New(monitor.Config{Title: "Echoes API Monitor"}))
	}

	api := app.Group("/api")

	authPolicy := middleware.FailOpen
	if s.config.RateLimitFailClosed {
		authPolicy = middleware.FailClosed
	}

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimitWithPolicy(
		s.redis, 5, 10*time.Minute, authPolicy, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimitWithPolicy(
		s.redis, 10, 5*time.Minute, authPolicy, "login"), s.Login)
	auth.Post("/guest", middleware.RateLimit(
		s.redis, 20, 5*time.Minute, "guest"), s.GuestLogin)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/me", s.AuthRequired(), s.Me)

	protected := api.Group("", s.AuthRequired())

	posts := protected.Group("/posts")
	// Static segments before /:id.
	posts.Get("/feed", s.GetFeed)
	posts.Get("/bookmarks", s.GetBookmarks)
	posts.Post("/", middleware.RateLimit(
		s.redis, 30, time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id/replies", s.GetReplies)
	posts.Get("/:id/echo-root", s.GetEchoRoot)
	posts.Post("/:id/echo", s.EchoPost)
	posts.Post("/:id/reply", middleware.RateLimit(
		s.redis, 30, time.Minute, "create_post"), s.ReplyToPost)
	posts.Post("/:id/like/toggle", s.ToggleLike)
	posts.Post("/:id/like", s.LikePost)
	posts.Delete("/:id/like", s.UnlikePost)
	posts.Post("/:id/bookmark", s.ToggleBookmark)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", middleware.RateLimit(
		s.redis, 30, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:id", s.GetPost)
	posts.Patch("/:id", s.EditPost)
	posts.Delete("/:id", s.DeletePost)

	users := protected.Group("/users")
	users.Get("/", s.GetUsers)
	users.Get("/following", s.GetFollowing)
	users.Get("/follow-requests/outgoing", s.GetOutgoingFollowRequests)
	users.Get("/follow-requests/incoming", s.GetIncomingFollowRequests)
	users.Post("/follow-requests/:id/accept", s.AcceptFollowRequest)
	users.Post("/follow-requests/:id/reject", s.RejectFollowRequest)
	users.Post("/me/avatar", s.UpdateAvatar)
	users.Post("/me/bio", s.UpdateBio)
	users.Post("/:id/follow-request", middleware.RateLimit(
		s.redis, 30, 5*time.Minute, "follow_request"), s.SendFollowRequest)
	users.Get("/:id", s.GetUserProfile)

	search := protected.Group("/search")
	search.Get("/posts", middleware.RateLimit(
		s.redis, 60, time.Minute, "search"), s.SearchPosts)
	search.Get("/users", middleware.RateLimit(
		s.redis, 60, time.Minute, "search"), s.SearchUsers)
	search.Get("/trending-hashtags", s.TrendingHashtags)
	search.Get("/hashtags/:tag", s.PostsByHashtag)

	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread", s.GetUnreadCount)
	notifs.Patch("/mark-all/read", s.MarkAllNotificationsRead)
	notifs.Patch("/:id", s.MarkNotificationRead)

	protected.Get("/feature-flags", s.GetFeatureFlags)

	ws := protected.Group("/ws")
	ws.Get("/notifications", s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports 503 when the database is unreachable. Redis is
// optional: without it the server runs single-instance.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status, overall := fiber.StatusOK, "healthy"
	if dbStatus != "healthy" {
		status, overall = fiber.StatusServiceUnavailable, "unhealthy"
	} else if redisStatus == "unhealthy" {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired verifies the session token and stores the user id in locals
// and in the request context. Websocket routes may pass the token as a query
// parameter because browsers cannot set headers on the upgrade request.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowQuery := strings.HasPrefix(c.Path(), "/api/ws")
		tokenString := middleware.ExtractToken(c, allowQuery)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if claims.JTI != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), cache.BlacklistKey(claims.JTI)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("userID", claims.UserID)
		c.Locals("jti", claims.JTI)
		c.Locals("tokenExp", claims.ExpiresAt)
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, claims.UserID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// Start builds the app, wires the hub to Redis and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.notifier.Enabled() {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring",
					slog.String("hub", s.hub.Name()),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests, closes websocket clients and releases
// the database and Redis connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
