// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "ynetwork/docs" // swagger docs
	"ynetwork/internal/bootstrap"
	"ynetwork/internal/config"
	"ynetwork/internal/featureflags"
	"ynetwork/internal/middleware"
	"ynetwork/internal/models"
	"ynetwork/internal/notifications"
	"ynetwork/internal/repository"
	"ynetwork/internal/service"
	"ynetwork/internal/storage"

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

// devFilesPrefix is where uploads are served from when no bucket is configured in development.
const devFilesPrefix = "/api/files"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	featureFlags   *featureflags.Manager
	limiter        *middleware.RateLimiter

	notifier *notifications.Notifier
	presence *notifications.PresenceMirror
	registry *notifications.Registry
	devFiles *storage.MemoryStore

	authSvc         *service.AuthService
	userSvc         *service.UserService
	followSvc       *service.FollowService
	postSvc         *service.PostService
	commentSvc      *service.CommentService
	chatSvc         *service.ChatService
	notificationSvc *service.NotificationService
	groupSvc        *service.GroupService
	eventSvc        *service.EventService
	moderationSvc   *service.ModerationService
	mediaSvc        *service.MediaService
	searchSvc       *service.SearchService
}

// NewServer connects to the database and Redis and builds a server on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; realtime fan-out then stays local to this instance.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	flags, err := featureflags.Load(cfg.FeatureFlagsFile, cfg.FeatureFlags)
	if err != nil {
		return nil, err
	}
	store, devFiles, err := newObjectStore(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("ynetwork-api"),
		featureFlags:   flags,
		limiter:        middleware.NewRateLimiter(redisClient, cfg.Env),
		notifier:       notifications.NewNotifier(redisClient),
		presence:       notifications.NewPresenceMirror(redisClient, notifications.PresenceMirrorConfig{}),
		devFiles:       devFiles,
	}
	s.registry = notifications.NewRegistry(s.presence, s.notifier)

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	groupRepo := repository.NewGroupRepository(db)

	s.notificationSvc = service.NewNotificationService(
		repository.NewNotificationRepository(db), userRepo, s.registry,
		service.NotificationServiceConfig{Workers: cfg.NotifyWorkers, QueueSize: cfg.NotifyQueueSize},
	)
	s.authSvc = service.NewAuthService(userRepo)
	s.userSvc = service.NewUserService(userRepo)
	s.followSvc = service.NewFollowService(followRepo, userRepo, s.notificationSvc)
	s.postSvc = service.NewPostService(postRepo, userRepo, followRepo, groupRepo, s.notificationSvc)
	s.commentSvc = service.NewCommentService(commentRepo, userRepo, s.postSvc, s.notificationSvc)
	s.chatSvc = service.NewChatService(repository.NewChatRepository(db), userRepo, s.registry, s.notificationSvc)
	s.groupSvc = service.NewGroupService(groupRepo, followRepo, userRepo, s.notificationSvc)
	s.eventSvc = service.NewEventService(repository.NewEventRepository(db), followRepo, userRepo, s.notificationSvc)
	s.moderationSvc = service.NewModerationService(repository.NewReportRepository(db), postRepo, commentRepo, userRepo)
	s.mediaSvc = service.NewMediaService(repository.NewMediaRepository(db), store, cfg.UploadMaxSizeMB)
	s.searchSvc = service.NewSearchService(s.userSvc, s.postSvc)

	return s, nil
}

// newObjectStore picks S3 when credentials are configured. Development falls back to an
// in-memory store served under devFilesPrefix; production without a bucket rejects uploads.
func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, *storage.MemoryStore, error) {
	if cfg.S3Configured() {
		st, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("object storage: %w", err)
		}
		return st, nil, nil
	}
	if cfg.IsProduction() {
		slog.Warn("S3 is not configured; media uploads are disabled")
		return storage.Unconfigured{}, nil, nil
	}
	mem := storage.NewMemoryStore(devFilesPrefix)
	return mem, mem, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(recover.Config{EnableStackTrace: !s.config.IsProduction()}))

	// Request ID for tracing
	app.Use(requestid.New())

	// Propagates request and user ids into the request context for logging
	app.Use(middleware.ContextMiddleware())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later."))
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "YNetwork Backend Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Public routes must be registered before the protected group.
	auth := api.Group("/auth")
	auth.Post("/signup", s.limiter.Handler(middleware.LimitSignup), s.Signup)
	auth.Post("/login", s.limiter.Handler(middleware.LimitLogin), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/session", s.AuthRequired(), s.GetSession)

	api.Get("/feed/public", s.GetPublicFeed)
	api.Get("/hashtags/trending", s.GetTrendingHashtags)
	if s.devFiles != nil {
		api.Get("/files/*", s.ServeDevFile)
	}

	protected := api.Group("", s.AuthRequired())

	users := protected.Group("/users")
	users.Get("/", s.ListUsers)
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Delete("/me", s.DeleteMyAccount)
	users.Get("/suggested", s.GetSuggestedUsers)
	users.Get("/search", s.limiter.Handler(middleware.LimitSearch), s.SearchUsers)
	users.Get("/username/:username", s.GetUserByUsername)
	// Specific /:id/:resource routes before the generic /:id route
	users.Get("/:id/posts", s.GetUserPosts)
	users.Post("/:id/follow", s.limiter.Handler(middleware.LimitFollow), s.FollowUser)
	users.Delete("/:id/follow", s.UnfollowUser)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Get("/:id", s.GetUserProfile)

	protected.Get("/feed", s.GetFeed)
	protected.Get("/saved-posts", s.GetSavedPosts)
	protected.Get("/hashtags/:tag/posts", s.GetHashtagPosts)
	protected.Get("/search", s.limiter.Handler(middleware.LimitSearch), s.Search)

	posts := protected.Group("/posts")
	posts.Post("/", s.limiter.Handler(middleware.LimitCreatePost), s.CreatePost)
	posts.Get("/search", s.limiter.Handler(middleware.LimitSearch), s.SearchPosts)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", s.limiter.Handler(middleware.LimitCreateComment), s.CreateComment)
	posts.Post("/:id/like", s.ToggleLike)
	posts.Get("/:id/likes", s.GetLikers)
	posts.Post("/:id/save", s.ToggleSave)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	comments := protected.Group("/comments")
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	conversations := protected.Group("/conversations")
	conversations.Post("/", s.CreateConversation)
	conversations.Get("/", s.GetConversations)
	conversations.Get("/:id/messages", s.GetMessages)
	conversations.Post("/:id/messages", s.limiter.Handler(middleware.LimitSendMessage), s.SendMessage)
	conversations.Put("/:id/read", s.MarkConversationRead)
	conversations.Get("/:id", s.GetConversation)

	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadNotificationCount)
	notifs.Post("/read-all", s.MarkAllNotificationsRead)
	notifs.Put("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/:id", s.DeleteNotification)

	groups := protected.Group("/groups")
	groups.Post("/", s.limiter.Handler(middleware.LimitCreateGroup), s.CreateGroup)
	groups.Get("/", s.ListGroups)
	groups.Get("/mine", s.GetMyGroups)
	groups.Get("/:id/members", s.GetGroupMembers)
	groups.Get("/:id/posts", s.GetGroupPosts)
	groups.Post("/:id/join", s.JoinGroup)
	groups.Post("/:id/leave", s.LeaveGroup)
	groups.Get("/:id", s.GetGroup)
	groups.Put("/:id", s.UpdateGroup)
	groups.Delete("/:id", s.DeleteGroup)

	events := protected.Group("/events")
	events.Post("/", s.limiter.Handler(middleware.LimitCreateEvent), s.CreateEvent)
	events.Get("/", s.ListEvents)
	events.Post("/:id/join", s.JoinEvent)
	events.Post("/:id/leave", s.LeaveEvent)
	events.Get("/:id", s.GetEvent)
	events.Put("/:id", s.UpdateEvent)
	events.Delete("/:id", s.DeleteEvent)

	protected.Post("/reports", s.limiter.Handler(middleware.LimitReport), s.CreateReport)

	moderation := protected.Group("/moderation", s.AdminRequired())
	moderation.Get("/reports", s.ListReports)
	moderation.Get("/reports/:id", s.GetReport)
	moderation.Put("/reports/:id", s.ResolveReport)
	moderation.Post("/users/:id/ban", s.BanUser)
	moderation.Delete("/users/:id/ban", s.UnbanUser)

	protected.Post("/upload", s.FeatureRequired(featureflags.MediaUpload),
		s.limiter.Handler(middleware.LimitUpload), s.UploadMedia)
	protected.Get("/media", s.ListMyMedia)
	protected.Delete("/media/*", s.DeleteMedia)

	protected.Post("/ws/ticket", s.IssueWSTicket)
	protected.Get("/ws", s.WebsocketHandler())

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// ErrorHandler renders errors that escape handlers and middleware.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		slog.ErrorContext(c.UserContext(), "unhandled request error",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return models.RespondWithError(c, status, err)
}

// NewApp builds the Fiber application with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "YNetwork API",
		ErrorHandler: ErrorHandler,
		BodyLimit:    (s.uploadLimitMB() + 1) << 20,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) uploadLimitMB() int {
	if s.config.UploadMaxSizeMB > 0 {
		return s.config.UploadMaxSizeMB
	}
	return service.DefaultMediaMaxUploadSizeMB
}

// StartBackground starts the notification workers, the presence reaper and the
// cross-instance event subscription.
func (s *Server) StartBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.notificationSvc.Start()
	s.presence.Start()
	if err := s.registry.StartWiring(ctx); err != nil {
		slog.Error("failed to start realtime wiring", slog.String("error", err.Error()))
	}
}

// Start starts the server
func (s *Server) Start() error {
	s.StartBackground()
	s.app = s.NewApp()

	slog.Info("server starting", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			slog.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.registry.Shutdown(ctx); err != nil {
		slog.Error("error shutting down presence registry", slog.String("error", err.Error()))
	}

	// Drain queued notifications before the database goes away.
	if err := s.notificationSvc.Stop(ctx); err != nil {
		slog.Error("error stopping notification workers", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			slog.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			slog.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	slog.Info("server shutdown complete")
	return nil
}
