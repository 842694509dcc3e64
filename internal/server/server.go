// Package server contains the HTTP handlers for the engagement API.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"longform/internal/cache"
	"longform/internal/config"
	"longform/internal/database"
	"longform/internal/featureflags"
	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/notifications"
	"longform/internal/repository"
	"longform/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config          *config.Config
	db              *gorm.DB
	redis           *redis.Client
	app             *fiber.App
	promMiddleware  *fiberprometheus.FiberPrometheus
	featureFlags    *featureflags.Manager
	notifier        *notifications.Notifier
	postCache       *cache.Store
	postRepo        repository.PostRepository
	commentRepo     repository.CommentRepository
	reactionRepo    repository.ReactionRepository
	reconcileSvc    *service.ReconcileService
	reactionService *service.ReactionService
	commentService  *service.CommentService
	postService     *service.PostService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional: without it the post cache and notifications are disabled and
	// rate limits fail open.
	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("longform-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		reactionRepo:   repository.NewReactionRepository(db),
	}

	for _, problem := range s.featureFlags.Problems() {
		middleware.Logger.Warn("feature flag ignored", "problem", problem)
	}

	ttl := time.Duration(cfg.PostCacheTTLSeconds) * time.Second
	s.postCache = cache.NewStore(redisClient, cache.PostCacheName, ttl)
	s.notifier = notifications.NewNotifier(redisClient, s.featureFlags)

	s.reconcileSvc = service.NewReconcileService(s.postRepo, s.commentRepo, s.reactionRepo, s.postCache)
	s.reactionService = service.NewReactionService(s.reactionRepo, s.postRepo, s.commentRepo, s.reconcileSvc, s.postCache)
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo, s.reactionRepo, s.reconcileSvc, s.notifier, s.postCache)
	s.postService = service.NewPostService(s.postRepo, s.reactionRepo, s.commentService, s.postCache, s.featureFlags)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and identity
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
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
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Every API route sees the caller identity when a bearer token is sent.
	api := app.Group("/api", middleware.Authenticate(s.config.JWTSecret, false))
	authRequired := middleware.Authenticate(s.config.JWTSecret, true)

	posts := api.Group("/posts")
	posts.Post("/", authRequired, s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route.
	// Anonymous comment writes are refused while the limiter is down; reactions fail open.
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", middleware.RateLimitWithPolicy(
		s.redis, 5, time.Minute, middleware.FailClosed, "create_comment"), s.CreateComment)
	posts.Post("/:id/comments/:commentId/replies", middleware.RateLimitWithPolicy(
		s.redis, 5, time.Minute, middleware.FailClosed, "create_comment"), s.CreateReply)
	posts.Post("/:id/reactions", middleware.RateLimit(
		s.redis, 30, time.Minute, "react"), s.ReactToPost)
	posts.Get("/:id/reactions/state", s.GetPostReactionState)
	posts.Post("/:id/author-comments", authRequired, s.CreateAuthorComment)
	posts.Delete("/:id/author-comments/:commentId", authRequired, s.DeleteAuthorComment)

	posts.Post("/:id/images", authRequired, s.AttachImage)
	posts.Put("/:id/images/:token", authRequired, s.UpdateImage)
	posts.Delete("/:id/images/:token", authRequired, s.RemoveImage)
	posts.Post("/:id/videos", authRequired, s.AttachVideo)
	posts.Put("/:id/videos/:token", authRequired, s.UpdateVideo)
	posts.Delete("/:id/videos/:token", authRequired, s.RemoveVideo)

	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", authRequired, s.UpdatePost)
	posts.Delete("/:id", authRequired, s.DeletePost)

	comments := api.Group("/comments")
	comments.Post("/:commentId/reactions", middleware.RateLimit(
		s.redis, 30, time.Minute, "react"), s.ReactToComment)
	comments.Get("/:commentId/reactions/state", s.GetCommentReactionState)
	comments.Delete("/:commentId", s.DeleteOwnComment)

	admin := api.Group("/admin", authRequired, middleware.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Patch("/comments/:commentId/status", s.SetCommentStatus)
	admin.Delete("/comments/:commentId", s.AdminDeleteComment)
	admin.Post("/posts/:id/reconcile", s.ReconcilePost)
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Longform Engagement API",
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{Error: fiberErr.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so its absence
// does not fail readiness; an unreachable configured Redis does.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app and listens on the configured port. It blocks.
func (s *Server) Start() error {
	s.app = s.App()
	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	// Let in-flight notifications finish before Redis goes away.
	s.notifier.Wait()

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
