// Package server contains the HTTP handlers and web pages for the blog.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "inkpost/docs" // swagger docs
	"inkpost/internal/cache"
	"inkpost/internal/config"
	"inkpost/internal/content"
	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/repository"
	"inkpost/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
)

// bodyLimit leaves room for multipart framing around a maximum size upload.
const bodyLimit = service.MaxUploadBytes + 1024*1024

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	gate           *middleware.Gate
	postRepo       repository.PostRepository
	postService    *service.PostService
	uploadService  *service.UploadService
	renderer       *content.Renderer
	pages          *pageTemplates
}

// NewServer creates a new server instance with all dependencies. Redis is
// optional: when it is not configured or unreachable the server runs
// without a cache, and the upload limit fails open unless
// UPLOAD_RATE_LIMIT_FAIL_CLOSED is set.
func NewServer(cfg *config.Config) (*Server, error) {
	postRepo, err := repository.NewFilePostRepository(cfg.DataDir, cfg.StoreLenientReads)
	if err != nil {
		return nil, fmt.Errorf("post store init failed: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewClient(context.Background(), cfg.RedisURL)
		if err != nil {
			middleware.Logger.Warn("redis unavailable, continuing without cache", "error", err.Error())
			redisClient = nil
		}
	}

	return NewServerWithDeps(cfg, postRepo, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
func NewServerWithDeps(cfg *config.Config, postRepo repository.PostRepository, redisClient *redis.Client) (*Server, error) {
	uploadService, err := service.NewUploadService(cfg.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("upload store init failed: %w", err)
	}

	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}

	s := &Server{
		config:         cfg,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("inkpost"),
		gate:           middleware.NewGate(middleware.GateConfigFrom(cfg)),
		postRepo:       postRepo,
		uploadService:  uploadService,
		renderer:       content.NewRenderer(cfg.PublicAPIBase),
		pages:          pages,
	}
	s.postService = service.NewPostService(postRepo, cache.NewPostCache(s.redisCmdable(), middleware.Logger))

	return s, nil
}

// redisCmdable hides a nil client behind a nil interface.
func (s *Server) redisCmdable() redis.Cmdable {
	if s.redis == nil {
		return nil
	}
	return s.redis
}

func (s *Server) uploadLimitPolicy() middleware.FailPolicy {
	if s.config.UploadFailClosed {
		return middleware.FailClosed
	}
	return middleware.FailOpen
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "inkpost",
		BodyLimit:    bodyLimit,
		ErrorHandler: s.errorHandler,
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusRequestEntityTooLarge:
			return models.RespondWithError(c, fe.Code, models.NewPayloadTooLargeError("file_too_large"))
		case fiber.StatusNotFound:
			return models.RespondWithError(c, fe.Code, models.NewNotFoundError())
		}
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}

	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error(), "path", c.Path())
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing runs before the context middleware so the trace id reaches the logger
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Post pages embed images from arbitrary hosts and uploads are fetched cross-origin.
	app.Use(helmet.New(helmet.Config{
		CrossOriginEmbedderPolicy: "unsafe-none",
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses carry the headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:  s.config.AllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: "WWW-Authenticate, X-Request-ID",
		MaxAge:        86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate_limit_exceeded",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	api.Get("/health", s.HealthCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api.Get("/swagger/*", swagger.HandlerDefault)

	writes := s.gate.WriteRequired()

	api.Get("/authz", writes, s.Authz)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/:id", s.GetPost)
	posts.Post("/", writes, s.CreatePost)
	posts.Put("/:id", writes, s.UpdatePost)
	posts.Delete("/:id", writes, s.DeletePost)

	api.Post("/upload",
		middleware.RateLimitWithPolicy(s.redisCmdable(), s.config.UploadRateLimit, time.Minute, s.uploadLimitPolicy(), "upload"),
		writes,
		s.UploadImage,
	)

	app.Static(strings.TrimSuffix(content.UploadsPrefix, "/"), s.uploadService.Dir(), fiber.Static{
		MaxAge: 3600,
	})

	app.Get("/", s.IndexPage)
	app.Get("/p/:slug", s.PostPage)
}

// HealthCheck handles GET /api/health
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(OKResponse{OK: true})
}

func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports 503 only when the post store cannot be read. Redis
// is optional, so its state is reported without failing the check.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if err := s.postRepo.Ping(ctx); err != nil {
		storeStatus = "unhealthy"
		middleware.Logger.ErrorContext(ctx, "readiness: post store unreadable", "error", err.Error())
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storeStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// Authz handles GET /api/authz. It only runs once the gate has allowed the request.
func (s *Server) Authz(c *fiber.Ctx) error {
	method, _ := c.Locals(middleware.AuthMethodLocal).(string)
	return c.JSON(AuthzResponse{OK: true, Method: method})
}

// Shutdown releases server resources. The Fiber app is shut down by its owner.
func (s *Server) Shutdown(_ context.Context) error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return fmt.Errorf("close redis: %w", err)
		}
	}
	return nil
}
