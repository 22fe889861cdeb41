package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"labwatch/internal/config"
)

// Server represents the HTTP server with all configured routes and middleware.
type Server struct {
	app    *fiber.App
	config *config.ServerConfig
	logger *slog.Logger

	// Handlers
	alertHandler        *AlertHandler
	ruleHandler         *RuleHandler
	notificationHandler *NotificationHandler
	ingestHandler       *IngestHandler
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config              *config.ServerConfig
	Logger              *slog.Logger
	AlertHandler        *AlertHandler
	RuleHandler         *RuleHandler
	NotificationHandler *NotificationHandler
	IngestHandler       *IngestHandler
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable strict routing for consistency
		StrictRouting: true,
		// Case sensitive routing
		CaseSensitive: true,
		ReadTimeout:   deps.Config.ReadTimeout,
		WriteTimeout:  deps.Config.WriteTimeout,
		IdleTimeout:   deps.Config.IdleTimeout,
		// Custom error handler
		ErrorHandler: customErrorHandler,
	})

	s := &Server{
		app:                 app,
		config:              deps.Config,
		logger:              deps.Logger,
		alertHandler:        deps.AlertHandler,
		ruleHandler:         deps.RuleHandler,
		notificationHandler: deps.NotificationHandler,
		ingestHandler:       deps.IngestHandler,
	}

	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// registerMiddleware sets up all middleware for the server.
func (s *Server) registerMiddleware() {
	// Recovery middleware to handle panics
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware for tracing
	s.app.Use(requestid.New())

	// Logger middleware for request logging
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	// Health check endpoint (outside versioned API)
	s.app.Get("/healthz", s.healthCheck)

	// Prometheus metrics endpoint
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.app.Group("/v1")

	// Event ingestion
	v1.Post("/events", s.ingestHandler.IngestEvent)
	v1.Post("/inventory/metrics", s.ingestHandler.IngestMetric)

	// Alerts
	v1.Get("/alerts", s.alertHandler.List)
	v1.Delete("/alerts", s.alertHandler.ClearAll)
	v1.Get("/alerts/:id", s.alertHandler.GetByID)
	v1.Post("/alerts/:id/read", s.alertHandler.MarkRead)
	v1.Post("/alerts/:id/resolve", s.alertHandler.Resolve)
	v1.Post("/alerts/:id/actions/:actionID", s.alertHandler.ExecuteAction)

	// Dashboard aggregation
	v1.Get("/dashboard", s.alertHandler.Dashboard)

	// Notifications
	v1.Get("/notifications", s.notificationHandler.List)
	v1.Delete("/notifications", s.notificationHandler.ClearAll)
	v1.Post("/notifications/read-all", s.notificationHandler.MarkAllRead)
	v1.Post("/notifications/:id/read", s.notificationHandler.MarkRead)
	v1.Delete("/notifications/:id", s.notificationHandler.Remove)

	// Alert rules CRUD
	v1.Post("/rules", s.ruleHandler.Create)
	v1.Get("/rules", s.ruleHandler.List)
	v1.Get("/rules/:id", s.ruleHandler.GetByID)
	v1.Put("/rules/:id", s.ruleHandler.Update)
	v1.Delete("/rules/:id", s.ruleHandler.Delete)
}

// healthCheck returns the health status of the service.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return Success(c, map[string]string{
		"status": "healthy",
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler handles errors returned from handlers.
func customErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return Error(c, e.Code, ErrCodeInternalError, e.Message)
	}

	return InternalError(c, fmt.Sprintf("unexpected error: %v", err))
}
