// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	"github.com/peykaro/whatsapp-dispatch/app/handlers"
	"github.com/peykaro/whatsapp-dispatch/app/middleware"
	"github.com/peykaro/whatsapp-dispatch/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Config carries the server and security settings the router consumes.
// Zero values fall back to the defaults below.
type Config struct {
	AllowedOrigins  []string
	BodyLimit       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RateLimit       int
	RateLimitWindow time.Duration
	EnableMetrics   bool
}

func (c *Config) applyDefaults() {
	if c.BodyLimit <= 0 {
		c.BodyLimit = 8 * 1024 * 1024 // spreadsheet imports included
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 2000
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = 1 * time.Minute
	}
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app              *fiber.App
	messageHandler   handlers.MessageHandlerInterface
	webhookHandler   handlers.WebhookHandlerInterface
	bulkHandler      handlers.BulkHandlerInterface
	recipientHandler handlers.RecipientListHandlerInterface
	eventHandler     handlers.EventHandlerInterface
	accountHandler   handlers.AccountHandlerInterface

	config Config
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	messageHandler handlers.MessageHandlerInterface,
	webhookHandler handlers.WebhookHandlerInterface,
	bulkHandler handlers.BulkHandlerInterface,
	recipientHandler handlers.RecipientListHandlerInterface,
	eventHandler handlers.EventHandlerInterface,
	accountHandler handlers.AccountHandlerInterface,
	cfg Config,
) Router {
	cfg.applyDefaults()

	app := fiber.New(fiber.Config{
		AppName:      "WhatsApp Dispatch API",
		ServerHeader: "whatsapp-dispatch",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:              app,
		messageHandler:   messageHandler,
		webhookHandler:   webhookHandler,
		bulkHandler:      bulkHandler,
		recipientHandler: recipientHandler,
		eventHandler:     eventHandler,
		accountHandler:   accountHandler,
		config:           cfg,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	// Prometheus scrape endpoint, outside the API group and rate limits
	if r.config.EnableMetrics {
		r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// General rate limiting on all API routes
	api.Use(limiter.New(limiter.Config{
		Max:        r.config.RateLimit,
		Expiration: r.config.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// Health checks and gateway callbacks are exempt
			return c.Path() == "/api/v1/health" || strings.HasPrefix(c.Path(), "/api/v1/webhook/")
		},
	}))

	// Outgoing message endpoints
	messages := api.Group("/messages")
	messages.Post("/template", r.messageHandler.SendTemplate)
	messages.Post("/custom", r.messageHandler.SendCustom)
	messages.Get("/preview", r.messageHandler.Preview)
	messages.Get("/:id", r.messageHandler.Get)
	messages.Post("/:id/retry", r.messageHandler.Retry)

	// Gateway webhook
	api.Post("/webhook/evolution", r.webhookHandler.Evolution)

	// Document change events from upstream systems
	api.Post("/events/document", r.eventHandler.DocumentEvent)

	// Bulk fan-out
	bulk := api.Group("/bulk")
	bulk.Post("/", r.bulkHandler.Create)
	bulk.Get("/:id", r.bulkHandler.Progress)
	bulk.Post("/:id/start", r.bulkHandler.Start)
	bulk.Post("/:id/retry", r.bulkHandler.Retry)

	// Recipient lists
	lists := api.Group("/recipient-lists")
	lists.Post("/", r.recipientHandler.Create)
	lists.Post("/:name/import", r.recipientHandler.Import)
	lists.Post("/:name/refresh", r.recipientHandler.Refresh)
	lists.Delete("/:name/recipients/:number", r.recipientHandler.Remove)

	// Sender accounts
	accounts := api.Group("/accounts")
	accounts.Post("/", r.accountHandler.Save)
	accounts.Get("/:name", r.accountHandler.Get)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		XDNSPrefetchControl:   "off",
		XDownloadOptions:      "noopen",
		XPermittedCrossDomain: "none",
	}))

	// CORS middleware
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.config.AllowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
		},
		MaxAge: utils.CORSMaxAge,
	}))

	// Compression middleware
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Structured request logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health" || c.Path() == "/metrics"
		},
	}))

	// Prometheus HTTP metrics
	if r.config.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	// Recovery middleware with panic logging
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "whatsapp-dispatch",
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
