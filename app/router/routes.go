// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/app/handlers"
	"github.com/amirphl/Omikuji/app/middleware"
	"github.com/amirphl/Omikuji/config"
	"github.com/amirphl/Omikuji/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthPath = "/health"

// HealthCheck probes one backing dependency
type HealthCheck func(ctx context.Context) error

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.ProductionConfig
	logger         *slog.Logger
	sessionHandler handlers.SessionHandlerInterface
	statsHandler   handlers.StatsHandlerInterface
	healthChecks   map[string]HealthCheck
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	logger *slog.Logger,
	sessionHandler handlers.SessionHandlerInterface,
	statsHandler handlers.StatsHandlerInterface,
	healthChecks map[string]HealthCheck,
) *FiberRouter {
	r := &FiberRouter{
		cfg:            cfg,
		logger:         logger,
		sessionHandler: sessionHandler,
		statsHandler:   statsHandler,
		healthChecks:   healthChecks,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Omikuji API",
		ServerHeader: "Omikuji",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	r.app.Get(healthPath, r.healthCheck)
	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Use(middleware.RequireOwnerKey())

	// General rate limit shared by every API route
	api.Use(limiter.New(limiter.Config{
		Max:          r.cfg.Security.GlobalRateLimit,
		Expiration:   r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string { return c.IP() },
		LimitReached: rateLimitReached,
	}))

	// Draws and finalizes get a tighter per-owner budget
	actionLimit := limiter.New(limiter.Config{
		Max:          r.cfg.Game.ActionRateLimit,
		Expiration:   time.Minute,
		KeyGenerator: middleware.OwnerKeyOrIP,
		LimitReached: rateLimitReached,
	})

	sessions := api.Group("/sessions")
	sessions.Post("/", r.sessionHandler.Create)
	sessions.Get("/history/list", r.sessionHandler.History)
	sessions.Get("/history/export", r.sessionHandler.ExportHistory)
	sessions.Post("/:id/draw", actionLimit, r.sessionHandler.Draw)
	sessions.Post("/:id/finalize/auto", actionLimit, r.sessionHandler.FinalizeAuto)
	sessions.Post("/:id/finalize", actionLimit, r.sessionHandler.Finalize)
	sessions.Get("/:id/daily-outcome", r.sessionHandler.DailyOutcome)
	sessions.Get("/:id", r.sessionHandler.Get)

	api.Get("/daily-outcome/today", r.statsHandler.TodayOutcome)

	stats := api.Group("/stats")
	stats.Get("/streaks", r.statsHandler.Streaks)
	stats.Get("/statistics", r.statsHandler.Statistics)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured", "metrics", r.cfg.Metrics.Enabled, "action_rate_limit", r.cfg.Game.ActionRateLimit)
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "0",
		ContentTypeNosniff:    r.cfg.Security.XContentTypeOptions,
		XFrameOptions:         r.cfg.Security.XFrameOptions,
		HSTSMaxAge:            r.cfg.Security.HSTSMaxAge,
		ContentSecurityPolicy: r.cfg.Security.CSPPolicy,
		ReferrerPolicy:        r.cfg.Security.ReferrerPolicy,
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{fiber.HeaderXRequestID, fiber.HeaderContentDisposition},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compressionLevel(r.cfg.Server.CompressionLevel),
		}))
	}

	r.app.Use(middleware.Metrics(healthPath, r.cfg.Metrics.Path))

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				"request_id", requestid.FromContext(c),
				"error", fmt.Sprint(e),
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", "address", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck reports ok only when every dependency answers
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(r.healthChecks))
	for name := range r.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := r.healthChecks[name](ctx); err != nil {
			checks[name] = "down"
			healthy = false
			r.logger.Warn("health check failed", "dependency", name, "error", err)
			continue
		}
		checks[name] = "up"
	}

	data := fiber.Map{
		"status":    "ok",
		"timestamp": utils.UTCNow().Unix(),
		"version":   r.cfg.Deployment.Version,
		"service":   "omikuji-api",
		"checks":    checks,
	}
	if !healthy {
		data["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is degraded",
			Data:    data,
			Error:   &dto.ErrorDetail{Code: "SERVICE_DEGRADED", Message: "One or more dependencies are unavailable"},
		})
	}

	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    data,
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested endpoint was not found",
		Error: &dto.ErrorDetail{
			Code:    "ENDPOINT_NOT_FOUND",
			Message: fmt.Sprintf("%s %s is not a known route", c.Method(), c.Path()),
			Details: fiber.Map{
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler handles errors that escaped the handlers
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	r.logger.Error("unhandled request error",
		"status", code,
		"error", err,
		"request_id", requestid.FromContext(c),
		"path", c.Path(),
	)

	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"
	if code < fiber.StatusInternalServerError && fe != nil {
		message = fe.Message
		errorCode = "REQUEST_ERROR"
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    errorCode,
			Message: message,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: &dto.ErrorDetail{
			Code:    "RATE_LIMIT_EXCEEDED",
			Message: "Too many requests. Please try again later.",
		},
	})
}

func compressionLevel(level int) compress.Level {
	switch {
	case level <= 0:
		return compress.LevelDefault
	case level <= 3:
		return compress.LevelBestSpeed
	default:
		return compress.LevelBestCompression
	}
}
