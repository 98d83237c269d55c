// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/anchorchat/anchor/app/dto"
	"github.com/anchorchat/anchor/app/handlers"
	"github.com/anchorchat/anchor/app/middleware"
	"github.com/anchorchat/anchor/config"
	"github.com/anchorchat/anchor/docs"
	"github.com/anchorchat/anchor/utils"
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
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups everything the router mounts
type Handlers struct {
	Auth    handlers.AuthHandlerInterface
	Payment handlers.PaymentHandlerInterface
	Account *handlers.AccountHandler
	Admin   handlers.AdminHandlerInterface
	AuthMW  *middleware.AuthMiddleware
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app *fiber.App
	h   Handlers
	cfg *config.ProductionConfig
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, cfg *config.ProductionConfig) *FiberRouter {
	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1 * 1024 * 1024
	}

	app := fiber.New(fiber.Config{
		AppName:      "Anchor API",
		ServerHeader: "Anchor",
		ErrorHandler: errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		ProxyHeader: cfg.Server.ProxyHeader,
	})

	return &FiberRouter{
		app: app,
		h:   h,
		cfg: cfg,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	if r.cfg.Metrics.Enabled {
		path := r.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	if !r.isProduction() {
		api.Get("/docs", r.getAPIDocumentation)
		api.Get("/swagger.json", r.serveSwaggerJSON)
		log.Println("API documentation enabled")
	}

	security := r.cfg.Security

	api.Use(rateLimiter(security.GlobalRateLimit, time.Minute, func(c fiber.Ctx) bool {
		return c.Path() == "/api/v1/health" || strings.HasPrefix(c.Path(), "/api/v1/payments/callback")
	}))

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth")
	auth.Post("/signup", rateLimiter(security.SignupRateLimit, security.SignupRateWindow, nil), r.h.Auth.Signup)

	authLimited := rateLimiter(security.AuthRateLimit, time.Minute, nil)
	auth.Post("/login", authLimited, r.h.Auth.Login)
	auth.Post("/refresh", authLimited, r.h.Auth.RefreshToken)
	auth.Get("/captcha", authLimited, r.h.Auth.Captcha)
	auth.Post("/logout", r.h.AuthMW.Authenticate(), r.h.Auth.Logout)

	// Provider callbacks are never rate limited and never authenticated
	payments := api.Group("/payments")
	payments.Post("/callback", r.h.Payment.PaymentCallback)
	payments.Post("/callback/:provider", r.h.Payment.PaymentCallback)
	payments.Get("/plans", r.h.Payment.Plans)
	payments.Post("/init", r.h.AuthMW.Authenticate(), r.h.Payment.InitiatePayment)
	payments.Get("/history", r.h.AuthMW.Authenticate(), r.h.Payment.GetPaymentHistory)

	api.Get("/accounts/:id/activation-status",
		rateLimiter(security.PollRateLimit, time.Minute, nil),
		r.h.Account.ActivationStatus,
	)
	api.Get("/session/me", r.h.AuthMW.Authenticate(), r.h.Account.Me)

	admin := api.Group("/admin", r.h.AuthMW.AdminAuthenticate())
	admin.Get("/accounts", r.h.Admin.ListAccounts)
	admin.Get("/accounts/:id", r.h.Admin.GetAccount)
	admin.Delete("/accounts/:id", r.h.Admin.DeleteAccount)
	admin.Post("/accounts/:id/ban", r.h.Admin.BanAccount)
	admin.Post("/accounts/:id/unban", r.h.Admin.UnbanAccount)
	admin.Put("/accounts/:id/premium", r.h.Admin.SetPremium)
	admin.Put("/accounts/:id/admin", r.h.Admin.SetAdmin)
	admin.Get("/payments", r.h.Admin.ListAttempts)
	admin.Get("/payments/export", r.h.Admin.ExportAttempts)
	admin.Get("/payments/stale", r.h.Admin.StalePending)
	admin.Post("/payments/:id/reconcile", r.h.Admin.ReconcileAttempt)

	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

func (r *FiberRouter) isProduction() bool {
	return r.cfg.Deployment.Environment == "production"
}

// rateLimiter builds a per-IP limiter. max <= 0 disables it.
func rateLimiter(max int, window time.Duration, skip func(c fiber.Ctx) bool) fiber.Handler {
	if max <= 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
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
		Next: skip,
	})
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             firstNonEmpty(r.cfg.Security.XFrameOptions, "DENY"),
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none';",
		ReferrerPolicy:            firstNonEmpty(r.cfg.Security.ReferrerPolicy, "strict-origin-when-cross-origin"),
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	security := r.cfg.Security
	maxAge := security.CORSMaxAge
	if maxAge <= 0 {
		maxAge = utils.CORSMaxAge
	}
	// cors refuses credentials with a wildcard origin
	allowCredentials := security.AllowCredentials
	for _, origin := range security.AllowedOrigins {
		if origin == "*" {
			allowCredentials = false
		}
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     security.AllowedOrigins,
		AllowMethods:     security.AllowedMethods,
		AllowHeaders:     security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// Already compressed
				return strings.HasSuffix(c.Path(), "/export")
			},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/api/v1/health"
			},
		}))
	}

	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
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

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   firstNonEmpty(r.cfg.Deployment.Version, "dev"),
			"service":   "anchor-api",
		},
	})
}

func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation retrieved successfully",
		Data: fiber.Map{
			"title":       docs.SwaggerInfo.Title,
			"version":     docs.SwaggerInfo.Version,
			"description": docs.SwaggerInfo.Description,
			"endpoints":   GetRouteDocumentation(),
		},
	})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc := docs.SwaggerInfo.ReadDoc()
	c.Set("Content-Type", "application/json")
	return c.SendString(doc)
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errorCode = "REQUEST_ERROR"
		}
	}

	log.Printf("Error %d: %v", code, err)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetRouteDocumentation returns a compact route listing for the docs endpoint
func GetRouteDocumentation() []map[string]any {
	return []map[string]any{
		{
			"method":      "POST",
			"path":        "/api/v1/auth/signup",
			"description": "Create a pending account; returns tokens and the amount due",
			"parameters": map[string]any{
				"email":        "string (required)",
				"password":     "string (required) - at least 8 characters",
				"avatar":       "string (optional) - fox|bear|owl|lion|tiger|panda|wolf|elephant|dog|cat",
				"plan":         "string (optional) - free|premium",
				"captchaId":    "string (optional)",
				"captchaAngle": "number (optional)",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/auth/login",
			"description": "Authenticate an active account",
			"parameters": map[string]any{
				"email":    "string (required)",
				"password": "string (required)",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/payments/init",
			"description": "Start an STK push (auth)",
			"parameters": map[string]any{
				"amount":  "number (required) - KES, must equal the plan price",
				"phone":   "string (required) - 07xxxxxxxx, 01xxxxxxxx or 2547xxxxxxxx",
				"purpose": "string (optional) - activation|premium",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/payments/callback/:provider",
			"description": "Provider webhook; always acknowledged with ResultCode 0",
			"parameters":  map[string]any{},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/accounts/:id/activation-status",
			"description": "Poll isActive, isPremium and premiumUntil",
			"parameters":  map[string]any{},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/session/me",
			"description": "Current account (auth)",
			"parameters":  map[string]any{},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/health",
			"description": "Health check endpoint",
			"parameters":  map[string]any{},
		},
	}
}
