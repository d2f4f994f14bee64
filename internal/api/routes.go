package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/review-agent/backend/internal/api/handlers"
	"github.com/review-agent/backend/internal/catalog"
	"github.com/review-agent/backend/internal/metrics"
	"github.com/review-agent/backend/internal/middleware/ratelimit"
	"github.com/review-agent/backend/internal/middleware/security"
	"github.com/review-agent/backend/internal/middleware/validation"
	"github.com/review-agent/backend/pkg/config"
	"github.com/review-agent/backend/pkg/logger"
)

const maxQuestionLength = 1000

type Deps struct {
	Engine  handlers.Answerer
	Audit   handlers.AuditReader
	Catalog catalog.Catalog
	Ready   func(ctx context.Context) error
}

// NewServer builds the fiber app. The returned stop function releases the
// rate limiter.
func NewServer(cfg config.ServerConfig, rl config.RateLimitConfig, d Deps) (*fiber.App, func()) {
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: rl.RequestsPerMinute,
		Logger:            logger.GetLogger(),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, " + ratelimit.ClientHeader,
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		IsDevelopment:  cfg.Development,
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	queryHandler := handlers.NewQueryHandler(d.Engine)
	schemaHandler := handlers.NewSchemaHandler(d.Catalog)
	auditHandler := handlers.NewAuditHandler(d.Audit)
	wsHandler := handlers.NewWebSocketHandler(d.Engine, time.Duration(cfg.WriteTimeout)*time.Second, maxQuestionLength).
		WithLimit(limiter.Allow)

	api := app.Group("/api/v1")

	api.Post("/ask",
		limiter.Middleware(),
		validation.Question(validation.Config{MaxQuestionLength: maxQuestionLength, Logger: logger.GetLogger()}),
		queryHandler.HandleAsk,
	)
	api.Get("/schema", schemaHandler.GetSchema)

	// The audit routes expose every user's questions and raw store errors,
	// so they exist only when an admin token is configured.
	if cfg.AdminToken != "" {
		admin := api.Group("/audit", limiter.Middleware(), adminAuth(cfg.AdminToken))
		admin.Get("/failures", auditHandler.ListFailures)
		admin.Get("/successes", auditHandler.ListSuccesses)
	}

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if d.Ready != nil {
			if err := d.Ready(c.Context()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unavailable",
				})
			}
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Use("/ws", limiter.Middleware(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.HandleConnection))

	return app, limiter.Stop
}

func adminAuth(token string) fiber.Handler {
	want := sha256.Sum256([]byte(token))
	return keyauth.New(keyauth.Config{
		Validator: func(_ *fiber.Ctx, key string) (bool, error) {
			got := sha256.Sum256([]byte(key))
			if subtle.ConstantTimeCompare(got[:], want[:]) == 1 {
				return true, nil
			}
			return false, keyauth.ErrMissingOrMalformedAPIKey
		},
	})
}
