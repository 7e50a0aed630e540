package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/geomap/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		Next: func(c *fiber.Ctx) bool {
			// Map sessions stay open for the life of a page.
			return websocket.IsWebSocketUpgrade(c)
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1 — 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/provider", timeout.NewWithContext(ProviderHandler(deps), 15*time.Second))
	v1.Get("/geocode", timeout.NewWithContext(GeocodeHandler(deps), 15*time.Second))
	v1.Get("/staticmap", timeout.NewWithContext(StaticMapHandler(deps), 15*time.Second))
	v1.Get("/project", timeout.NewWithContext(ProjectHandler(deps), 15*time.Second))

	// Dashboard maps
	v1.Get("/widgets/attribute-choices", timeout.NewWithContext(AttributeChoicesHandler(deps), 15*time.Second))
	v1.Get("/widgets/:id", timeout.NewWithContext(GetWidgetHandler(deps), 15*time.Second))
	v1.Put("/widgets/:id", timeout.NewWithContext(SaveWidgetHandler(deps), 15*time.Second))
	v1.Get("/widgets/:id/map", timeout.NewWithContext(WidgetMapHandler(deps), 15*time.Second))
	v1.Get("/widgets/:id/locations.geojson", timeout.NewWithContext(WidgetGeoJSONHandler(deps), 15*time.Second))

	// Geolocation fields
	v1.Get("/classes/:class/geolocation-attributes", timeout.NewWithContext(GeolocationAttributesHandler(deps), 15*time.Second))
	v1.Get("/entities/:class/:key/fields/:code/edit", timeout.NewWithContext(FieldEditHandler(deps), 15*time.Second))
	v1.Get("/entities/:class/:key/fields/:code/render", timeout.NewWithContext(RenderFieldHandler(deps), 15*time.Second))
	v1.Put("/entities/:class/:key/fields/:code", timeout.NewWithContext(SetFieldHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
	app.Get("/ws/maps/:id", websocket.New(MapSessionHandler(deps)))
	app.Get("/ws/fields/:class/:key/:code", websocket.New(FieldSessionHandler(deps)))
}
