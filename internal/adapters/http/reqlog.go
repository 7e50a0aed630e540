package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type (
	requestIDKey struct{}
	loggerKey    struct{}
)

// RequestIDLogMiddleware puts the id assigned by the requestid middleware,
// and a logger tagged with it, into the user context. Handlers, services
// and the access log then share one request_id attribute.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		ctx := context.WithValue(c.UserContext(), requestIDKey{}, rid)
		ctx = context.WithValue(ctx, loggerKey{}, slog.Default().With("request_id", rid))
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// RequestIDFromCtx returns the request id, or "" outside a request.
func RequestIDFromCtx(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// LoggerFromCtx returns the request logger, or the default logger.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
