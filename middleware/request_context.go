// middleware/request_context.go
package middleware

import (
	"strconv"
	"time"

	"lifai-relay/monitoring"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDKey is the Locals key holding the correlation id.
const RequestIDKey = "request_id"

// RequestContextMiddleware attaches a correlation id, records request metrics
// and writes one access log line per request.
func RequestContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// set by fiber's requestid middleware when it runs first
		reqID := c.GetRespHeader(fiber.HeaderXRequestID)
		if reqID == "" {
			reqID = c.Get(fiber.HeaderXRequestID)
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Locals(RequestIDKey, reqID)
		c.Set(fiber.HeaderXRequestID, reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		// route pattern, not the raw path, keeps label cardinality bounded
		path := c.Route().Path
		elapsed := time.Since(start)
		monitoring.HttpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		monitoring.ResponseTimeHistogram.WithLabelValues(c.Method(), path).Observe(elapsed.Seconds())

		zap.L().Debug("🌐 [HTTP]",
			zap.String("request_id", reqID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed))
		return err
	}
}

// RequestID returns the correlation id set by RequestContextMiddleware.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(RequestIDKey).(string)
	return id
}
