// middleware/admin_auth.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AdminTokenMiddleware validates the Bearer token of the operator dashboard.
// With no token configured every admin call is refused.
func AdminTokenMiddleware(expectedToken string) fiber.Handler {
	if expectedToken == "" {
		zap.L().Warn("⚠️ ADMIN_DASHBOARD_TOKEN is not set, admin routes are disabled")
	}

	return func(c *fiber.Ctx) error {
		if expectedToken == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"ok":    false,
				"error": "missing_env",
				"need":  []string{"ADMIN_DASHBOARD_TOKEN"},
			})
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			zap.L().Warn("🚫 [ADMIN_AUTH] missing Authorization header", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "unauthorized",
			})
		}

		// "Bearer <token>", or the raw token
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			zap.L().Warn("❌ [ADMIN_AUTH] invalid token", zap.String("path", c.Path()), zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "unauthorized",
			})
		}

		return c.Next()
	}
}
