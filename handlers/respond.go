// handlers/respond.go
package handlers

import (
	"errors"

	"lifai-relay/middleware"
	"lifai-relay/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError writes {ok:false, error:<code>, ...} for any service error.
func respondError(c *fiber.Ctx, err error) error {
	var re *services.RelayError
	if errors.As(err, &re) {
		body := fiber.Map{"ok": false, "error": re.Code}
		if re.Detail != "" {
			body["detail"] = re.Detail
		}
		if len(re.Missing) > 0 {
			if re.Status >= fiber.StatusInternalServerError {
				body["need"] = re.Missing
			} else {
				body["missing"] = re.Missing
			}
		}
		if re.Raw != "" {
			body["raw"] = re.Raw
		}
		return c.Status(re.Status).JSON(body)
	}

	if errors.Is(err, services.ErrInvalidAmount) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid amount"})
	}
	if errors.Is(err, services.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "not_found"})
	}

	zap.L().Error("❌ [HTTP] unhandled error",
		zap.String("request_id", middleware.RequestID(c)),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"ok":    false,
		"error": "internal_error",
	})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid json body"})
}

// passthrough returns the backend's JSON reply as-is with a 200.
func passthrough(c *fiber.Ctx, res *services.GASResult) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).SendString(res.Raw)
}
