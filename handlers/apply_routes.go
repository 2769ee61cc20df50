// handlers/apply_routes.go
package handlers

import (
	"lifai-relay/middleware"
	"lifai-relay/services"

	"github.com/gofiber/fiber/v2"
)

func SetupApplyRoutes(app *fiber.App, applySvc *services.ApplyRelayService, statusSvc *services.StatusService, limiter fiber.Handler) {
	limiter = limiterOrNext(limiter)

	app.Post("/api/apply", limiter, func(c *fiber.Ctx) error {
		var req services.ApplyRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		res, status, err := applySvc.Submit(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(status).JSON(res)
	})

	app.Post("/api/apply/create", limiter, func(c *fiber.Ctx) error {
		var req struct {
			Plan    services.FlexString `json:"plan"`
			ApplyID string              `json:"applyId"`
		}
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		res, status, err := applySvc.CreateDraft(c.UserContext(), req.Plan, req.ApplyID)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(status).JSON(res)
	})

	app.Get("/api/apply/status", func(c *fiber.Ctx) error {
		st, err := statusSvc.Status(c.UserContext(), c.Query("applyId"))
		if err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(fiber.Map{"ok": true, "status": st})
	})
}

// limiterOrNext lets tests mount routes without throttling.
func limiterOrNext(h fiber.Handler) fiber.Handler {
	if h == nil {
		return middleware.RateLimitMiddleware(0, 0)
	}
	return h
}
