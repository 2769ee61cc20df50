// handlers/admin_routes.go
package handlers

import (
	"lifai-relay/config"
	"lifai-relay/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes mounts the operator dashboard proxies behind adminAuth.
func SetupAdminRoutes(app *fiber.App, adminSvc *services.AdminService, cfg *config.Config, adminAuth fiber.Handler) {
	admin := app.Group("/api/admin", adminAuth)

	admin.Post("/approve", func(c *fiber.Ctx) error {
		var req services.AdminApproveRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return invalidBody(c)
			}
		}
		res, err := adminSvc.Approve(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}

		body := fiber.Map{}
		for k, v := range res.GAS.Parsed {
			body[k] = v
		}
		if res.Ledger != nil {
			body["ledger"] = res.Ledger
		}
		return c.JSON(body)
	})

	admin.Get("/pending", func(c *fiber.Ctx) error {
		ok, rows, err := adminSvc.Pending(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"ok": ok, "rows": rows})
	})

	admin.Get("/list", func(c *fiber.Ctx) error {
		res, err := adminSvc.List(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return passthrough(c, res)
	})

	// booleans only, values never leave the process
	app.Get("/api/debug/env", adminAuth, func(c *fiber.Ctx) error {
		return c.JSON(cfg.EnvReport())
	})
}
