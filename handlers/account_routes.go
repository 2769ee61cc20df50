// handlers/account_routes.go
package handlers

import (
	"lifai-relay/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAccountRoutes(app *fiber.App, accountSvc *services.AccountService, limiter fiber.Handler) {
	limiter = limiterOrNext(limiter)

	app.Post("/api/auth/login", limiter, func(c *fiber.Ctx) error {
		var req struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		res, err := accountSvc.Login(c.UserContext(), req.ID, req.Code)
		if err != nil {
			return respondError(c, err)
		}
		return passthrough(c, res)
	})

	app.Post("/api/auth/reset", limiter, func(c *fiber.Ctx) error {
		var req struct {
			Token    string `json:"token"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		res, err := accountSvc.Reset(c.UserContext(), req.Token, req.Password)
		if err != nil {
			return respondError(c, err)
		}
		return passthrough(c, res)
	})

	app.Post("/api/me", func(c *fiber.Ctx) error {
		var req struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		}
		// a missing or non-JSON body reads as empty credentials
		_ = c.BodyParser(&req)

		c.Set(fiber.HeaderCacheControl, "no-store")
		res, err := accountSvc.Me(c.UserContext(), req.ID, req.Code)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	app.Get("/api/me", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(fiber.Map{"ok": true, "hint": "POST {id, code} to get my_ref_code"})
	})

	app.Post("/api/wallet/balance", func(c *fiber.Ctx) error {
		var req struct {
			ID string `json:"id"`
		}
		_ = c.BodyParser(&req)

		res, err := accountSvc.Balance(c.UserContext(), req.ID)
		if err != nil {
			return respondError(c, err)
		}
		return passthrough(c, res)
	})
}
