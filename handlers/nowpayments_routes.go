// handlers/nowpayments_routes.go
package handlers

import (
	"lifai-relay/services"

	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries the gateway's HMAC of the raw body.
const SignatureHeader = "x-nowpayments-sig"

func SetupNowPaymentsRoutes(app *fiber.App, webhookSvc *services.PaymentWebhookService, invoiceSvc *services.InvoiceService, limiter fiber.Handler) {
	limiter = limiterOrNext(limiter)

	// 🔓 Gateway callback, authenticated by signature only
	app.Post("/api/nowpayments/ipn", func(c *fiber.Ctx) error {
		// fasthttp reuses the body buffer after the handler returns
		raw := append([]byte(nil), c.Body()...)

		res := webhookSvc.Handle(c.UserContext(), raw, c.Get(SignatureHeader))
		if res.HTTPStatus != fiber.StatusOK {
			body := fiber.Map{"ok": false, "error": res.Error}
			if len(res.Missing) > 0 {
				body["need"] = res.Missing
			}
			if res.Payload != nil {
				body["payload"] = res.Payload
			}
			return c.Status(res.HTTPStatus).JSON(body)
		}
		return c.JSON(fiber.Map{
			"ok":        true,
			"state":     res.State,
			"duplicate": res.Duplicate,
		})
	})

	app.Get("/api/nowpayments/ipn", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true, "hint": "POST signed IPN payloads here"})
	})

	app.Post("/api/nowpayments/create", limiter, func(c *fiber.Ctx) error {
		var req services.CreateInvoiceRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		res, err := invoiceSvc.Create(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}
