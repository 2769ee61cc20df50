// handlers/ledger_routes.go
package handlers

import (
	"strings"

	"lifai-relay/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLedgerRoutes(app *fiber.App, ledger *services.LedgerService, adminAuth fiber.Handler) {
	// 🔓 Public rate table for the referral page
	app.Get("/api/referral/plans", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"ok":         true,
			"plans":      ledger.Rates.Entries(),
			"topup_rate": services.TopupRate,
		})
	})

	// 🔐 Operator-only ledger access
	secured := app.Group("/api/ledger", adminAuth)

	secured.Post("/topup", func(c *fiber.Ctx) error {
		var req struct {
			LoginID   string      `json:"loginId"`
			AmountUSD interface{} `json:"amountUsd"`
			SourceRef string      `json:"sourceRef"`
		}
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		loginID := strings.TrimSpace(req.LoginID)
		if loginID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":      false,
				"error":   "missing_fields",
				"missing": []string{"loginId"},
			})
		}
		amount, ok := services.ParseAmount(req.AmountUSD)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid amount"})
		}

		out, err := ledger.RecordTopupPurchase(c.UserContext(), loginID, amount, strings.TrimSpace(req.SourceRef))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"ok": true, "outcome": out})
	})

	secured.Get("/awards", func(c *fiber.Ctx) error {
		referrer := strings.TrimSpace(c.Query("referrer"))
		if referrer == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "missing_referrer"})
		}
		awards, err := ledger.ListAwards(c.UserContext(), referrer, c.Query("period"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"ok": true, "awards": awards})
	})

	secured.Get("/caps", func(c *fiber.Ctx) error {
		referrer := strings.TrimSpace(c.Query("referrer"))
		if referrer == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "missing_referrer"})
		}
		period := c.Query("period", ledger.CurrentPeriod())
		caps, err := ledger.CapSummary(c.UserContext(), referrer, period)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"ok": true, "period": period, "caps": caps})
	})
}
