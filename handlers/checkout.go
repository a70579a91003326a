// handlers/checkout.go
package handlers

import (
	"os"
	"strings"

	"federation-ledger-system/models"
	"federation-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupCheckoutRoutes wires the payment-gateway callback. The gateway is not
// a place and carries no RSA key; it authenticates with the shared webhook
// token instead.
func SetupCheckoutRoutes(app *fiber.App, checkouts *services.CheckoutService) {
	webhookToken := os.Getenv("CHECKOUT_WEBHOOK_TOKEN")

	app.Post("/checkout/complete", func(c *fiber.Ctx) error {
		token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if webhookToken == "" || token != webhookToken {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not authenticated"})
		}

		var req struct {
			ExternalID string `json:"external_id"`
			Amount     int64  `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Amount <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
		}

		var checkout models.Checkout
		if err := checkouts.DB.First(&checkout, "external_id = ?", req.ExternalID).Error; err != nil {
			return ledgerError(c, err)
		}

		transaction, err := checkouts.CompleteExternalRefill(c.Context(), &checkout, req.Amount)
		if err != nil {
			if err == services.ErrCheckoutSettled {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
			}
			return ledgerError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"transaction": transaction,
			"checkout":    checkout.ID,
		})
	})
}
