// handlers/wallet.go
package handlers

import (
	"federation-ledger-system/middleware"
	"federation-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App, wallets *services.WalletService, places *services.PlaceService) {
	secured := app.Group("/wallet", middleware.SignatureAuthMiddleware(places))

	// Balances of one wallet, restricted to the assets the requesting place
	// accepts.
	secured.Get("/:id", func(c *fiber.Ctx) error {
		place := middleware.PlaceFromContext(c)

		view, err := wallets.ResolveWalletView(c.Params("id"), place)
		if err != nil {
			return ledgerError(c, err)
		}
		return c.JSON(fiber.Map{
			"uuid":   c.Params("id"),
			"tokens": view,
		})
	})

	// Create or resolve a user by email and optionally claim a card. A card
	// holding an ephemeral wallet is fused into the user's wallet here.
	secured.Post("/", func(c *fiber.Ctx) error {
		place := middleware.PlaceFromContext(c)

		var req struct {
			Email          string `json:"email"`
			CardFirstTagID string `json:"card_first_tag_id"`
			CardQRCodeUUID string `json:"card_qrcode_uuid"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Email == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
		}

		card, err := resolveCardByTagOrQR(wallets.DB, req.CardFirstTagID, req.CardQRCodeUUID)
		if err != nil {
			return ledgerError(c, err)
		}

		user, err := wallets.ClaimCard(c.Context(), place, req.Email, card)
		if err != nil {
			if err == services.ErrCardAlreadyLinked {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
			}
			return ledgerError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"uuid":   user.ID,
			"wallet": user.WalletID,
		})
	})
}
