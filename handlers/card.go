// handlers/card.go
package handlers

import (
	"federation-ledger-system/middleware"
	"federation-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

type cardSweepRequest struct {
	PrimaryCardUUID       string `json:"primary_card_uuid"`
	PrimaryCardFirstTagID string `json:"primary_card_first_tag_id"`
	UserCardUUID          string `json:"user_card_uuid"`
	UserCardFirstTagID    string `json:"user_card_first_tag_id"`
}

func SetupCardRoutes(app *fiber.App, ledger *services.LedgerService, places *services.PlaceService) {
	secured := app.Group("/card", middleware.SignatureAuthMiddleware(places))

	parseCards := func(c *fiber.Ctx) (*cardSweepRequest, error) {
		var req cardSweepRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	// Sweep the card wallet's accepted fiat-like balances back to the place.
	secured.Post("/refund", func(c *fiber.Ctx) error {
		place := middleware.PlaceFromContext(c)
		req, err := parseCards(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		primaryCard, err := resolveCard(ledger.DB, req.PrimaryCardUUID, req.PrimaryCardFirstTagID)
		if err != nil {
			return ledgerError(c, err)
		}
		userCard, err := resolveCard(ledger.DB, req.UserCardUUID, req.UserCardFirstTagID)
		if err != nil {
			return ledgerError(c, err)
		}
		if primaryCard == nil || userCard == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "primary card and user card are required"})
		}

		transactions, err := ledger.RefundCard(c.Context(), place, userCard, primaryCard, c.IP())
		if err != nil {
			// Partial sweeps are not rolled back; report what applied
			// alongside the failure.
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":        err.Error(),
				"transactions": transactions,
			})
		}
		return c.JSON(fiber.Map{"transactions": transactions})
	})

	// Refund sweep, then detach the card from user and ephemeral wallet.
	secured.Post("/void", func(c *fiber.Ctx) error {
		place := middleware.PlaceFromContext(c)
		req, err := parseCards(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		primaryCard, err := resolveCard(ledger.DB, req.PrimaryCardUUID, req.PrimaryCardFirstTagID)
		if err != nil {
			return ledgerError(c, err)
		}
		userCard, err := resolveCard(ledger.DB, req.UserCardUUID, req.UserCardFirstTagID)
		if err != nil {
			return ledgerError(c, err)
		}
		if primaryCard == nil || userCard == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "primary card and user card are required"})
		}

		transactions, err := ledger.VoidCard(c.Context(), place, userCard, primaryCard, c.IP())
		if err != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":        err.Error(),
				"transactions": transactions,
			})
		}
		return c.JSON(fiber.Map{"transactions": transactions, "card_voided": true})
	})
}
