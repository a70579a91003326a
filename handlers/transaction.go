// handlers/transaction.go
package handlers

import (
	"strconv"
	"time"

	"federation-ledger-system/middleware"
	"federation-ledger-system/models"
	"federation-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTransactionRoutes(app *fiber.App, ledger *services.LedgerService, places *services.PlaceService) {
	secured := app.Group("/transaction", middleware.SignatureAuthMiddleware(places))

	// Submit one transfer for classification and application.
	secured.Post("/", func(c *fiber.Ctx) error {
		place := middleware.PlaceFromContext(c)

		var req struct {
			Amount                    int64         `json:"amount"`
			Sender                    string        `json:"sender"`
			Receiver                  string        `json:"receiver"`
			Asset                     string        `json:"asset"`
			Action                    models.Action `json:"action"`
			Comment                   string        `json:"comment"`
			Metadata                  string        `json:"metadata"`
			SubscriptionStartDatetime *time.Time    `json:"subscription_start_datetime"`
			CheckoutUUID              string        `json:"checkout_uuid"`
			PrimaryCardUUID           string        `json:"primary_card_uuid"`
			PrimaryCardFirstTagID     string        `json:"primary_card_first_tag_id"`
			UserCardUUID              string        `json:"user_card_uuid"`
			UserCardFirstTagID        string        `json:"user_card_first_tag_id"`
		}
		if err := c.BodyParser(&req); err != nil {
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

		var checkout *models.Checkout
		if req.CheckoutUUID != "" {
			var found models.Checkout
			if err := ledger.DB.First(&found, "id = ?", req.CheckoutUUID).Error; err != nil {
				return ledgerError(c, err)
			}
			checkout = &found
		}

		transaction, action, err := ledger.Submit(c.Context(), services.SubmitRequest{
			Place:               place,
			SenderID:            req.Sender,
			ReceiverID:          req.Receiver,
			AssetID:             req.Asset,
			Amount:              req.Amount,
			ActionHint:          req.Action,
			PrimaryCard:         primaryCard,
			UserCard:            userCard,
			Checkout:            checkout,
			Comment:             req.Comment,
			Metadata:            req.Metadata,
			IP:                  c.IP(),
			SubscriptionStartAt: req.SubscriptionStartDatetime,
		})
		if err != nil {
			return ledgerError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"transaction": transaction,
			"action":      action,
		})
	})

	// Recompute and compare the hash for one record, optionally walking its
	// ancestors (depth=-1 walks to genesis).
	secured.Get("/:id/verify", func(c *fiber.Ctx) error {
		depth := 0
		if d := c.Query("depth"); d != "" {
			parsed, err := strconv.Atoi(d)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid depth parameter"})
			}
			depth = parsed
		}

		ok, err := ledger.VerifyChain(c.Params("id"), depth)
		if err != nil {
			return ledgerError(c, err)
		}
		return c.JSON(fiber.Map{"uuid": c.Params("id"), "valid": ok})
	})

	// Place-scoped history: only transactions the place is party to.
	secured.Get("/", func(c *fiber.Ctx) error {
		place := middleware.PlaceFromContext(c)

		limit := 100
		if l := c.Query("limit"); l != "" {
			parsed, err := strconv.Atoi(l)
			if err != nil || parsed <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
			}
			limit = parsed
		}

		var transactions []models.Transaction
		err := ledger.DB.
			Where("sender_id = ? OR receiver_id = ?", place.WalletID, place.WalletID).
			Order("created_at DESC").
			Limit(limit).
			Find(&transactions).Error
		if err != nil {
			return ledgerError(c, err)
		}
		return c.JSON(transactions)
	})
}
