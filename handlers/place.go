// handlers/place.go
package handlers

import (
	"encoding/json"

	"federation-ledger-system/services"
	"federation-ledger-system/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupPlaceRoutes(app *fiber.App, places *services.PlaceService) {
	// Handshake is the one unauthenticated ledger route: the place proves
	// possession of its declared key by signing this very request.
	app.Post("/handshake", func(c *fiber.Ctx) error {
		var req struct {
			PlaceUUID string `json:"place_uuid"`
			PublicKey string `json:"public_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		var body map[string]any
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		payload, err := utils.DictToB64(body)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		place, err := places.VerifyAndBind(req.PlaceUUID, req.PublicKey, payload, c.Get("Signature"))
		if err != nil {
			return ledgerError(c, err)
		}

		return c.JSON(fiber.Map{
			"uuid":   place.ID,
			"name":   place.Name,
			"wallet": place.WalletID,
		})
	})
}
