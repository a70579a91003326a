// handlers/asset.go
package handlers

import (
	"federation-ledger-system/middleware"
	"federation-ledger-system/models"
	"federation-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAssetRoutes(app *fiber.App, assets *services.AssetService, places *services.PlaceService) {
	secured := app.Group("/asset", middleware.SignatureAuthMiddleware(places))

	secured.Post("/", func(c *fiber.Ctx) error {
		place := middleware.PlaceFromContext(c)

		var req struct {
			Name              string               `json:"name"`
			CurrencyCode      string               `json:"currency_code"`
			Category          models.AssetCategory `json:"category"`
			IsExternalPrimary bool                 `json:"is_external_primary"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Name == "" || len(req.CurrencyCode) != 3 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and a 3-letter currency code are required"})
		}
		switch req.Category {
		case models.AssetLocalFiat, models.AssetLocalNotFiat, models.AssetSubscription, models.AssetBadge, models.AssetExternalPrimary:
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown asset category"})
		}

		asset, err := assets.CreateAsset(place, req.Name, req.CurrencyCode, req.Category, req.IsExternalPrimary)
		if err != nil {
			if err == services.ErrAssetExists || err == services.ErrExternalPrimaryTaken {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
			}
			return ledgerError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(asset)
	})

	// Assets the requesting place accepts.
	secured.Get("/", func(c *fiber.Ctx) error {
		place := middleware.PlaceFromContext(c)

		var accepted []models.Asset
		err := assets.DB.
			Joins("JOIN place_accepted_assets paa ON paa.asset_id = assets.id AND paa.place_id = ?", place.ID).
			Find(&accepted).Error
		if err != nil {
			return ledgerError(c, err)
		}
		return c.JSON(accepted)
	})
}
