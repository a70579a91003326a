// handlers/helpers.go
package handlers

import (
	"errors"
	"log"

	"federation-ledger-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ledgerError maps the core error taxonomy onto HTTP responses. Kinds stay
// distinguishable for callers; key material and foreign balances never leak.
func ledgerError(c *fiber.Ctx, err error) error {
	var authErr *models.AuthenticationError
	if errors.As(err, &authErr) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not authenticated"})
	}

	var classErr *models.ClassificationError
	if errors.As(err, &classErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": classErr.Reason})
	}

	var balErr *models.BalanceError
	if errors.As(err, &balErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": balErr.Error(),
			"kind":  string(balErr.Kind),
		})
	}

	var intErr *models.IntegrityError
	if errors.As(err, &intErr) {
		log.Printf("❌ [LEDGER] integrity error surfaced to caller: %v", intErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "ledger integrity failure"})
	}

	var fusErr *models.FusionIncompleteError
	if errors.As(err, &fusErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": fusErr.Error(), "retryable": true})
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	log.Printf("DB/internal error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

// resolveCard finds a card by uuid or by NFC first tag id, whichever the
// caller supplied. Returns nil when neither is present.
func resolveCard(db *gorm.DB, cardUUID, firstTagID string) (*models.Card, error) {
	var card models.Card
	switch {
	case cardUUID != "":
		if err := db.Preload("Origin").First(&card, "id = ?", cardUUID).Error; err != nil {
			return nil, err
		}
	case firstTagID != "":
		if err := db.Preload("Origin").First(&card, "first_tag_id = ?", firstTagID).Error; err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}
	return &card, nil
}

// resolveCardByTagOrQR finds a card by NFC tag or printed QR code, the two
// identifiers end users actually present.
func resolveCardByTagOrQR(db *gorm.DB, firstTagID, qrcodeUUID string) (*models.Card, error) {
	var card models.Card
	switch {
	case firstTagID != "":
		if err := db.Preload("Origin").First(&card, "first_tag_id = ?", firstTagID).Error; err != nil {
			return nil, err
		}
	case qrcodeUUID != "":
		if err := db.Preload("Origin").First(&card, "qrcode_uuid = ?", qrcodeUUID).Error; err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}
	return &card, nil
}
