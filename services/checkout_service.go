// services/checkout_service.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"federation-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCheckoutSettled = errors.New("checkout already settled")
	ErrCheckoutNoCard  = errors.New("checkout has no card to attribute a place")
)

// CheckoutService bridges the external payment gateway to the ledger: a
// completed checkout settles as a REFILL of the external primary asset.
type CheckoutService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Assets *AssetService
}

func NewCheckoutService(db *gorm.DB, ledger *LedgerService, assets *AssetService) *CheckoutService {
	return &CheckoutService{DB: db, Ledger: ledger, Assets: assets}
}

// CreateCheckout records a gateway session destined for a wallet, optionally
// tied to the card presented when the session was opened.
func (s *CheckoutService) CreateCheckout(externalID, walletID string, cardID *string) (*models.Checkout, error) {
	checkout := models.Checkout{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Status:     models.CheckoutOpen,
		WalletID:   walletID,
		CardID:     cardID,
	}
	if err := s.DB.Create(&checkout).Error; err != nil {
		return nil, err
	}
	return &checkout, nil
}

// CompleteExternalRefill settles a paid checkout: the external primary asset
// moves from its origin wallet to the target wallet as a REFILL, minting the
// equivalent supply through the engine's CREATION pairing. Settles at most
// once.
func (s *CheckoutService) CompleteExternalRefill(ctx context.Context, checkout *models.Checkout, amount int64) (*models.Transaction, error) {
	if checkout.Status == models.CheckoutSettled {
		return nil, ErrCheckoutSettled
	}

	asset, err := s.Assets.ExternalPrimaryAsset()
	if err != nil {
		return nil, err
	}

	// The webhook carries no authenticated place; the refill is attributed
	// to the issuing place of the card presented at checkout.
	if checkout.CardID == nil {
		return nil, ErrCheckoutNoCard
	}
	var card models.Card
	if err := s.DB.Preload("Origin").First(&card, "id = ?", *checkout.CardID).Error; err != nil {
		return nil, err
	}
	var place models.Place
	if err := s.DB.First(&place, "id = ?", card.Origin.PlaceID).Error; err != nil {
		return nil, err
	}

	// Claim settlement atomically in the database: of any number of
	// concurrent (or replayed) webhook deliveries, exactly one flips the row
	// and gets to mint. The in-memory status check above is only a shortcut.
	now := time.Now().UTC()
	priorStatus := checkout.Status
	claim := s.DB.Model(&models.Checkout{}).
		Where("id = ? AND status <> ?", checkout.ID, models.CheckoutSettled).
		Updates(map[string]any{
			"status":     models.CheckoutSettled,
			"settled_at": now,
		})
	if claim.Error != nil {
		return nil, claim.Error
	}
	if claim.RowsAffected == 0 {
		return nil, ErrCheckoutSettled
	}

	transaction, _, err := s.Ledger.Submit(ctx, SubmitRequest{
		Place:      &place,
		SenderID:   asset.WalletOriginID,
		ReceiverID: checkout.WalletID,
		AssetID:    asset.ID,
		Amount:     amount,
		ActionHint: models.ActionRefill,
		UserCard:   &card,
		Checkout:   checkout,
	})
	if err != nil {
		// Release the claim so a gateway retry can settle.
		rerr := s.DB.Model(&models.Checkout{}).Where("id = ?", checkout.ID).
			Updates(map[string]any{
				"status":     priorStatus,
				"settled_at": nil,
			}).Error
		if rerr != nil {
			log.Printf("❌ [CHECKOUT] failed to release settlement claim on %s: %v", checkout.ID, rerr)
		}
		return nil, err
	}

	checkout.Status = models.CheckoutSettled
	checkout.SettledAt = &now
	return transaction, nil
}
