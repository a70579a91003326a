// services/fusion_service.go
package services

import (
	"context"
	"log"

	"federation-ledger-system/models"

	"gorm.io/gorm"
)

// FusionService merges an anonymous card's ephemeral wallet into a claimed
// user wallet. Each asset moves as its own FUSION ledger transaction, but the
// card is relinked only when the ephemeral wallet ends up fully drained —
// all-or-nothing from the card's perspective.
type FusionService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewFusionService(db *gorm.DB, ledger *LedgerService) *FusionService {
	return &FusionService{DB: db, Ledger: ledger}
}

// FuseCardIntoUser drains the card's ephemeral wallet into the user's wallet
// via the engine's FUSION path, then relinks the card. On any retained
// balance the card linkage is left unchanged and the attempt is retryable.
func (s *FusionService) FuseCardIntoUser(ctx context.Context, place *models.Place, card *models.Card, user *models.User) error {
	if card.EphemeralWalletID == nil {
		return s.linkCard(card, user, nil)
	}
	ephemeralID := *card.EphemeralWalletID
	if ephemeralID == user.WalletID {
		// Nothing to move; the wallet already belongs to this user.
		return s.linkCard(card, user, nil)
	}

	var tokens []models.Token
	if err := s.DB.Where("wallet_id = ? AND value > 0", ephemeralID).Find(&tokens).Error; err != nil {
		return err
	}

	for _, token := range tokens {
		_, _, err := s.Ledger.Submit(ctx, SubmitRequest{
			Place:      place,
			SenderID:   ephemeralID,
			ReceiverID: user.WalletID,
			AssetID:    token.AssetID,
			Amount:     token.Value,
			ActionHint: models.ActionFusion,
			UserCard:   card,
		})
		if err != nil {
			log.Printf("❌ [FUSION] transfer of asset %s from %s failed: %v", token.AssetID, ephemeralID, err)
			// Keep going; the final re-read decides the outcome.
		}
	}

	// The fusion holds only if nothing is left behind.
	var remaining int64
	if err := s.DB.Model(&models.Token{}).
		Where("wallet_id = ? AND value > 0", ephemeralID).
		Count(&remaining).Error; err != nil {
		return err
	}
	if remaining > 0 {
		return &models.FusionIncompleteError{EphemeralWalletID: ephemeralID}
	}

	// The ephemeral wallet stays in the ledger for audit, unreachable from
	// any card, and is never reused.
	return s.linkCard(card, user, nil)
}

func (s *FusionService) linkCard(card *models.Card, user *models.User, ephemeralWalletID *string) error {
	err := s.DB.Model(&models.Card{}).Where("id = ?", card.ID).
		Updates(map[string]any{
			"user_id":             user.ID,
			"ephemeral_wallet_id": ephemeralWalletID,
		}).Error
	if err != nil {
		return err
	}
	card.UserID = &user.ID
	card.EphemeralWalletID = ephemeralWalletID
	return nil
}
