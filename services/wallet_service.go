// services/wallet_service.go
package services

import (
	"context"
	"errors"

	"federation-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrCardAlreadyLinked = errors.New("card already linked to another user")

// WalletService covers wallet/user creation, card claiming and the
// place-filtered wallet view.
type WalletService struct {
	DB     *gorm.DB
	Fusion *FusionService
}

func NewWalletService(db *gorm.DB, fusion *FusionService) *WalletService {
	return &WalletService{DB: db, Fusion: fusion}
}

// GetOrCreateUser returns the user for an email, creating user and wallet
// when unknown. When walletID is non-nil the new user adopts that wallet
// (used when a card's ephemeral wallet becomes the user's permanent one).
func (s *WalletService) GetOrCreateUser(email string, walletID *string) (*models.User, bool, error) {
	var user models.User
	err := s.DB.First(&user, "email = ?", email).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		wID := ""
		if walletID != nil {
			wID = *walletID
		} else {
			wallet := models.Wallet{ID: uuid.NewString()}
			if err := tx.Create(&wallet).Error; err != nil {
				return err
			}
			wID = wallet.ID
		}
		user = models.User{
			ID:       uuid.NewString(),
			Email:    email,
			WalletID: wID,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &user, true, nil
}

// ClaimCard attaches a card to the user identified by email, creating the
// user when needed. A card carrying an ephemeral wallet either becomes the
// new user's wallet outright, or is fused into the existing user's wallet.
func (s *WalletService) ClaimCard(ctx context.Context, place *models.Place, email string, card *models.Card) (*models.User, error) {
	if card == nil {
		user, _, err := s.GetOrCreateUser(email, nil)
		return user, err
	}

	var existing models.User
	err := s.DB.First(&existing, "email = ?", email).Error
	userExists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if !userExists {
		switch {
		case card.UserID == nil && card.EphemeralWalletID == nil:
			user, _, err := s.GetOrCreateUser(email, nil)
			if err != nil {
				return nil, err
			}
			return user, s.DB.Model(card).Update("user_id", user.ID).Error
		case card.UserID == nil && card.EphemeralWalletID != nil:
			// The ephemeral wallet becomes the user's permanent wallet; the
			// card sheds its ephemeral reference. This is the one-way
			// ephemeral-to-user ownership transition.
			user, _, err := s.GetOrCreateUser(email, card.EphemeralWalletID)
			if err != nil {
				return nil, err
			}
			err = s.DB.Model(card).Updates(map[string]any{
				"user_id":             user.ID,
				"ephemeral_wallet_id": nil,
			}).Error
			if err != nil {
				return nil, err
			}
			card.UserID = &user.ID
			card.EphemeralWalletID = nil
			return user, nil
		default:
			return nil, ErrCardAlreadyLinked
		}
	}

	// User already exists.
	switch {
	case card.UserID != nil:
		if *card.UserID == existing.ID {
			return &existing, nil
		}
		return nil, ErrCardAlreadyLinked
	case card.EphemeralWalletID == nil:
		if err := s.DB.Model(card).Update("user_id", existing.ID).Error; err != nil {
			return nil, err
		}
		card.UserID = &existing.ID
		return &existing, nil
	default:
		// Card holds value in an ephemeral wallet: fuse it into the
		// existing user's wallet before linking.
		if err := s.Fusion.FuseCardIntoUser(ctx, place, card, &existing); err != nil {
			return nil, err
		}
		return &existing, nil
	}
}

// ResolveWalletView returns the wallet's balances restricted to assets the
// requesting place accepts. Never exposes foreign-asset balances.
func (s *WalletService) ResolveWalletView(walletID string, place *models.Place) (map[string]int64, error) {
	var tokens []models.Token
	err := s.DB.
		Joins("JOIN place_accepted_assets paa ON paa.asset_id = tokens.asset_id AND paa.place_id = ?", place.ID).
		Where("tokens.wallet_id = ?", walletID).
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	view := make(map[string]int64, len(tokens))
	for _, token := range tokens {
		view[token.AssetID] = token.Value
	}
	return view, nil
}
