// models/card.go
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Origin tags a batch of cards with the place and generation that issued it.
type Origin struct {
	ID         string    `gorm:"primaryKey;type:uuid;not null" json:"uuid"`
	PlaceID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_origin_place_gen" json:"place"`
	Place      Place     `gorm:"foreignKey:PlaceID" json:"-"`
	Generation int       `gorm:"not null;uniqueIndex:idx_origin_place_gen" json:"generation"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

// Card is a physical/NFC identity. It is bound either to a user's wallet or
// to an ephemeral wallet (unclaimed card), never both. The ephemeral-to-user
// transition happens exactly once, through fusion, and never reverses.
type Card struct {
	ID            string `gorm:"primaryKey;type:uuid;not null" json:"uuid"`
	FirstTagID    string `gorm:"type:varchar(8);not null;uniqueIndex" json:"first_tag_id"`
	QRCodeUUID    string `gorm:"type:uuid;not null;uniqueIndex" json:"qrcode_uuid"`
	NumberPrinted string `gorm:"type:varchar(8);not null" json:"number_printed"`

	OriginID string `gorm:"type:uuid;not null;index" json:"-"`
	Origin   Origin `gorm:"foreignKey:OriginID" json:"origin"`

	UserID *string `gorm:"type:uuid;index" json:"user,omitempty"`
	User   *User   `gorm:"foreignKey:UserID" json:"-"`

	EphemeralWalletID *string `gorm:"type:uuid;index" json:"ephemeral_wallet,omitempty"`
	EphemeralWallet   *Wallet `gorm:"foreignKey:EphemeralWalletID" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

var ErrCardUnassigned = errors.New("card has neither user nor ephemeral wallet")

// ResolveWallet returns the wallet this card currently spends from: the
// owner's wallet when claimed, the ephemeral wallet otherwise.
func (c *Card) ResolveWallet(db *gorm.DB) (*Wallet, error) {
	if c.UserID != nil {
		var user User
		if err := db.First(&user, "id = ?", *c.UserID).Error; err != nil {
			return nil, err
		}
		var wallet Wallet
		if err := db.First(&wallet, "id = ?", user.WalletID).Error; err != nil {
			return nil, err
		}
		return &wallet, nil
	}
	if c.EphemeralWalletID != nil {
		var wallet Wallet
		if err := db.First(&wallet, "id = ?", *c.EphemeralWalletID).Error; err != nil {
			return nil, err
		}
		return &wallet, nil
	}
	return nil, ErrCardUnassigned
}

// EnsureEphemeralWallet attaches a fresh ephemeral wallet to an unassigned
// card so it can hold value before being claimed.
func (c *Card) EnsureEphemeralWallet(db *gorm.DB) (*Wallet, error) {
	if c.UserID != nil || c.EphemeralWalletID != nil {
		return c.ResolveWallet(db)
	}
	wallet := Wallet{ID: uuid.NewString()}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&wallet).Error; err != nil {
			return err
		}
		c.EphemeralWalletID = &wallet.ID
		return tx.Model(c).Update("ephemeral_wallet_id", wallet.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}
