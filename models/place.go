// models/place.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Place is a federated point-of-sale node: its own treasury wallet, a
// registered RSA public key for request signatures, the assets it accepts,
// and the primary (point-of-sale terminal) cards that belong to it.
type Place struct {
	ID   string `gorm:"primaryKey;type:uuid;not null" json:"uuid"`
	Name string `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`

	WalletID string `gorm:"type:uuid;not null;uniqueIndex" json:"wallet"`
	Wallet   Wallet `gorm:"foreignKey:WalletID" json:"-"`

	// PEM-encoded RSA public key (>= 2048 bits), registered at handshake.
	PublicKeyPEM string `gorm:"type:text" json:"-"`
	// SHA-256 hex of the API key handed to the node. The clear key is shown
	// once and never stored.
	APIKeyHash string `gorm:"type:varchar(64);index" json:"-"`

	AcceptedAssets []Asset `gorm:"many2many:place_accepted_assets" json:"-"`
	PrimaryCards   []Card  `gorm:"many2many:place_primary_cards" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// AcceptsAsset reports membership in the place's accepted-asset set.
func (p *Place) AcceptsAsset(db *gorm.DB, assetID string) (bool, error) {
	var count int64
	err := db.Table("place_accepted_assets").
		Where("place_id = ? AND asset_id = ?", p.ID, assetID).
		Count(&count).Error
	return count > 0, err
}

// HasPrimaryCard reports whether the card is registered as one of the
// place's point-of-sale terminals.
func (p *Place) HasPrimaryCard(db *gorm.DB, cardID string) (bool, error) {
	var count int64
	err := db.Table("place_primary_cards").
		Where("place_id = ? AND card_id = ?", p.ID, cardID).
		Count(&count).Error
	return count > 0, err
}
