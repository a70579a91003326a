// models/wallet.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet is a balance-holding identity. Exactly one per user, one per place
// (its treasury), plus transient ephemeral wallets bound to unclaimed cards.
// Ownership is never stored here — User, Place and Card each point at their
// wallet, and a wallet belongs to at most one of them at any time.
type Wallet struct {
	ID        string    `gorm:"primaryKey;type:uuid;not null" json:"uuid"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Tokens []Token `gorm:"foreignKey:WalletID" json:"tokens,omitempty"`

	// Places this wallet has authorized to debit it directly. Gates SALE.
	AuthorityDelegations []Place `gorm:"many2many:wallet_authority_delegations" json:"-"`
}

// DelegatesTo reports whether the wallet has delegated debit authority to the
// given place.
func (w *Wallet) DelegatesTo(db *gorm.DB, placeID string) (bool, error) {
	var count int64
	err := db.Table("wallet_authority_delegations").
		Where("wallet_id = ? AND place_id = ?", w.ID, placeID).
		Count(&count).Error
	return count > 0, err
}
