// models/token.go
package models

import "time"

// Token is the balance of one asset inside one wallet. Value is an int64 in
// minor units (cents) and must never go negative. Rows are created lazily at
// zero on the first credit to a (wallet, asset) pair.
type Token struct {
	ID string `gorm:"primaryKey;type:uuid;not null" json:"uuid"`

	WalletID string `gorm:"type:uuid;not null;uniqueIndex:idx_token_wallet_asset" json:"wallet"`
	Wallet   Wallet `gorm:"foreignKey:WalletID" json:"-"`
	AssetID  string `gorm:"type:uuid;not null;uniqueIndex:idx_token_wallet_asset" json:"asset"`
	Asset    Asset  `gorm:"foreignKey:AssetID" json:"-"`

	Value int64 `gorm:"not null;default:0" json:"value"`

	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	LastTransactionAt *time.Time `json:"last_transaction_datetime"`
}
