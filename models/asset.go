// models/asset.go
package models

import "time"

type AssetCategory string

const (
	AssetLocalFiat       AssetCategory = "LOCAL_FIAT"
	AssetLocalNotFiat    AssetCategory = "LOCAL_NOT_FIAT"
	AssetSubscription    AssetCategory = "SUBSCRIPTION"
	AssetBadge           AssetCategory = "BADGE"
	AssetExternalPrimary AssetCategory = "EXTERNAL_PRIMARY"
)

// Asset is the identity of one currency-like unit. Name is globally unique,
// category is immutable after creation, and at most one asset system-wide
// carries IsExternalPrimary (the externally-backed top-up currency).
type Asset struct {
	ID           string        `gorm:"primaryKey;type:uuid;not null" json:"uuid"`
	Name         string        `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	CurrencyCode string        `gorm:"type:varchar(3);not null" json:"currency_code"`
	Category     AssetCategory `gorm:"type:varchar(20);not null;index" json:"category"`

	// Wallet of the place (or of the system, for the external primary asset)
	// that minted this asset into existence.
	WalletOriginID string `gorm:"type:uuid;not null;index" json:"wallet_origin"`
	WalletOrigin   Wallet `gorm:"foreignKey:WalletOriginID" json:"-"`

	IsExternalPrimary bool `gorm:"not null;default:false" json:"is_external_primary"`

	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	LastUpdate time.Time `gorm:"autoUpdateTime" json:"last_update"`
}

func (a *Asset) IsFiatLike() bool {
	return a.Category == AssetLocalFiat || a.Category == AssetLocalNotFiat
}
