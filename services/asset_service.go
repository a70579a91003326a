// services/asset_service.go
package services

import (
	"errors"
	"strings"
	"time"

	"federation-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrAssetExists          = errors.New("asset already exists")
	ErrExternalPrimaryTaken = errors.New("an external primary asset already exists")
)

// AssetService creates and queries currency-like assets. Names are globally
// unique and the category never changes after creation.
type AssetService struct {
	DB *gorm.DB
}

func NewAssetService(db *gorm.DB) *AssetService {
	return &AssetService{DB: db}
}

// CreateAsset mints a new asset identity originating from the place's
// wallet. At most one asset system-wide may be the external primary.
func (s *AssetService) CreateAsset(place *models.Place, name, currencyCode string, category models.AssetCategory, externalPrimary bool) (*models.Asset, error) {
	var count int64
	if err := s.DB.Model(&models.Asset{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAssetExists
	}
	if externalPrimary {
		if err := s.DB.Model(&models.Asset{}).Where("is_external_primary = ?", true).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrExternalPrimaryTaken
		}
	}

	asset := models.Asset{
		ID:                uuid.NewString(),
		Name:              name,
		CurrencyCode:      strings.ToUpper(currencyCode),
		Category:          category,
		WalletOriginID:    place.WalletID,
		IsExternalPrimary: externalPrimary,
		CreatedAt:         time.Now().UTC(),
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&asset).Error; err != nil {
			return err
		}
		// A place always accepts the assets it originates.
		return tx.Exec("INSERT INTO place_accepted_assets (place_id, asset_id) VALUES (?, ?)",
			place.ID, asset.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// ExternalPrimaryAsset returns the canonical externally-backed asset, if one
// has been created.
func (s *AssetService) ExternalPrimaryAsset() (*models.Asset, error) {
	var asset models.Asset
	if err := s.DB.First(&asset, "is_external_primary = ?", true).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// AcceptAsset adds an asset to the place's accepted set.
func (s *AssetService) AcceptAsset(place *models.Place, assetID string) error {
	accepted, err := place.AcceptsAsset(s.DB, assetID)
	if err != nil || accepted {
		return err
	}
	return s.DB.Exec("INSERT INTO place_accepted_assets (place_id, asset_id) VALUES (?, ?)",
		place.ID, assetID).Error
}
