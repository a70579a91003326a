// services/asset_service_test.go
package services

import (
	"testing"

	"federation-ledger-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAsset(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	assets := NewAssetService(db)

	asset, err := assets.CreateAsset(f.place, "House Beer Token", "hbt", models.AssetLocalNotFiat, false)
	require.NoError(t, err)
	assert.Equal(t, "HBT", asset.CurrencyCode)
	assert.Equal(t, f.placeWallet.ID, asset.WalletOriginID)

	// The originating place accepts its own asset immediately.
	accepted, err := f.place.AcceptsAsset(db, asset.ID)
	require.NoError(t, err)
	assert.True(t, accepted)

	_, err = assets.CreateAsset(f.place, "House Beer Token", "HBT", models.AssetLocalNotFiat, false)
	assert.ErrorIs(t, err, ErrAssetExists)
}

func TestExternalPrimaryIsUnique(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	assets := NewAssetService(db)

	first, err := assets.CreateAsset(f.place, "Federated Euro", "FED", models.AssetExternalPrimary, true)
	require.NoError(t, err)

	_, err = assets.CreateAsset(f.place, "Another Euro", "EUR", models.AssetExternalPrimary, true)
	assert.ErrorIs(t, err, ErrExternalPrimaryTaken)

	canonical, err := assets.ExternalPrimaryAsset()
	require.NoError(t, err)
	assert.Equal(t, first.ID, canonical.ID)
}

func TestAcceptAssetIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	assets := NewAssetService(db)

	other, err := assets.CreateAsset(f.place, "Other Token", "OTH", models.AssetLocalNotFiat, false)
	require.NoError(t, err)

	require.NoError(t, assets.AcceptAsset(f.place, other.ID))
	require.NoError(t, assets.AcceptAsset(f.place, other.ID))

	var count int64
	require.NoError(t, db.Table("place_accepted_assets").
		Where("place_id = ? AND asset_id = ?", f.place.ID, other.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
