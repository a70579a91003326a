// services/testutil_test.go
package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"federation-ledger-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Wallet{},
		&models.Asset{},
		&models.Token{},
		&models.User{},
		&models.Place{},
		&models.Origin{},
		&models.Card{},
		&models.Checkout{},
		&models.Transaction{},
	))
	return db
}

// fixture is the worked scenario of the ledger: place P with treasury WP,
// accepted local asset, primary card C1, user U with wallet WU and card C2,
// and WU delegating debit authority to P.
type fixture struct {
	db *gorm.DB

	place       *models.Place
	placeWallet *models.Wallet
	origin      *models.Origin
	local       *models.Asset

	primaryCard *models.Card

	user       *models.User
	userWallet *models.Wallet
	userCard   *models.Card
}

func newFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	f := &fixture{db: db}

	f.placeWallet = &models.Wallet{ID: uuid.NewString()}
	require.NoError(t, db.Create(f.placeWallet).Error)
	f.place = &models.Place{
		ID:       uuid.NewString(),
		Name:     "Le Tiers Lieu",
		WalletID: f.placeWallet.ID,
	}
	require.NoError(t, db.Create(f.place).Error)

	f.origin = &models.Origin{
		ID:         uuid.NewString(),
		PlaceID:    f.place.ID,
		Generation: 1,
	}
	require.NoError(t, db.Create(f.origin).Error)

	f.local = &models.Asset{
		ID:             uuid.NewString(),
		Name:           "Local Token",
		CurrencyCode:   "LOC",
		Category:       models.AssetLocalNotFiat,
		WalletOriginID: f.placeWallet.ID,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, db.Create(f.local).Error)
	require.NoError(t, db.Exec(
		"INSERT INTO place_accepted_assets (place_id, asset_id) VALUES (?, ?)",
		f.place.ID, f.local.ID).Error)

	f.primaryCard = f.newCard(t)
	require.NoError(t, db.Exec(
		"INSERT INTO place_primary_cards (place_id, card_id) VALUES (?, ?)",
		f.place.ID, f.primaryCard.ID).Error)

	f.user, f.userWallet, f.userCard = f.newUserWithCard(t, "user@example.org")
	f.delegate(t, f.userWallet)

	return f
}

var tagCounter int

func (f *fixture) newCard(t *testing.T) *models.Card {
	t.Helper()
	tagCounter++
	card := &models.Card{
		ID:            uuid.NewString(),
		FirstTagID:    fmt.Sprintf("TAG%05d", tagCounter),
		QRCodeUUID:    uuid.NewString(),
		NumberPrinted: fmt.Sprintf("%08d", tagCounter),
		OriginID:      f.origin.ID,
	}
	require.NoError(t, f.db.Create(card).Error)
	return card
}

func (f *fixture) newUserWithCard(t *testing.T, email string) (*models.User, *models.Wallet, *models.Card) {
	t.Helper()
	wallet := &models.Wallet{ID: uuid.NewString()}
	require.NoError(t, f.db.Create(wallet).Error)
	user := &models.User{
		ID:       uuid.NewString(),
		Email:    email,
		WalletID: wallet.ID,
	}
	require.NoError(t, f.db.Create(user).Error)

	card := f.newCard(t)
	require.NoError(t, f.db.Model(card).Update("user_id", user.ID).Error)
	card.UserID = &user.ID
	return user, wallet, card
}

func (f *fixture) delegate(t *testing.T, wallet *models.Wallet) {
	t.Helper()
	require.NoError(t, f.db.Exec(
		"INSERT INTO wallet_authority_delegations (wallet_id, place_id) VALUES (?, ?)",
		wallet.ID, f.place.ID).Error)
}

// newEphemeralCard issues a card carrying an ephemeral wallet preloaded with
// the given balance of the local asset.
func (f *fixture) newEphemeralCard(t *testing.T, balance int64) (*models.Card, *models.Wallet) {
	t.Helper()
	wallet := &models.Wallet{ID: uuid.NewString()}
	require.NoError(t, f.db.Create(wallet).Error)
	card := f.newCard(t)
	require.NoError(t, f.db.Model(card).Update("ephemeral_wallet_id", wallet.ID).Error)
	card.EphemeralWalletID = &wallet.ID

	if balance > 0 {
		require.NoError(t, f.db.Create(&models.Token{
			ID:       uuid.NewString(),
			WalletID: wallet.ID,
			AssetID:  f.local.ID,
			Value:    balance,
		}).Error)
	}
	return card, wallet
}

func (f *fixture) balance(t *testing.T, walletID, assetID string) int64 {
	t.Helper()
	var token models.Token
	err := f.db.First(&token, "wallet_id = ? AND asset_id = ?", walletID, assetID).Error
	if err == gorm.ErrRecordNotFound {
		return 0
	}
	require.NoError(t, err)
	return token.Value
}
