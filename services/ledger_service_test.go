// services/ledger_service_test.go
package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"federation-ledger-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refill(t *testing.T, f *fixture, ledger *LedgerService, amount int64) *models.Transaction {
	t.Helper()
	transaction, action, err := ledger.Submit(context.Background(), SubmitRequest{
		Place:       f.place,
		SenderID:    f.placeWallet.ID,
		ReceiverID:  f.userWallet.ID,
		AssetID:     f.local.ID,
		Amount:      amount,
		ActionHint:  models.ActionRefill,
		PrimaryCard: f.primaryCard,
		UserCard:    f.userCard,
	})
	require.NoError(t, err)
	require.Equal(t, models.ActionRefill, action)
	return transaction
}

func TestSubmitRefillMintsThenTransfers(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)

	transaction := refill(t, f, ledger, 10)

	assert.EqualValues(t, 10, f.balance(t, f.userWallet.ID, f.local.ID))
	assert.EqualValues(t, 0, f.balance(t, f.placeWallet.ID, f.local.ID))

	// The minting CREATION is the refill's immediate predecessor in the
	// chain: sender == receiver == the minting wallet, same amount.
	require.NotNil(t, transaction.PreviousTransactionID)
	var creation models.Transaction
	require.NoError(t, db.First(&creation, "id = ?", *transaction.PreviousTransactionID).Error)
	assert.Equal(t, models.ActionCreation, creation.Action)
	assert.Equal(t, f.placeWallet.ID, creation.SenderID)
	assert.Equal(t, f.placeWallet.ID, creation.ReceiverID)
	assert.EqualValues(t, 10, creation.Amount)

	ok, err := ledger.VerifyChain(transaction.ID, -1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubmitSaleDebitsAndCredits(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)
	refill(t, f, ledger, 10)

	transaction, action, err := ledger.Submit(context.Background(), SubmitRequest{
		Place:       f.place,
		SenderID:    f.userWallet.ID,
		ReceiverID:  f.placeWallet.ID,
		AssetID:     f.local.ID,
		Amount:      4,
		PrimaryCard: f.primaryCard,
		UserCard:    f.userCard,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionSale, action)
	assert.EqualValues(t, 4, transaction.Amount)

	assert.EqualValues(t, 6, f.balance(t, f.userWallet.ID, f.local.ID))
	assert.EqualValues(t, 4, f.balance(t, f.placeWallet.ID, f.local.ID))
}

func TestSubmitInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)
	refill(t, f, ledger, 6)

	_, _, err := ledger.Submit(context.Background(), SubmitRequest{
		Place:       f.place,
		SenderID:    f.userWallet.ID,
		ReceiverID:  f.placeWallet.ID,
		AssetID:     f.local.ID,
		Amount:      100,
		PrimaryCard: f.primaryCard,
		UserCard:    f.userCard,
	})
	var balErr *models.BalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, models.BalanceInsufficient, balErr.Kind)

	// No state change on rejection.
	assert.EqualValues(t, 6, f.balance(t, f.userWallet.ID, f.local.ID))
	assert.EqualValues(t, 0, f.balance(t, f.placeWallet.ID, f.local.ID))
}

func TestSubmitMissingTokenIsDistinctError(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)

	_, wallet2, card2 := f.newUserWithCard(t, "second@example.org")
	f.delegate(t, wallet2)

	_, _, err := ledger.Submit(context.Background(), SubmitRequest{
		Place:       f.place,
		SenderID:    wallet2.ID,
		ReceiverID:  f.placeWallet.ID,
		AssetID:     f.local.ID,
		Amount:      5,
		PrimaryCard: f.primaryCard,
		UserCard:    card2,
	})
	var balErr *models.BalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, models.BalanceTokenMissing, balErr.Kind)
}

func TestSubmitRejectsBadAmounts(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)

	_, _, err := ledger.Submit(context.Background(), SubmitRequest{
		Place:      f.place,
		SenderID:   f.placeWallet.ID,
		ReceiverID: f.userWallet.ID,
		AssetID:    f.local.ID,
		Amount:     -5,
	})
	var classErr *models.ClassificationError
	require.ErrorAs(t, err, &classErr)

	_, _, err = ledger.Submit(context.Background(), SubmitRequest{
		Place:       f.place,
		SenderID:    f.placeWallet.ID,
		ReceiverID:  f.userWallet.ID,
		AssetID:     f.local.ID,
		Amount:      0,
		PrimaryCard: f.primaryCard,
		UserCard:    f.userCard,
	})
	require.ErrorAs(t, err, &classErr)
}

func TestSubmitBadgeAllowsZeroAmount(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)

	badge := &models.Asset{
		ID:             "badge-asset",
		Name:           "Entrance Badge",
		CurrencyCode:   "BDG",
		Category:       models.AssetBadge,
		WalletOriginID: f.placeWallet.ID,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, db.Create(badge).Error)

	transaction, action, err := ledger.Submit(context.Background(), SubmitRequest{
		Place:       f.place,
		SenderID:    f.placeWallet.ID,
		ReceiverID:  f.userWallet.ID,
		AssetID:     badge.ID,
		Amount:      0,
		PrimaryCard: f.primaryCard,
		UserCard:    f.userCard,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionBadge, action)
	assert.EqualValues(t, 0, transaction.Amount)
}

func TestSubmitSubscribeMintsFromOrigin(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)

	subscription := &models.Asset{
		ID:             "sub-asset",
		Name:           "Yearly Membership",
		CurrencyCode:   "MEM",
		Category:       models.AssetSubscription,
		WalletOriginID: f.placeWallet.ID,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, db.Create(subscription).Error)

	start := time.Now().UTC().Truncate(time.Second)
	_, action, err := ledger.Submit(context.Background(), SubmitRequest{
		Place:               f.place,
		SenderID:            f.placeWallet.ID,
		ReceiverID:          f.userWallet.ID,
		AssetID:             subscription.ID,
		Amount:              300,
		SubscriptionStartAt: &start,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionSubscribe, action)
	assert.EqualValues(t, 300, f.balance(t, f.userWallet.ID, subscription.ID))
}

func TestSupplyChangesOnlyThroughCreation(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)

	refill(t, f, ledger, 10)
	_, _, err := ledger.Submit(context.Background(), SubmitRequest{
		Place:       f.place,
		SenderID:    f.userWallet.ID,
		ReceiverID:  f.placeWallet.ID,
		AssetID:     f.local.ID,
		Amount:      4,
		PrimaryCard: f.primaryCard,
		UserCard:    f.userCard,
	})
	require.NoError(t, err)

	var totalSupply int64
	require.NoError(t, db.Model(&models.Token{}).
		Where("asset_id = ?", f.local.ID).
		Select("COALESCE(SUM(value), 0)").Scan(&totalSupply).Error)

	var minted int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("asset_id = ? AND action = ?", f.local.ID, models.ActionCreation).
		Select("COALESCE(SUM(amount), 0)").Scan(&minted).Error)

	assert.Equal(t, minted, totalSupply)
	assert.EqualValues(t, 10, totalSupply)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)

	first := refill(t, f, ledger, 10)
	_, _, err := ledger.Submit(context.Background(), SubmitRequest{
		Place:       f.place,
		SenderID:    f.userWallet.ID,
		ReceiverID:  f.placeWallet.ID,
		AssetID:     f.local.ID,
		Amount:      4,
		PrimaryCard: f.primaryCard,
		UserCard:    f.userCard,
	})
	require.NoError(t, err)

	head, err := ledger.ChainHead()
	require.NoError(t, err)
	require.NotNil(t, head)

	ok, err := ledger.VerifyChain(*head, -1)
	require.NoError(t, err)
	require.True(t, ok)

	// Rewrite history: inflate an old amount. Recomputation must now fail.
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("id = ?", first.ID).
		Update("amount", 1_000_000).Error)

	ok, err = ledger.VerifyChain(*head, -1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefundSweepsAcceptedAssets(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)
	refill(t, f, ledger, 10)

	transactions, err := ledger.RefundCard(context.Background(), f.place, f.userCard, f.primaryCard, "")
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, models.ActionRefund, transactions[0].Action)
	assert.EqualValues(t, 10, transactions[0].Amount)

	assert.EqualValues(t, 0, f.balance(t, f.userWallet.ID, f.local.ID))
	assert.EqualValues(t, 10, f.balance(t, f.placeWallet.ID, f.local.ID))
}

func TestVoidDetachesCard(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)
	refill(t, f, ledger, 10)

	_, err := ledger.VoidCard(context.Background(), f.place, f.userCard, f.primaryCard, "")
	require.NoError(t, err)

	var card models.Card
	require.NoError(t, db.First(&card, "id = ?", f.userCard.ID).Error)
	assert.Nil(t, card.UserID)
	assert.Nil(t, card.EphemeralWalletID)
	assert.EqualValues(t, 0, f.balance(t, f.userWallet.ID, f.local.ID))
}

func TestConcurrentSalesNeverOverdraw(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)
	refill(t, f, ledger, 6)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = ledger.Submit(context.Background(), SubmitRequest{
				Place:       f.place,
				SenderID:    f.userWallet.ID,
				ReceiverID:  f.placeWallet.ID,
				AssetID:     f.local.ID,
				Amount:      4,
				PrimaryCard: f.primaryCard,
				UserCard:    f.userCard,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			var balErr *models.BalanceError
			require.ErrorAs(t, err, &balErr)
			assert.Equal(t, models.BalanceInsufficient, balErr.Kind)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.EqualValues(t, 2, f.balance(t, f.userWallet.ID, f.local.ID))
	assert.EqualValues(t, 4, f.balance(t, f.placeWallet.ID, f.local.ID))
}

func TestHintNeverOverridesClassification(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	ledger := NewLedgerService(db)
	refill(t, f, ledger, 10)

	// A sale submitted with a REFILL hint still classifies as SALE: the
	// receiver is the place and no checkout backs an external refill.
	_, action, err := ledger.Submit(context.Background(), SubmitRequest{
		Place:       f.place,
		SenderID:    f.userWallet.ID,
		ReceiverID:  f.placeWallet.ID,
		AssetID:     f.local.ID,
		Amount:      2,
		ActionHint:  models.ActionRefill,
		PrimaryCard: f.primaryCard,
		UserCard:    f.userCard,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionSale, action)
}
