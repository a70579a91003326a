// services/ledger_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"federation-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// keyedMutex hands out one mutex per (wallet, asset) key so unrelated
// balances progress independently. Locks are acquired in sorted key order to
// stay deadlock-free.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

func (k *keyedMutex) lockAll(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			uniq = append(uniq, key)
		}
	}
	sort.Strings(uniq)
	held := make([]*sync.Mutex, 0, len(uniq))
	for _, key := range uniq {
		m := k.get(key)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func tokenKey(walletID, assetID string) string {
	return walletID + "|" + assetID
}

// LedgerService is the transaction engine: it classifies, validates, applies
// balance effects atomically and appends hash-chained records. The chain is
// global, so appends are serialized on chainMu; token reads/writes are
// additionally guarded per (wallet, asset).
type LedgerService struct {
	DB *gorm.DB

	tokenLocks *keyedMutex

	chainMu   sync.Mutex
	headID    *string // id of the last chained transaction, nil before genesis
	headHash  string
	headKnown bool
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{
		DB:         db,
		tokenLocks: newKeyedMutex(),
	}
}

// loadChainHead finds the tail of the chain: the one transaction no other
// record names as its previous link. Caller holds chainMu.
func (s *LedgerService) loadChainHead() error {
	if s.headKnown {
		return nil
	}
	var head models.Transaction
	err := s.DB.
		Where("id NOT IN (?)", s.DB.Model(&models.Transaction{}).
			Select("previous_transaction_id").
			Where("previous_transaction_id IS NOT NULL")).
		First(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.headID = nil
		s.headHash = models.GenesisHash()
		s.headKnown = true
		return nil
	}
	if err != nil {
		return err
	}
	s.headID = &head.ID
	s.headHash = head.Hash
	s.headKnown = true
	return nil
}

// SubmitRequest carries one prospective transfer. The requesting place is an
// explicit parameter — never ambient request state.
type SubmitRequest struct {
	Place *models.Place

	SenderID   string
	ReceiverID string
	AssetID    string
	Amount     int64

	// Advisory only: classification decides the applied action.
	ActionHint models.Action

	PrimaryCard *models.Card
	UserCard    *models.Card
	Checkout    *models.Checkout

	Comment             string
	Metadata            string
	IP                  string
	SubscriptionStartAt *time.Time
}

// transferSpec is a fully-authorized transfer the engine applies without
// re-inspecting fields: the action tag is final.
type transferSpec struct {
	action     models.Action
	senderID   string
	receiverID string
	asset      *models.Asset
	amount     int64

	comment             string
	metadata            string
	ip                  string
	cardID              *string
	primaryCardID       *string
	checkoutID          *string
	subscriptionStartAt *time.Time
}

// Submit validates, classifies and applies one transfer. It returns the
// created transaction and the action that was actually applied, which may
// differ from the caller's hint.
func (s *LedgerService) Submit(ctx context.Context, req SubmitRequest) (*models.Transaction, models.Action, error) {
	if req.Place == nil {
		return nil, "", &models.ClassificationError{Reason: "place not found"}
	}
	if req.Amount < 0 {
		return nil, "", &models.ClassificationError{Reason: "amount must be positive"}
	}

	input, asset, err := s.buildClassifyInput(req)
	if err != nil {
		return nil, "", err
	}

	action, err := Classify(input)
	if err != nil {
		return nil, "", err
	}

	if req.Amount == 0 && action != models.ActionBadge {
		return nil, "", &models.ClassificationError{Reason: "amount must be positive"}
	}

	// A place may only move value it is party to, unless the asset is the
	// externally-backed one (gateway top-ups) or the action is a fusion.
	if req.Place.WalletID != req.SenderID &&
		req.Place.WalletID != req.ReceiverID &&
		!asset.IsExternalPrimary &&
		action != models.ActionFusion {
		return nil, "", &models.ClassificationError{Reason: "place must be sender or receiver"}
	}

	spec := transferSpec{
		action:              action,
		senderID:            req.SenderID,
		receiverID:          req.ReceiverID,
		asset:               asset,
		amount:              req.Amount,
		comment:             req.Comment,
		metadata:            req.Metadata,
		ip:                  req.IP,
		subscriptionStartAt: req.SubscriptionStartAt,
	}
	if req.UserCard != nil {
		spec.cardID = &req.UserCard.ID
	}
	if req.PrimaryCard != nil {
		spec.primaryCardID = &req.PrimaryCard.ID
	}
	if req.Checkout != nil {
		spec.checkoutID = &req.Checkout.ID
	}

	transaction, err := s.execute(ctx, spec)
	if err != nil {
		return nil, "", err
	}
	return transaction, action, nil
}

// buildClassifyInput loads the snapshot the pure classifier decides on.
func (s *LedgerService) buildClassifyInput(req SubmitRequest) (ClassifyInput, *models.Asset, error) {
	var asset models.Asset
	if err := s.DB.First(&asset, "id = ?", req.AssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ClassifyInput{}, nil, &models.ClassificationError{Reason: "asset does not exist"}
		}
		return ClassifyInput{}, nil, err
	}

	input := ClassifyInput{
		ActionHint:             req.ActionHint,
		SenderID:               req.SenderID,
		ReceiverID:             req.ReceiverID,
		AssetCategory:          asset.Category,
		AssetOriginWalletID:    asset.WalletOriginID,
		AssetIsExternalPrimary: asset.IsExternalPrimary,
		PlaceID:                req.Place.ID,
		PlaceWalletID:          req.Place.WalletID,
		HasCheckout:            req.Checkout != nil,
	}

	var senderUsers int64
	if err := s.DB.Model(&models.User{}).Where("wallet_id = ?", req.SenderID).Count(&senderUsers).Error; err != nil {
		return ClassifyInput{}, nil, err
	}
	input.SenderHasUser = senderUsers > 0

	var receiverUsers int64
	if err := s.DB.Model(&models.User{}).Where("wallet_id = ?", req.ReceiverID).Count(&receiverUsers).Error; err != nil {
		return ClassifyInput{}, nil, err
	}
	input.ReceiverHasUser = receiverUsers > 0

	var ephemeralCard models.Card
	err := s.DB.Preload("Origin").First(&ephemeralCard, "ephemeral_wallet_id = ?", req.SenderID).Error
	if err == nil {
		input.SenderEphemeralCard = &CardFacts{
			ID:            ephemeralCard.ID,
			OriginPlaceID: ephemeralCard.Origin.PlaceID,
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ClassifyInput{}, nil, err
	}

	if req.PrimaryCard != nil {
		input.PrimaryCard = &CardFacts{ID: req.PrimaryCard.ID}
		isPrimary, err := req.Place.HasPrimaryCard(s.DB, req.PrimaryCard.ID)
		if err != nil {
			return ClassifyInput{}, nil, err
		}
		input.PrimaryCardIsPlacePrimary = isPrimary
	}
	if req.UserCard != nil {
		input.UserCard = &CardFacts{ID: req.UserCard.ID}
		wallet, err := req.UserCard.ResolveWallet(s.DB)
		if err == nil {
			delegates, derr := wallet.DelegatesTo(s.DB, req.Place.ID)
			if derr != nil {
				return ClassifyInput{}, nil, derr
			}
			input.UserWalletDelegatesToPlace = delegates
		} else if !errors.Is(err, models.ErrCardUnassigned) {
			return ClassifyInput{}, nil, err
		}
	}

	accepted, err := req.Place.AcceptsAsset(s.DB, asset.ID)
	if err != nil {
		return ClassifyInput{}, nil, err
	}
	input.AssetAcceptedByPlace = accepted

	return input, &asset, nil
}

// execute applies an already-authorized transfer: balance gates, atomic
// debit+credit, hash-chain append with immediate re-verification. REFILL (and
// a SUBSCRIBE sold by the asset's origin) first mints a CREATION companion —
// the only action that increases an asset's total supply.
func (s *LedgerService) execute(ctx context.Context, spec transferSpec) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.tokenLocks.lockAll(
		tokenKey(spec.senderID, spec.asset.ID),
		tokenKey(spec.receiverID, spec.asset.ID),
	)
	defer unlock()

	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	if err := s.loadChainHead(); err != nil {
		return nil, err
	}

	mints := spec.action == models.ActionRefill ||
		(spec.action == models.ActionSubscribe && spec.senderID == spec.asset.WalletOriginID)

	var transaction *models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		senderToken, err := s.senderToken(tx, spec)
		if err != nil {
			return err
		}
		receiverToken, err := getOrCreateToken(tx, spec.receiverID, spec.asset.ID)
		if err != nil {
			return err
		}

		if mints {
			creation := &models.Transaction{
				ID:            uuid.NewString(),
				Action:        models.ActionCreation,
				SenderID:      spec.senderID,
				ReceiverID:    spec.senderID,
				AssetID:       spec.asset.ID,
				Amount:        spec.amount,
				Comment:       spec.comment,
				Metadata:      spec.metadata,
				IP:            spec.ip,
				CardID:        spec.cardID,
				PrimaryCardID: spec.primaryCardID,
				CheckoutID:    spec.checkoutID,
			}
			if err := s.appendChained(tx, creation); err != nil {
				return err
			}
			senderToken.Value += spec.amount
			if err := touchToken(tx, senderToken, creation.CreatedAt); err != nil {
				return err
			}
		}

		if senderToken.Value < spec.amount {
			return &models.BalanceError{
				Kind:     models.BalanceInsufficient,
				WalletID: spec.senderID,
				AssetID:  spec.asset.ID,
			}
		}

		transaction = &models.Transaction{
			ID:                  uuid.NewString(),
			Action:              spec.action,
			SenderID:            spec.senderID,
			ReceiverID:          spec.receiverID,
			AssetID:             spec.asset.ID,
			Amount:              spec.amount,
			Comment:             spec.comment,
			Metadata:            spec.metadata,
			IP:                  spec.ip,
			CardID:              spec.cardID,
			PrimaryCardID:       spec.primaryCardID,
			CheckoutID:          spec.checkoutID,
			SubscriptionStartAt: spec.subscriptionStartAt,
		}
		if err := s.appendChained(tx, transaction); err != nil {
			return err
		}

		// Debit and credit commit together or not at all.
		senderToken.Value -= spec.amount
		if err := touchToken(tx, senderToken, transaction.CreatedAt); err != nil {
			return err
		}
		if spec.senderID == spec.receiverID {
			// Self-credit already reflected in the sender row.
			return nil
		}
		receiverToken.Value += spec.amount
		return touchToken(tx, receiverToken, transaction.CreatedAt)
	})
	if err != nil {
		// The in-memory head may name rows the rollback discarded.
		s.headKnown = false
		return nil, err
	}

	s.headID = &transaction.ID
	s.headHash = transaction.Hash
	return transaction, nil
}

func (s *LedgerService) senderToken(tx *gorm.DB, spec transferSpec) (*models.Token, error) {
	var token models.Token
	err := tx.First(&token, "wallet_id = ? AND asset_id = ?", spec.senderID, spec.asset.ID).Error
	if err == nil {
		return &token, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if spec.action == models.ActionSale || spec.action == models.ActionTransfer {
		// Absence of the sender token is a distinct error from insufficiency.
		return nil, &models.BalanceError{
			Kind:     models.BalanceTokenMissing,
			WalletID: spec.senderID,
			AssetID:  spec.asset.ID,
		}
	}
	return getOrCreateToken(tx, spec.senderID, spec.asset.ID)
}

func getOrCreateToken(tx *gorm.DB, walletID, assetID string) (*models.Token, error) {
	var token models.Token
	err := tx.First(&token, "wallet_id = ? AND asset_id = ?", walletID, assetID).Error
	if err == nil {
		return &token, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	token = models.Token{
		ID:       uuid.NewString(),
		WalletID: walletID,
		AssetID:  assetID,
		Value:    0,
	}
	if err := tx.Create(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func touchToken(tx *gorm.DB, token *models.Token, at time.Time) error {
	return tx.Model(&models.Token{}).Where("id = ?", token.ID).
		Updates(map[string]any{
			"value":               token.Value,
			"last_transaction_at": at,
		}).Error
}

// appendChained links the record onto the chain head, stores it, and
// immediately recomputes the hash from the stored row. A mismatch is fatal.
// Caller holds chainMu inside an open database transaction.
func (s *LedgerService) appendChained(tx *gorm.DB, t *models.Transaction) error {
	t.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	t.PreviousTransactionID = s.headID
	t.Hash = t.ComputeHash(s.headHash)

	if err := tx.Create(t).Error; err != nil {
		return err
	}

	var stored models.Transaction
	if err := tx.First(&stored, "id = ?", t.ID).Error; err != nil {
		return err
	}
	if stored.ComputeHash(s.headHash) != stored.Hash {
		log.Printf("❌ [LEDGER] hash mismatch on freshly chained transaction %s", t.ID)
		return &models.IntegrityError{TransactionID: t.ID}
	}

	// Within the same database transaction the next append chains onto this
	// record; the in-memory head is published only after commit.
	s.headID = &t.ID
	s.headHash = t.Hash
	return nil
}

// VerifyChain recomputes and compares the hash for a transaction and up to
// depth ancestors (depth < 0 walks to genesis). Verification walks ids
// through lookups, never recursive object graphs.
func (s *LedgerService) VerifyChain(transactionID string, depth int) (bool, error) {
	currentID := transactionID
	for steps := 0; depth < 0 || steps <= depth; steps++ {
		var t models.Transaction
		if err := s.DB.First(&t, "id = ?", currentID).Error; err != nil {
			return false, err
		}
		ok, err := t.VerifyHash(s.DB)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if t.PreviousTransactionID == nil {
			return true, nil
		}
		currentID = *t.PreviousTransactionID
	}
	return true, nil
}

// RefundCard sweeps every positive fiat-like token the place accepts from the
// card's wallet back to the place treasury. Best effort: one failing asset
// does not roll back the others, but every failure is surfaced.
func (s *LedgerService) RefundCard(ctx context.Context, place *models.Place, userCard *models.Card, primaryCard *models.Card, ip string) ([]*models.Transaction, error) {
	isPrimary, err := place.HasPrimaryCard(s.DB, primaryCard.ID)
	if err != nil {
		return nil, err
	}
	if !isPrimary {
		return nil, &models.ClassificationError{Reason: "primary card must be in place primary cards"}
	}

	wallet, err := userCard.ResolveWallet(s.DB)
	if err != nil {
		return nil, err
	}

	var tokens []models.Token
	err = s.DB.Preload("Asset").
		Joins("JOIN assets ON assets.id = tokens.asset_id").
		Joins("JOIN place_accepted_assets paa ON paa.asset_id = tokens.asset_id AND paa.place_id = ?", place.ID).
		Where("tokens.wallet_id = ? AND tokens.value > 0", wallet.ID).
		Where("assets.category IN ?", []models.AssetCategory{models.AssetLocalFiat, models.AssetLocalNotFiat}).
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}

	var transactions []*models.Transaction
	var sweepErrs []error
	for i := range tokens {
		token := tokens[i]
		transaction, err := s.execute(ctx, transferSpec{
			action:        models.ActionRefund,
			senderID:      wallet.ID,
			receiverID:    place.WalletID,
			asset:         &token.Asset,
			amount:        token.Value,
			ip:            ip,
			cardID:        &userCard.ID,
			primaryCardID: &primaryCard.ID,
		})
		if err != nil {
			sweepErrs = append(sweepErrs, fmt.Errorf("refund of asset %s: %w", token.AssetID, err))
			continue
		}
		transactions = append(transactions, transaction)
	}
	return transactions, errors.Join(sweepErrs...)
}

// VoidCard runs the refund sweep, then detaches the card from its user and
// ephemeral wallet so it becomes unassigned and reusable. The ephemeral
// wallet is kept for audit, never reused.
func (s *LedgerService) VoidCard(ctx context.Context, place *models.Place, userCard *models.Card, primaryCard *models.Card, ip string) ([]*models.Transaction, error) {
	transactions, err := s.RefundCard(ctx, place, userCard, primaryCard, ip)
	if err != nil {
		return transactions, err
	}
	err = s.DB.Model(&models.Card{}).Where("id = ?", userCard.ID).
		Updates(map[string]any{
			"user_id":             nil,
			"ephemeral_wallet_id": nil,
		}).Error
	if err != nil {
		return transactions, err
	}
	userCard.UserID = nil
	userCard.EphemeralWalletID = nil
	return transactions, nil
}
