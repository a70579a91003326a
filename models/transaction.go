// models/transaction.go
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Action is the authorized category of a transaction, decided once by the
// classifier and consumed as-is by the engine.
type Action string

const (
	ActionCreation  Action = "CREATION"
	ActionRefill    Action = "REFILL"
	ActionSale      Action = "SALE"
	ActionTransfer  Action = "TRANSFER"
	ActionSubscribe Action = "SUBSCRIBE"
	ActionBadge     Action = "BADGE"
	ActionFusion    Action = "FUSION"
	ActionRefund    Action = "REFUND"
	ActionVoid      Action = "VOID"
)

// Transaction is the append-only ledger record. Once created, only
// LastVerifiedAt may ever change (audit stamping) — corrections happen via
// compensating REFUND/VOID transactions, never by editing history.
type Transaction struct {
	ID     string `gorm:"primaryKey;type:uuid;not null" json:"uuid"`
	Action Action `gorm:"type:varchar(10);not null;index" json:"action"`

	SenderID   string `gorm:"type:uuid;not null;index" json:"sender"`
	Sender     Wallet `gorm:"foreignKey:SenderID" json:"-"`
	ReceiverID string `gorm:"type:uuid;not null;index" json:"receiver"`
	Receiver   Wallet `gorm:"foreignKey:ReceiverID" json:"-"`
	AssetID    string `gorm:"type:uuid;not null;index" json:"asset"`
	Asset      Asset  `gorm:"foreignKey:AssetID" json:"-"`

	// Minor units. Zero is permitted only for BADGE.
	Amount int64 `gorm:"not null" json:"amount"`

	// Microsecond precision so the stored value survives a database
	// round-trip byte-for-byte for hashing.
	CreatedAt time.Time `gorm:"not null;index" json:"datetime"`

	SubscriptionStartAt *time.Time `json:"subscription_start_datetime,omitempty"`
	Comment             string     `gorm:"type:text" json:"comment,omitempty"`
	Metadata            string     `gorm:"type:text" json:"metadata,omitempty"`

	CardID        *string `gorm:"type:uuid" json:"card,omitempty"`
	PrimaryCardID *string `gorm:"type:uuid" json:"primary_card,omitempty"`
	CheckoutID    *string `gorm:"type:uuid" json:"checkout,omitempty"`

	IP string `gorm:"type:varchar(45)" json:"-"`

	// Link to the immediately preceding transaction in the chain. Stored as
	// an id, walked through lookups, never as a live object graph.
	PreviousTransactionID *string `gorm:"type:uuid;uniqueIndex" json:"previous_transaction"`
	Hash                  string  `gorm:"type:varchar(64);not null;uniqueIndex" json:"hash"`

	// Audit stamp, the only mutable field.
	LastVerifiedAt *time.Time `json:"last_check,omitempty"`
}

// GenesisHash anchors the first link of the chain.
func GenesisHash() string {
	sum := sha256.Sum256([]byte("federation-ledger-genesis"))
	return hex.EncodeToString(sum[:])
}

// ComputeHash derives the content hash from the previous link's hash and the
// immutable fields of this record.
func (t *Transaction) ComputeHash(previousHash string) string {
	payload := strings.Join([]string{
		previousHash,
		string(t.Action),
		t.SenderID,
		t.ReceiverID,
		t.AssetID,
		strconv.FormatInt(t.Amount, 10),
		strconv.FormatInt(t.CreatedAt.UTC().UnixMicro(), 10),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// PreviousHash resolves the hash this record was chained onto.
func (t *Transaction) PreviousHash(db *gorm.DB) (string, error) {
	if t.PreviousTransactionID == nil {
		return GenesisHash(), nil
	}
	var previous Transaction
	if err := db.Select("hash").First(&previous, "id = ?", *t.PreviousTransactionID).Error; err != nil {
		return "", err
	}
	return previous.Hash, nil
}

// VerifyHash recomputes the content hash from stored fields and compares it
// to the stored one.
func (t *Transaction) VerifyHash(db *gorm.DB) (bool, error) {
	previousHash, err := t.PreviousHash(db)
	if err != nil {
		return false, err
	}
	return t.ComputeHash(previousHash) == t.Hash, nil
}
