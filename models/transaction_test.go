// models/transaction_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenesisHashIsStable(t *testing.T) {
	assert.Equal(t, GenesisHash(), GenesisHash())
	assert.Len(t, GenesisHash(), 64)
}

func TestComputeHash(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 535_000, time.UTC)
	transaction := Transaction{
		Action:     ActionSale,
		SenderID:   "wallet-user",
		ReceiverID: "wallet-place",
		AssetID:    "asset-local",
		Amount:     4,
		CreatedAt:  at,
	}

	hash := transaction.ComputeHash(GenesisHash())
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, transaction.ComputeHash(GenesisHash()))

	// Every chained field participates in the digest.
	mutations := []func(*Transaction){
		func(x *Transaction) { x.Action = ActionTransfer },
		func(x *Transaction) { x.SenderID = "wallet-other" },
		func(x *Transaction) { x.ReceiverID = "wallet-other" },
		func(x *Transaction) { x.AssetID = "asset-other" },
		func(x *Transaction) { x.Amount = 5 },
		func(x *Transaction) { x.CreatedAt = at.Add(time.Microsecond) },
	}
	for _, mutate := range mutations {
		altered := transaction
		mutate(&altered)
		assert.NotEqual(t, hash, altered.ComputeHash(GenesisHash()))
	}

	// And so does the previous link.
	assert.NotEqual(t, hash, transaction.ComputeHash("0000000000000000"))
}

func TestComputeHashIgnoresSubMicrosecondDrift(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 535_000, time.UTC)
	a := Transaction{Action: ActionSale, Amount: 1, CreatedAt: at}
	b := a
	b.CreatedAt = at.Add(300 * time.Nanosecond)
	// Below microsecond precision the stored timestamp is identical, so the
	// hash must be too.
	assert.Equal(t, a.ComputeHash(GenesisHash()), b.ComputeHash(GenesisHash()))
}
