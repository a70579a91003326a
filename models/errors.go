// models/errors.go
package models

import "fmt"

// AuthenticationError rejects a request before any ledger read. The reason is
// for operator logs only; callers just get "not authenticated".
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "not authenticated"
}

// ClassificationError means no authorized action exists for the submitted
// sender/receiver/asset/card combination. Reason names the rule that failed.
type ClassificationError struct {
	Reason string
}

func (e *ClassificationError) Error() string {
	return e.Reason
}

type BalanceErrorKind string

const (
	BalanceTokenMissing BalanceErrorKind = "token_missing"
	BalanceInsufficient BalanceErrorKind = "insufficient"
)

// BalanceError distinguishes "token never existed" from "token exists but
// insufficient" — callers treat the two differently.
type BalanceError struct {
	Kind     BalanceErrorKind
	WalletID string
	AssetID  string
}

func (e *BalanceError) Error() string {
	if e.Kind == BalanceTokenMissing {
		return "sender token does not exist"
	}
	return "not enough token on sender wallet"
}

// IntegrityError is fatal: a stored transaction hash no longer matches its
// recomputed value. Never auto-corrected.
type IntegrityError struct {
	TransactionID string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("transaction hash is not valid: %s", e.TransactionID)
}

// FusionIncompleteError: the ephemeral wallet kept a nonzero balance after a
// fusion attempt. The card linkage is left unchanged; retryable.
type FusionIncompleteError struct {
	EphemeralWalletID string
}

func (e *FusionIncompleteError) Error() string {
	return fmt.Sprintf("ephemeral wallet not empty after fusion: %s", e.EphemeralWalletID)
}
