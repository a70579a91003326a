// models/checkout.go
package models

import "time"

type CheckoutStatus string

const (
	CheckoutOpen     CheckoutStatus = "open"
	CheckoutPaid     CheckoutStatus = "paid"
	CheckoutSettled  CheckoutStatus = "settled"
	CheckoutExpired  CheckoutStatus = "expired"
	CheckoutCanceled CheckoutStatus = "canceled"
)

// Checkout is the reference to an external payment-gateway session backing a
// REFILL of the external primary asset. A checkout settles at most once.
type Checkout struct {
	ID         string         `gorm:"primaryKey;type:uuid;not null" json:"uuid"`
	ExternalID string         `gorm:"type:varchar(128);not null;uniqueIndex" json:"external_id"`
	Status     CheckoutStatus `gorm:"type:varchar(16);not null;default:'open'" json:"status"`

	// Wallet the top-up is destined for.
	WalletID string `gorm:"type:uuid;not null;index" json:"wallet"`
	Wallet   Wallet `gorm:"foreignKey:WalletID" json:"-"`

	// Card presented at checkout creation, if any; used to attribute the
	// refill to the card's issuing place.
	CardID *string `gorm:"type:uuid" json:"card,omitempty"`
	Card   *Card   `gorm:"foreignKey:CardID" json:"-"`

	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}
