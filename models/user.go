// models/user.go
package models

import "time"

// User is an end user of the federation. Exactly one wallet per user.
type User struct {
	ID    string `gorm:"primaryKey;type:uuid;not null" json:"uuid"`
	Email string `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`

	WalletID string `gorm:"type:uuid;not null;uniqueIndex" json:"wallet"`
	Wallet   Wallet `gorm:"foreignKey:WalletID" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
