// services/place_service.go
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"federation-ledger-system/models"
	"federation-ledger-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlaceService handles node registration: the signed handshake that binds a
// place to its RSA public key, and API-key resolution for the signature
// middleware.
type PlaceService struct {
	DB *gorm.DB
}

func NewPlaceService(db *gorm.DB) *PlaceService {
	return &PlaceService{DB: db}
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ResolveByAPIKey maps a presented API key to its place. Unknown keys yield
// an AuthenticationError, never a hint about which part failed.
func (s *PlaceService) ResolveByAPIKey(key string) (*models.Place, error) {
	if key == "" {
		return nil, &models.AuthenticationError{Reason: "missing api key"}
	}
	var place models.Place
	err := s.DB.First(&place, "api_key_hash = ?", hashAPIKey(key)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &models.AuthenticationError{Reason: "unknown api key"}
	}
	if err != nil {
		return nil, err
	}
	return &place, nil
}

// VerifyAndBind completes the handshake: the node declares its public key and
// proves possession by signing the handshake payload with the paired private
// key. On success the key is registered on the place.
func (s *PlaceService) VerifyAndBind(placeID, publicKeyPEM, payload, signature string) (*models.Place, error) {
	var place models.Place
	if err := s.DB.First(&place, "id = ?", placeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.AuthenticationError{Reason: "unknown place"}
		}
		return nil, err
	}

	if utils.LoadPublicKey(publicKeyPEM) == nil {
		return nil, &models.AuthenticationError{Reason: "public rsa key invalid"}
	}
	if !utils.VerifySignature(publicKeyPEM, payload, signature) {
		return nil, &models.AuthenticationError{Reason: "invalid handshake signature"}
	}

	if err := s.DB.Model(&place).Update("public_key_pem", publicKeyPEM).Error; err != nil {
		return nil, err
	}
	place.PublicKeyPEM = publicKeyPEM
	return &place, nil
}

// CreatePlace provisions a federated node: its treasury wallet, its record,
// and a fresh API key. The clear key is returned exactly once; only its hash
// is stored.
func (s *PlaceService) CreatePlace(name string) (*models.Place, string, error) {
	apiKey := uuid.NewString()
	var place models.Place
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		wallet := models.Wallet{ID: uuid.NewString()}
		if err := tx.Create(&wallet).Error; err != nil {
			return err
		}
		place = models.Place{
			ID:         uuid.NewString(),
			Name:       name,
			WalletID:   wallet.ID,
			APIKeyHash: hashAPIKey(apiKey),
		}
		return tx.Create(&place).Error
	})
	if err != nil {
		return nil, "", err
	}
	return &place, apiKey, nil
}
