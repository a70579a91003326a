// services/classifier.go
package services

import (
	"federation-ledger-system/models"
)

// CardFacts is the classifier-relevant snapshot of a card.
type CardFacts struct {
	ID            string
	OriginPlaceID string
}

// ClassifyInput is everything the classifier is allowed to look at, loaded
// once by the engine. Keeping it a plain value makes classification a pure
// function: same input, same decision, no hidden state.
type ClassifyInput struct {
	ActionHint models.Action // empty when the caller supplied none

	SenderID      string
	ReceiverID    string
	SenderHasUser bool
	// Card holding the sender wallet as its ephemeral wallet, if any.
	SenderEphemeralCard *CardFacts
	ReceiverHasUser     bool

	AssetCategory          models.AssetCategory
	AssetOriginWalletID    string
	AssetIsExternalPrimary bool

	PlaceID       string
	PlaceWalletID string

	HasCheckout bool

	PrimaryCard *CardFacts
	UserCard    *CardFacts

	PrimaryCardIsPlacePrimary bool
	// Receiver place is in the user card wallet's authority delegation set.
	UserWalletDelegatesToPlace bool
	AssetAcceptedByPlace       bool
}

func reject(reason string) (models.Action, error) {
	return "", &models.ClassificationError{Reason: reason}
}

// Classify maps a prospective transfer to exactly one authorized action, or
// rejects it. Rules are checked in priority order: the first match wins, so
// the specific conditions (external refill, place-as-sender) are never
// shadowed by the general ones.
func Classify(in ClassifyInput) (models.Action, error) {
	// External payment-gateway top-up: the external primary asset moves from
	// its origin wallet, backed by a completed checkout.
	if in.ActionHint == models.ActionRefill &&
		in.HasCheckout &&
		in.SenderID == in.AssetOriginWalletID &&
		in.AssetIsExternalPrimary {
		return models.ActionRefill, nil
	}

	// A place-originated transfer is always a minting/subscription/badge
	// event, never a peer transfer.
	if in.SenderID == in.PlaceWalletID {
		if in.AssetCategory == models.AssetSubscription {
			return models.ActionSubscribe, nil
		}
		if in.AssetCategory == models.AssetBadge {
			return models.ActionBadge, nil
		}
		if in.SenderID == in.ReceiverID {
			if in.AssetOriginWalletID == in.PlaceWalletID {
				return reject("refill must target a user wallet, not the place wallet itself")
			}
			return reject("unauthorized asset origin")
		}
		if in.PrimaryCard == nil || in.UserCard == nil {
			return reject("primary card and user card are required for refill")
		}
		return models.ActionRefill, nil
	}

	// Cross-wallet transfer into the place: the SALE gauntlet. Every unmet
	// condition rejects with its specific cause.
	if in.ReceiverID == in.PlaceWalletID {
		if in.PrimaryCard == nil {
			return reject("primary card is required for sale")
		}
		if !in.PrimaryCardIsPlacePrimary {
			return reject("primary card must be in place primary cards")
		}
		if in.UserCard == nil {
			return reject("user card is required for sale")
		}
		if !in.UserWalletDelegatesToPlace {
			return reject("place not in wallet authority delegation")
		}
		if !in.AssetAcceptedByPlace {
			return reject("asset not accepted by place")
		}
		return models.ActionSale, nil
	}

	// Fusion: an unclaimed card's ephemeral wallet drains into an existing
	// user wallet, only at the request of the card's issuing place.
	if in.ActionHint == models.ActionFusion {
		if !in.SenderHasUser &&
			in.SenderEphemeralCard != nil &&
			in.ReceiverHasUser &&
			in.SenderEphemeralCard.OriginPlaceID == in.PlaceID {
			return models.ActionFusion, nil
		}
		return reject("fusion requires an ephemeral sender wallet, a user receiver wallet and the issuing place")
	}

	return reject("no authorized action")
}
