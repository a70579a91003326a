// middleware/signature.go
package middleware

import (
	"encoding/json"
	"log"
	"strings"

	"federation-ledger-system/models"
	"federation-ledger-system/services"
	"federation-ledger-system/utils"

	"github.com/gofiber/fiber/v2"
)

// SignatureAuthMiddleware authenticates every ledger request before any
// ledger read: the API key resolves the calling place, and the Signature
// header must be an RSA-PSS signature (by the place's registered key) over
// the canonical base64 encoding of the JSON body. Failures collapse into one
// "not authenticated" response — no cryptographic detail leaks.
func SignatureAuthMiddleware(places *services.PlaceService) fiber.Handler {
	notAuthenticated := func(c *fiber.Ctx, reason string) error {
		log.Printf("🚫 [SIG_AUTH] %s for %s", reason, c.Path())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "not authenticated",
		})
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		apiKey := strings.TrimPrefix(authHeader, "Api-Key ")
		if apiKey == authHeader {
			apiKey = strings.TrimPrefix(authHeader, "Bearer ")
		}
		place, err := places.ResolveByAPIKey(apiKey)
		if err != nil {
			return notAuthenticated(c, "api key rejected")
		}
		if place.PublicKeyPEM == "" {
			return notAuthenticated(c, "place has no registered key")
		}

		signature := c.Get("Signature")
		if signature == "" {
			return notAuthenticated(c, "missing signature")
		}

		var body map[string]any
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &body); err != nil {
				return notAuthenticated(c, "unparsable body")
			}
		} else {
			body = map[string]any{}
		}
		message, err := utils.DictToB64(body)
		if err != nil {
			return notAuthenticated(c, "uncanonicalizable body")
		}

		if !utils.VerifySignature(place.PublicKeyPEM, message, signature) {
			return notAuthenticated(c, "invalid signature")
		}

		// The requesting place travels as an explicit value from here on.
		c.Locals("place", place)
		return c.Next()
	}
}

// PlaceFromContext pulls the authenticated place set by the middleware.
func PlaceFromContext(c *fiber.Ctx) *models.Place {
	place, _ := c.Locals("place").(*models.Place)
	return place
}
