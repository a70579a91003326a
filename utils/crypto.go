// utils/crypto.go
package utils

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"sort"
)

const minRSABits = 2048

// PSSSaltLengthAuto signs with the largest possible salt and auto-detects the
// length on verify, matching signers that use maximum-salt PSS.
var pssOptions = &rsa.PSSOptions{
	SaltLength: rsa.PSSSaltLengthAuto,
	Hash:       crypto.SHA256,
}

// CanonicalJSON serializes a body map with sorted keys and no extraneous
// whitespace. Signer and verifier must agree byte-for-byte on this encoding.
func CanonicalJSON(body map[string]any) ([]byte, error) {
	// encoding/json already sorts map keys; nested maps included.
	return json.Marshal(body)
}

// DictToB64 returns the URL-safe base64 of the canonical JSON encoding of the
// body. This is the exact payload that gets signed and verified.
func DictToB64(body map[string]any) (string, error) {
	raw, err := CanonicalJSON(body)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// B64ToDict decodes a URL-safe base64 JSON payload back into a map.
func B64ToDict(payload string) (map[string]any, error) {
	raw, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// SortedKeys is a helper for deterministic iteration over body maps.
func SortedKeys(body map[string]any) []string {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadPublicKey parses a PEM-encoded RSA public key and enforces the minimum
// modulus size. Returns nil on any malformation.
func LoadPublicKey(pemKey string) *rsa.PublicKey {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// PKCS#1 fallback for older signers.
		rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil
		}
		parsed = rsaKey
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil
	}
	if rsaKey.N.BitLen() < minRSABits {
		return nil
	}
	return rsaKey
}

// SignMessage signs a message with RSA-PSS (SHA-256, MGF1(SHA-256), max salt)
// and returns the URL-safe base64 signature. Used by node clients and tests;
// the ledger itself only verifies.
func SignMessage(message string, key *rsa.PrivateKey) (string, error) {
	if key == nil {
		return "", errors.New("nil private key")
	}
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(sig), nil
}

// VerifySignature checks that signature (URL-safe base64) was produced over
// message by the private key paired with pemKey. Any malformed key, malformed
// signature or mismatch yields false — never an error with crypto detail.
func VerifySignature(pemKey string, message string, signature string) bool {
	key := LoadPublicKey(pemKey)
	if key == nil {
		return false
	}
	rawSig, err := base64.URLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(message))
	return rsa.VerifyPSS(key, crypto.SHA256, digest[:], rawSig, pssOptions) == nil
}
