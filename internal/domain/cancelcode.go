package domain

import (
	"crypto/rand"
	"encoding/base64"
)

const cancelCodeBytes = 6

// NewCancelCode mints the credential a client uses to look up or cancel their
// appointment: 6 bytes of cryptographic randomness, URL-safe base64 without
// padding. Uniqueness is backed by the cancel_code constraint in the store;
// there is no collision retry.
func NewCancelCode() (string, error) {
	b := make([]byte, cancelCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
