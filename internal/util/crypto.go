package util

import (
	"crypto/rand"
	"encoding/hex"
)

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// RandomToken generates an opaque token value with 256-bit entropy,
// encoded as a 64-character hex string. Authorization codes, access
// tokens and refresh tokens all draw from the same generator, so
// values do not collide across token tables in practice.
func RandomToken() (string, error) {
	buf, err := CryptoRandomBytes(32)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
