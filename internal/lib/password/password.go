// Package password implements the salted password verifier used for credentials.
package password

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const saltSize = 128

// Hasher computes HMAC-SHA256 keyed with the server-wide secret over salt + "/" + password.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

func NewSalt() (string, error) {
	b := make([]byte, saltSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("password.NewSalt: %w", err)
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

func (h *Hasher) Hash(salt, password string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(salt + "/" + password))

	return hex.EncodeToString(mac.Sum(nil))
}

// Compare reports whether password matches the stored hash, in constant time.
func (h *Hasher) Compare(hash, salt, password string) bool {
	return hmac.Equal([]byte(h.Hash(salt, password)), []byte(hash))
}

// NewVerificationToken returns 32 random bytes, hex encoded.
func NewVerificationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("password.NewVerificationToken: %w", err)
	}

	return hex.EncodeToString(b), nil
}
