// Package auth implements the admin password hashing and verification used
// by the admin settings API's HTTP Basic Auth gate (internal/server's
// requireAuth) (spec.md §4.2, §6). Parameters are ported
// directly from original_source/rpi/server/auth.py's hashlib.scrypt call so
// that existing stored hashes (salt$hash, n=16384 r=8 p=1 dklen=32) remain
// valid across the rewrite.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltBytes    = 16
)

// HashPassword derives a scrypt key from password under a fresh random salt
// and returns it encoded as "salt$hash" (both hex).
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	key, err := scrypt.Key([]byte(password), []byte(saltHex), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}

	return saltHex + "$" + hex.EncodeToString(key), nil
}

// VerifyPassword checks password against a "salt$hash" record in constant time.
func VerifyPassword(password, storedHash string) bool {
	salt, keyHex, ok := strings.Cut(storedHash, "$")
	if !ok {
		return false
	}

	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}

	got, err := hex.DecodeString(keyHex)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(key, got) == 1
}
