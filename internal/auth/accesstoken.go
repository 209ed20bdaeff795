package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters following OWASP recommendations.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

const (
	accessTokenPrefix  = "vibe_"
	accessTokenRandLen = 24
)

// GenerateAccessToken returns a new random web access token. The raw value
// is shown once; only its hash is stored.
func GenerateAccessToken() (string, error) {
	raw := make([]byte, accessTokenRandLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("auth.GenerateAccessToken: %w", err)
	}
	return accessTokenPrefix + hex.EncodeToString(raw), nil
}

// HashAccessToken generates an argon2id hash with a random salt.
// Format: hex(salt) + "$" + hex(hash)
func HashAccessToken(token string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth.HashAccessToken: generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(token), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

// VerifyAccessToken checks a token against a hash from HashAccessToken.
// Malformed hashes never verify.
func VerifyAccessToken(token, encoded string) bool {
	saltHex, hashHex, ok := strings.Cut(encoded, "$")
	if !ok || saltHex == "" || hashHex == "" {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(hashHex)
	if err != nil || len(expected) != argonKeyLen {
		return false
	}

	computed := argon2.IDKey([]byte(token), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}
