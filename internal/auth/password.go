package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret hashes a password or PIN for storage.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret reports whether secret matches the stored hash. An empty
// hash never matches; accounts without credentials cannot log in.
func VerifySecret(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
