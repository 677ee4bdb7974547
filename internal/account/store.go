// Package account holds the single administrative username/password-hash
// pair and the login verification contract consumed by the auth handlers.
package account

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Store is the admin account contract. Exactly one account exists per
// deployment; Update replaces it wholesale and persists before returning.
type Store interface {
	// Verify reports whether the pair matches the stored account.
	Verify(ctx context.Context, username, password string) bool

	// Update replaces username and password, re-hashing the password and
	// persisting the result to durable storage.
	Update(ctx context.Context, username, password string) error
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func compareHash(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
