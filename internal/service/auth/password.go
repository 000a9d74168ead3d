package auth

import "golang.org/x/crypto/bcrypt"

// PasswordVerifier checks a plaintext password against a stored hash.
// Hashing itself lives in the user store, which owns the bcrypt cost.
type PasswordVerifier interface {
	// Compare returns nil when password matches hashedPassword, and an
	// error on mismatch or a malformed hash.
	Compare(hashedPassword, password string) error
}

// BcryptVerifier is the bcrypt-backed PasswordVerifier.
type BcryptVerifier struct{}

// NewBcryptVerifier returns a BcryptVerifier.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

func (v *BcryptVerifier) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
