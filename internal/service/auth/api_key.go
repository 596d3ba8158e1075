package auth

import "golang.org/x/crypto/bcrypt"

// APIKeyVerifier defines the interface for checking a presented API key
// against the configured credential.
type APIKeyVerifier interface {
	// Verify compares the plaintext key against the stored hash.
	// Returns nil on success or ErrInvalidAPIKey on mismatch.
	Verify(key string) error
}

// BcryptAPIKeyVerifier implements APIKeyVerifier against a bcrypt hash.
type BcryptAPIKeyVerifier struct {
	hash []byte
}

// NewBcryptAPIKeyVerifier creates a verifier for the given bcrypt hash,
// typically loaded from configuration.
func NewBcryptAPIKeyVerifier(hash string) *BcryptAPIKeyVerifier {
	return &BcryptAPIKeyVerifier{hash: []byte(hash)}
}

// Verify implements the APIKeyVerifier interface using bcrypt.
func (v *BcryptAPIKeyVerifier) Verify(key string) error {
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}
