package auth

import (
	"context"
	"time"
)

// TokenService defines operations for issuing and validating the service
// tokens that authorize calls to the task submission API.
type TokenService interface {
	// GenerateToken creates a signed token for the named client.
	// Returns the token string and its expiry, or an error if signing fails.
	GenerateToken(ctx context.Context, clientID string) (string, time.Time, error)

	// ValidateToken validates the provided token string and extracts the
	// claims. Returns an error if validation fails (expired, invalid
	// signature, malformed).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated content of a service token.
type Claims struct {
	// ClientID identifies the client the token was issued to.
	ClientID string

	// Standard registered claims.
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
