package auth

import "errors"

// Authentication error types returned by the token service and API key
// verifier. Handlers map these to HTTP status codes without leaking
// internal detail.
var (
	// ErrInvalidToken indicates the token is malformed or its signature
	// does not verify.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrExpiredToken indicates the token's expiry has passed.
	ErrExpiredToken = errors.New("auth: token expired")

	// ErrTokenNotYetValid indicates the token's not-before claim is in
	// the future.
	ErrTokenNotYetValid = errors.New("auth: token not yet valid")

	// ErrInvalidAPIKey indicates the presented API key does not match the
	// configured hash.
	ErrInvalidAPIKey = errors.New("auth: invalid api key")
)
