package auth

import "errors"

// Common authentication service errors
var (
	// ErrInvalidToken indicates the token format is invalid or signature doesn't match
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid indicates the token is not yet valid (nbf claim in the future)
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrMissingToken indicates a token was expected but not provided
	ErrMissingToken = errors.New("authentication token is missing")

	// ErrUnknownSubject indicates a valid token whose subject has no user record
	ErrUnknownSubject = errors.New("token subject is unknown")

	// ErrNotService indicates a valid token that is not allowed to act
	// in the service role: either the role claim is not "service" or
	// the subject is not the designated trusted service identity.
	ErrNotService = errors.New("caller is not the trusted service")
)
