// Package common defines shared constants and sentinel errors used across
// the storage, service and transport layers of the Aurora backend. Callers
// should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Input errors.
	ErrValidation = errors.New("missing fields")

	// Local credential errors. ErrInvalidCredentials deliberately covers
	// unknown email, passwordless account and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")

	// Access errors. ErrUnauthorized is an ownership mismatch on an existing
	// resource; ErrUnauthenticated means no usable session was presented.
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUnauthenticated = errors.New("unauthenticated")

	// Session lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// OAuth errors (token exchange, profile fetch, unusable email).
	ErrUpstreamProvider = errors.New("upstream provider error")
)
