// Package common defines shared constants and sentinel errors used across
// the server, its repositories and the operator tooling. Callers should use
// errors.Is to match these values.
package common

import "errors"

// Repository-level errors.
var (
	// ErrorNotFound is returned when a row or blob does not exist.
	ErrorNotFound = errors.New("not found")

	// ErrorAlreadyExists is returned on unique constraint violations.
	ErrorAlreadyExists = errors.New("already exists")
)

// Service-level errors.
var (
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// ErrorValidation wraps every rejected client input.
	ErrorValidation = errors.New("validation error")
)

// Auth errors.
var (
	// ErrInvalidToken reports an invalid or malformed access token.
	ErrInvalidToken = errors.New("invalid token")

	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
