// Package common defines shared constants and sentinel errors used across
// the portal layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Mutation outcome errors.
	ErrValidation  = errors.New("validation error")
	ErrForgery     = errors.New("anti-forgery token mismatch")
	ErrStorage     = errors.New("blob storage error")
	ErrPersistence = errors.New("persistence error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
