// Package apperr defines the error taxonomy shared by the service and
// handler layers. Handlers map these to HTTP statuses with errors.Is.
package apperr

import "errors"

var (
	// ErrValidation marks malformed or missing input (400).
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized marks a missing or invalid credential (401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks access to a resource owned by someone else (403).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks a missing or not-owned resource (404).
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness violation, e.g. a taken username (409).
	ErrConflict = errors.New("conflict")
	// ErrExpired marks a share token past its TTL (410).
	ErrExpired = errors.New("expired")
	// ErrTooLarge marks an upload over the configured size limit (413).
	ErrTooLarge = errors.New("too large")
	// ErrIntegrity marks an AEAD open failure: the stored ciphertext or tag
	// does not verify. The data is considered unrecoverable (500).
	ErrIntegrity = errors.New("integrity check failed")
	// ErrUpstream marks an AI provider failure. It is recovered locally via
	// the heuristic fallback and never surfaced as a write failure.
	ErrUpstream = errors.New("upstream provider failed")
)
