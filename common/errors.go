package common

import "errors"

// Shared sentinel errors for the primitive types. Component-specific errors
// (MissingDeps, ChecksumMismatch, ...) live in the packages that raise them,
// per spec.md §7.
var (
	ErrActorTooLong      = errors.New("common: actor id exceeds maximum length")
	ErrInvalidOpId       = errors.New("common: malformed op id")
	ErrInvalidObjKind    = errors.New("common: unknown object kind")
	ErrInvalidHashLength = errors.New("common: change hash must be 32 bytes")
)
