package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required record or resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoCredentials indicates a source is missing the credentials it needs
	ErrNoCredentials = errors.New("missing credentials")

	// ErrLocked indicates another process holds the state database lock
	ErrLocked = errors.New("state database is locked by another process")

	// ErrUnsupported indicates a file format or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrAlreadyReviewed indicates a review item was resolved before
	ErrAlreadyReviewed = errors.New("review item already resolved")
)
