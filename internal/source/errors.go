package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSourceUnavailable indicates a transport failure or an error status from a source
type ErrSourceUnavailable struct {
	Source     Name
	Status     int // HTTP status, 0 for transport errors
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrSourceUnavailable) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s unavailable (status %d): %v", e.Source, e.Status, e.Cause)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Cause)
}

func (e *ErrSourceUnavailable) Unwrap() error { return e.Cause }

// RetryAfterHint is the wait the source asked for with Retry-After
func (e *ErrSourceUnavailable) RetryAfterHint() time.Duration { return e.RetryAfter }

// Retryable reports whether another attempt could succeed
func (e *ErrSourceUnavailable) Retryable() bool {
	if errors.Is(e.Cause, context.Canceled) {
		return false
	}
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// ErrNotFound indicates the source has no record for the requested ID
type ErrNotFound struct {
	Source Name
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s: not found: %s", e.Source, e.ID)
}

// ErrAuthRequired indicates missing or rejected credentials
type ErrAuthRequired struct {
	Source Name
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("%s: authentication required or rejected", e.Source)
}

// ErrMalformed indicates a response that could not be decoded
type ErrMalformed struct {
	Source Name
	Cause  error
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Source, e.Cause)
}

func (e *ErrMalformed) Unwrap() error { return e.Cause }

// ErrorKind groups lookup failures for logs and events
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindTransient ErrorKind = "transient"
	KindNotFound  ErrorKind = "not_found"
	KindAuth      ErrorKind = "auth"
	KindMalformed ErrorKind = "malformed"
	KindCancelled ErrorKind = "cancelled"
	KindOther     ErrorKind = "other"
)

// Kind classifies err
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		unavailable *ErrSourceUnavailable
		notFound    *ErrNotFound
		auth        *ErrAuthRequired
		malformed   *ErrMalformed
	)

	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &auth):
		return KindAuth
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &malformed):
		return KindMalformed
	case errors.As(err, &unavailable), errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindOther
	}
}
