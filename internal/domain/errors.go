package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrThrottled is returned when no send token became available before
	// the caller's deadline. The message is dropped, not retried.
	ErrThrottled = errors.New("send rate limit exceeded")

	// ErrAuthRevoked marks the Twitch credential as permanently rejected.
	// The process must exit; reconnecting cannot fix it.
	ErrAuthRevoked = errors.New("twitch credential rejected")

	// ErrEmptyCorpus is a startup configuration error.
	ErrEmptyCorpus = errors.New("prize corpus word list is empty")
)

// ErrorClass buckets failed Twitch API calls for retry decisions.
type ErrorClass int

const (
	// ClassTransient covers network errors and 5xx responses. Retried.
	ClassTransient ErrorClass = iota
	// ClassRateLimited is the platform's own 429. Retried with longer backoff.
	ClassRateLimited
	// ClassPermanentAuth covers 401/403. Fatal during subscription setup.
	ClassPermanentAuth
	// ClassPermanent covers other non-retryable responses.
	ClassPermanent
)

// APIError wraps a failed Twitch API call with its classification.
type APIError struct {
	Class      ErrorClass
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitch api error (status %d): %v", e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Classify extracts the error class, defaulting to transient for plain
// errors such as connection resets and timeouts.
func Classify(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	if errors.Is(err, ErrAuthRevoked) {
		return ClassPermanentAuth
	}
	return ClassTransient
}
