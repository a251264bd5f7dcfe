// Package errors holds the sentinel errors shared across the intake
// pipeline. Callers distinguish policy rejections from transient failures
// with errors.Is; services may wrap these with additional context.
package errors

import "errors"

var (
	// Fatal at startup.
	ErrMissingBotToken  = errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	ErrBotTokenTooShort = errors.New("TELEGRAM_BOT_TOKEN is too short to be a valid token")

	// Validation rejections, recoverable locally.
	ErrInvalidSourceKey   = errors.New("malformed source key")
	ErrUnauthorizedSource = errors.New("source not on the allow list")
	ErrEmptyContent       = errors.New("empty content after sanitization")

	// Policy rejection, retryable once the window rolls over.
	ErrRateLimited = errors.New("rate limit exceeded")

	// Transient failure, distinct from any policy rejection.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
