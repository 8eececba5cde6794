package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidJob is returned when a job envelope is malformed, carries an
	// unknown type, or fails payload validation. Never retried.
	ErrInvalidJob = errors.New("invalid job")

	// ErrMessageNotFound is returned when a message lookup by correlation id
	// or provider message id matches no record.
	ErrMessageNotFound = errors.New("message not found")

	// ErrCampaignNotFound is returned when a campaign-dispatch job references
	// a campaign that does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrDeadLetterNotFound is returned by the dead-letter store for unknown ids.
	ErrDeadLetterNotFound = errors.New("dead letter not found")

	// ErrDuplicateEvent marks a webhook event that was already processed.
	// Callers acknowledge it silently.
	ErrDuplicateEvent = errors.New("duplicate webhook event")

	// ErrRateLimitWait is returned when a worker gave up waiting for send
	// tokens. The job goes back on the queue instead of blocking the worker.
	ErrRateLimitWait = errors.New("rate limit wait timed out")

	// ErrSendInFlight marks a send whose idempotency claim is held by
	// another worker. The job requeues and adopts that worker's result.
	ErrSendInFlight = errors.New("send already in flight")
)

// RetryableError wraps transient failures that should trigger a delayed requeue.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err so the worker runtime schedules a backoff retry.
func Retryable(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err (or anything it wraps) is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Invalid annotates err as a permanent validation failure.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidJob, fmt.Sprintf(format, args...))
}
