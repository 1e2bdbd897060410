package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a cache used after Close.
var ErrClosed = errors.New("cache closed")

// RetryableError marks a backend failure that may succeed on a second try,
// such as a dropped Redis connection.
type RetryableError struct{ Err error }

// Retryable marks err for [RetryWithBackoff]. It returns nil for nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err was marked with [Retryable].
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

const retryAttempts = 3

// retryDelay is the first backoff step; it doubles after every attempt.
var retryDelay = 100 * time.Millisecond

// RetryWithBackoff calls fn until it succeeds, returns an unmarked error, or
// runs out of attempts. The returned error never carries the retry mark.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	delay := retryDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == retryAttempts {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
	var re *RetryableError
	errors.As(err, &re)
	return re.Err
}
