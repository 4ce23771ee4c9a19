package database

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lumen-webinar/backend/pkg/apperr"
)

const (
	// RetryAttempts bounds how often an idempotent store call is retried.
	RetryAttempts = 3
	// RetryDelay is the base backoff between attempts.
	RetryDelay = 200 * time.Millisecond
)

// IsTransient reports whether err is a connection-level or timeout failure
// that is safe to retry for idempotent operations.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions. 57P01: admin shutdown. 40001/40P01: serialization/deadlock.
		switch pgErr.Code {
		case "40001", "40P01", "57P01":
			return true
		}
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08"
	}
	return pgconn.SafeToRetry(err)
}

// Retry runs fn up to RetryAttempts times, backing off between transient
// failures. Only use for idempotent calls (reads, compare-and-create,
// value-set updates). The final error is wrapped as apperr.ErrTransient so
// callers can surface it as retryable.
func Retry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < RetryAttempts; attempt++ {
		if err = fn(ctx); err == nil || !IsTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return apperr.Transient(ctx.Err())
		case <-time.After(RetryDelay * time.Duration(attempt+1)):
		}
	}
	return apperr.Transient(err)
}
