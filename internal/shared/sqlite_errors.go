// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// IsSQLiteBusyError checks if the error is a SQLITE_BUSY error.
// This occurs when the database is locked by another connection.
func IsSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError checks if the error is a "database is locked" error.
func IsSQLiteLockedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsSQLiteConflictError checks if the error is either a SQLITE_BUSY
// or "database is locked" error. Both warrant a retry.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

// IsSQLiteUniqueError checks if the error is a UNIQUE constraint violation.
func IsSQLiteUniqueError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// RetryPolicy bounds RetryOnConflict.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy retries three times: 50ms, 100ms, 200ms.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}

// RetryOnConflict runs fn, retrying with exponential backoff while it fails
// with a SQLite concurrency error. Other errors are returned immediately.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	var err error
	for i := 0; i < policy.MaxAttempts; i++ {
		err = fn()
		if err == nil || !IsSQLiteConflictError(err) {
			return err
		}
		if i == policy.MaxAttempts-1 {
			break
		}

		delay := policy.BaseDelay * time.Duration(1<<i)
		slog.Debug("SQLite conflict, retrying",
			"op", op,
			"attempt", i+1,
			"delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
