package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zapdispatch/internal/constants"
)

// retryWrite executes a storage write with retry logic for transient sqlite
// failures such as lock contention.
func retryWrite(ctx context.Context, operationName string, operation func() error) error {
	var lastErr error

	maxAttempts := constants.DefaultDatabaseRetryAttempts
	initialBackoff := time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isTransientDBError(err) {
			return err
		}

		// Don't wait on the last attempt
		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(attempt) * initialBackoff
		if backoff > time.Duration(constants.DefaultMaxBackoffMs)*time.Millisecond {
			backoff = time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}

// isTransientDBError determines if a database error is worth retrying.
func isTransientDBError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Lock contention clears once the competing writer finishes
	if strings.Contains(errStr, "database is locked") {
		return true
	}

	// Disk I/O errors might be transient
	if strings.Contains(errStr, "disk I/O error") {
		return true
	}

	// Temporary network issues (for network-mounted databases)
	if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "connection refused") {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Constraint and schema errors will not heal on a second attempt
	return false
}
