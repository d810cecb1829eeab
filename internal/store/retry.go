package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
)

const (
	retryAttempts    = 3
	retryBaseBackoff = 100 * time.Millisecond
)

// withRetry runs fn up to retryAttempts times with exponential backoff.
// Domain errors (validation, not-found, bad arguments) and context
// cancellation are returned immediately; anything else is treated as a
// transient store failure and surfaced as ErrTransientStore once the
// attempts are exhausted.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt == retryAttempts {
			break
		}
		backoff := retryBaseBackoff << (attempt - 1)
		log.Printf("Transient failure in %s (attempt %d/%d), retrying in %s: %v", op, attempt, retryAttempts, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", catalogtype.ErrTransientStore, op, retryAttempts, err)
}

func isRetryable(err error) bool {
	switch {
	case errors.Is(err, catalogtype.ErrValidation),
		errors.Is(err, catalogtype.ErrNotFound),
		errors.Is(err, catalogtype.ErrInvalidArgument),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
