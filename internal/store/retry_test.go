package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
)

func TestWithRetryRecoversFromTransientFailures(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test_op", func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test_op", func() error {
		calls++
		return errors.New("database is locked")
	})
	assert.ErrorIs(t, err, catalogtype.ErrTransientStore)
	assert.Equal(t, retryAttempts, calls)
}

func TestWithRetryDoesNotRetryDomainErrors(t *testing.T) {
	for _, sentinel := range []error{
		catalogtype.ErrValidation,
		catalogtype.ErrNotFound,
		catalogtype.ErrInvalidArgument,
	} {
		calls := 0
		err := withRetry(context.Background(), "test_op", func() error {
			calls++
			return fmt.Errorf("%w: nope", sentinel)
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	}
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withRetry(ctx, "test_op", func() error {
		calls++
		return errors.New("database is locked")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
