package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0

	err := Do(context.Background(), Config{Attempts: 3, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUpToAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("transient boom")

	err := Do(context.Background(), Config{Attempts: 3, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_RecoversMidway(t *testing.T) {
	calls := 0

	err := Do(context.Background(), Config{Attempts: 5, Delay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ClassifierStopsPermanentErrors(t *testing.T) {
	calls := 0
	bad := &interfaces.ValidationError{Field: "size", Reason: "zero-length payload"}

	err := Do(context.Background(), Config{
		Attempts: 5,
		Delay:    time.Millisecond,
		Classify: interfaces.IsTransient,
	}, func(ctx context.Context) error {
		calls++
		return bad
	})

	var ve *interfaces.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, calls, "validation errors must never be retried")
}

func TestDo_OnRetryReportsAttemptNumbers(t *testing.T) {
	var notified []int

	_ = Do(context.Background(), Config{
		Attempts: 3,
		Delay:    time.Millisecond,
		OnRetry:  func(attempt int, err error) { notified = append(notified, attempt) },
	}, func(ctx context.Context) error {
		return errors.New("always fails")
	})

	assert.Equal(t, []int{2, 3}, notified)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, Config{Attempts: 10, Delay: 50 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fails while context dies")
	})

	assert.Error(t, err)
	assert.Less(t, calls, 10)
}
