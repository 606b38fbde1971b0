package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	perrors "github.com/p-blackswan/studio-agent/internal/errors"
)

func fast(attempts int) Config {
	return Config{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_Success(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ConflictIsNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), StoreConfig(), func(ctx context.Context) error {
		calls++
		return &perrors.ConflictError{ActionID: "act_1", ProjectIDs: []string{"p1"}}
	})
	assert.ErrorIs(t, err, perrors.ErrConflict)
	assert.Equal(t, 1, calls)
}

func TestDo_BusyStoreEventuallySucceeds(t *testing.T) {
	calls := 0
	var notified []int
	cfg := fast(4)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		notified = append(notified, attempt)
		assert.ErrorIs(t, err, perrors.ErrUnavailable)
	}
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("apply: database is locked: %w", perrors.ErrUnavailable)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestDo_RetryableError_AllFail(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(2), func(ctx context.Context) error {
		calls++
		return perrors.NewAPIError("slack", 429, "ratelimited")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Second}, func(ctx context.Context) error {
		calls++
		return perrors.ErrTimeout
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_GenericNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func(ctx context.Context) error {
		calls++
		return errors.New("generic error")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_Capped(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, backoff(cfg, 0))
	assert.Equal(t, 200*time.Millisecond, backoff(cfg, 1))
	assert.Equal(t, 250*time.Millisecond, backoff(cfg, 5))
}
