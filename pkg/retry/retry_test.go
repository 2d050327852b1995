package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func anyErr(error) bool { return true }

func TestPolicy_Do_SucceedsAfterRetry(t *testing.T) {
	p := Policy{MaxAttempts: 3, Base: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), anyErr, func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 2 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPolicy_Do_Exhausts(t *testing.T) {
	p := Policy{MaxAttempts: 3, Base: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), anyErr, func(int) error {
		calls++
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_PermanentErrorStops(t *testing.T) {
	permanent := errors.New("permanent")
	p := Policy{MaxAttempts: 3, Base: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func(err error) bool {
		return !errors.Is(err, permanent)
	}, func(int) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_CancelledDuringBackoff(t *testing.T) {
	p := Policy{MaxAttempts: 3, Base: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, anyErr, func(int) error {
			calls++
			return errTransient
		})
	}()
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not observe cancellation")
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{MaxAttempts: 3, Base: 100 * time.Millisecond, Jitter: 50 * time.Millisecond}
	for attempt := 1; attempt <= 3; attempt++ {
		d := p.Delay(attempt)
		lower := p.Base * time.Duration(attempt)
		assert.GreaterOrEqual(t, d, lower)
		assert.Less(t, d, lower+p.Jitter)
	}
}

func TestSleep_ZeroReturnsImmediately(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), 0))
}
