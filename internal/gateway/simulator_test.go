package gateway

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordertrace/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastConfig removes all waits so tests can run thousands of attempts.
func fastConfig(successRate float64) Config {
	cfg := DefaultConfig()
	cfg.SuccessRate = successRate
	cfg.MinLatency = 0
	cfg.MaxLatency = 0
	cfg.RetryBase = 0
	cfg.RetryJitter = 0
	return cfg
}

func newPayment(t *testing.T) *domain.Payment {
	t.Helper()
	p, err := domain.NewPayment(uuid.New(), decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	return p
}

func TestSimulator_AlwaysApproves(t *testing.T) {
	s := NewSimulator(discard(), fastConfig(1))
	res, err := s.ProcessPayment(context.Background(), newPayment(t))
	require.NoError(t, err)
	assert.True(t, res.Approved)
	require.Equal(t, 1, res.Attempts())
	assert.True(t, res.Last().IsApproved())
	assert.Equal(t, "00", res.Last().ResponseCode)
	assert.Equal(t, "Approved", res.Last().ResponseMessage)
}

func TestSimulator_AlwaysDeclines(t *testing.T) {
	s := NewSimulator(discard(), fastConfig(0))
	p := newPayment(t)
	res, err := s.ProcessPayment(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.Approved)
	require.Equal(t, 3, res.Attempts())
	for _, tx := range res.Transactions {
		assert.Equal(t, p.ID, tx.PaymentID)
		assert.Equal(t, "99", tx.ResponseCode)
		assert.Equal(t, "Insufficient funds", tx.ResponseMessage)
		assert.Equal(t, "MockGateway", tx.Gateway)
	}
}

func TestSimulator_AttemptBudget(t *testing.T) {
	s := NewSimulator(discard(), fastConfig(0.5))
	for i := 0; i < 200; i++ {
		res, err := s.ProcessPayment(context.Background(), newPayment(t))
		require.NoError(t, err)
		attempts := res.Attempts()
		assert.GreaterOrEqual(t, attempts, 1)
		assert.LessOrEqual(t, attempts, 3)
		assert.Len(t, res.Transactions, attempts)
		if res.Approved {
			// only the final attempt may be the approval
			assert.True(t, res.Last().IsApproved())
			for _, tx := range res.Transactions[:attempts-1] {
				assert.True(t, tx.IsFailed())
			}
		} else {
			assert.Equal(t, 3, attempts)
		}
	}
}

func TestSimulator_ApprovalRateConverges(t *testing.T) {
	const runs = 2000
	s := NewSimulator(discard(), fastConfig(0.8))

	firstAttemptApprovals := 0
	for i := 0; i < runs; i++ {
		res, err := s.ProcessPayment(context.Background(), newPayment(t))
		require.NoError(t, err)
		if res.Transactions[0].IsApproved() {
			firstAttemptApprovals++
		}
	}

	rate := float64(firstAttemptApprovals) / runs
	assert.InDelta(t, 0.8, rate, 0.05)
}

func TestSimulator_CancelledDuringLatency(t *testing.T) {
	cfg := fastConfig(1)
	cfg.MinLatency = time.Hour
	cfg.MaxLatency = time.Hour
	s := NewSimulator(discard(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var res Result
	var err error
	go func() {
		res, err = s.ProcessPayment(ctx, newPayment(t))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancellation did not abort the attempt")
	}
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Transactions)
}

func TestSimulator_CancelledDuringBackoff(t *testing.T) {
	cfg := fastConfig(0)
	cfg.RetryBase = time.Hour
	s := NewSimulator(discard(), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := s.ProcessPayment(ctx, newPayment(t))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	// the decline before the backoff wait is preserved
	require.Equal(t, 1, res.Attempts())
}
