// Package gateway simulates an external payment processor: variable latency,
// a configurable decline rate, and a retrying attempt engine that records
// every attempt as a transaction.
package gateway

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"ordertrace/internal/domain"
	"ordertrace/pkg/retry"
)

const (
	approvalCode    = "00"
	approvalMessage = "Approved"
	declineCode     = "99"
	declineMessage  = "Insufficient funds"
)

type Config struct {
	// Name is recorded on every transaction.
	Name string

	// MaxRetries is the total attempt budget, first attempt included.
	MaxRetries int

	// SuccessRate is the independent approval probability per attempt.
	SuccessRate float64

	// Attempt latency is drawn uniformly from [MinLatency, MaxLatency).
	MinLatency time.Duration
	MaxLatency time.Duration

	// Backoff between attempts: RetryBase*attempt plus jitter in [0, RetryJitter).
	RetryBase   time.Duration
	RetryJitter time.Duration
}

func DefaultConfig() Config {
	return Config{
		Name:        "MockGateway",
		MaxRetries:  3,
		SuccessRate: 0.8,
		MinLatency:  100 * time.Millisecond,
		MaxLatency:  time.Second,
		RetryBase:   100 * time.Millisecond,
		RetryJitter: 50 * time.Millisecond,
	}
}

// Result carries the final verdict and every attempted transaction in
// attempt order. No attempt is ever discarded.
type Result struct {
	Approved     bool
	Transactions []*domain.Transaction
}

func (r Result) Attempts() int {
	return len(r.Transactions)
}

func (r Result) Last() *domain.Transaction {
	if len(r.Transactions) == 0 {
		return nil
	}
	return r.Transactions[len(r.Transactions)-1]
}

type Simulator struct {
	log *slog.Logger
	cfg Config
}

func NewSimulator(log *slog.Logger, cfg Config) *Simulator {
	return &Simulator{log: log, cfg: cfg}
}

// ProcessPayment runs up to MaxRetries authorization attempts against the
// simulated processor. An approval stops the loop immediately; a decline
// backs off and retries until the budget is spent. Cancellation during any
// wait aborts with ctx's error and is not counted as a decline; transactions
// recorded up to that point stay in the result.
func (s *Simulator) ProcessPayment(ctx context.Context, p *domain.Payment) (Result, error) {
	var res Result

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if err := retry.Sleep(ctx, s.latency()); err != nil {
			return res, err
		}

		tx, err := s.attempt(p)
		if err != nil {
			return res, err
		}
		res.Transactions = append(res.Transactions, tx)

		if tx.IsApproved() {
			res.Approved = true
			s.log.Info("gateway approved payment",
				"payment_id", p.ID, "attempt", attempt, "transaction_id", tx.ID)
			return res, nil
		}

		s.log.Warn("gateway declined payment",
			"payment_id", p.ID, "attempt", attempt,
			"response_code", tx.ResponseCode, "response_message", tx.ResponseMessage)

		if attempt < s.cfg.MaxRetries {
			backoff := s.cfg.RetryBase * time.Duration(attempt)
			if s.cfg.RetryJitter > 0 {
				backoff += time.Duration(rand.Int63n(int64(s.cfg.RetryJitter)))
			}
			if err := retry.Sleep(ctx, backoff); err != nil {
				return res, err
			}
		}
	}

	s.log.Warn("gateway exhausted retries", "payment_id", p.ID, "attempts", res.Attempts())
	return res, nil
}

func (s *Simulator) attempt(p *domain.Payment) (*domain.Transaction, error) {
	if rand.Float64() < s.cfg.SuccessRate {
		return domain.NewTransaction(p.ID, s.cfg.Name, approvalCode, approvalMessage)
	}
	return domain.NewTransaction(p.ID, s.cfg.Name, declineCode, declineMessage)
}

func (s *Simulator) latency() time.Duration {
	if s.cfg.MaxLatency <= s.cfg.MinLatency {
		return s.cfg.MinLatency
	}
	return s.cfg.MinLatency + time.Duration(rand.Int63n(int64(s.cfg.MaxLatency-s.cfg.MinLatency)))
}
