// Package queue is the bounded in-process hand-off between payment creation
// and the single processing worker.
package queue

import (
	"context"

	"ordertrace/internal/domain"
)

const DefaultCapacity = 100

// Queue delivers payments in enqueue order to exactly one consumer. Enqueue
// blocks while the queue is full, Dequeue while it is empty; both give up
// when the caller's context is cancelled.
type Queue struct {
	ch chan *domain.Payment
}

func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan *domain.Payment, capacity)}
}

func (q *Queue) Enqueue(ctx context.Context, p *domain.Payment) error {
	select {
	case q.ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Dequeue(ctx context.Context) (*domain.Payment, error) {
	select {
	case p := <-q.ch:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of queued payments.
func (q *Queue) Len() int {
	return len(q.ch)
}
