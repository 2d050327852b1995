package application

import (
	"context"

	"github.com/google/uuid"

	"ordertrace/internal/domain"
	"ordertrace/internal/storage"
)

// Store is the persistence gateway. Payment reads return the payment with
// its transactions loaded in attempt order; related entities are fetched by
// id, never via embedded back-references.
type Store interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	Order(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	Orders(ctx context.Context) ([]*domain.Order, error)

	CreatePayment(ctx context.Context, p *domain.Payment) error
	Payment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	PaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
	Payments(ctx context.Context) ([]*domain.Payment, error)
	ProcessingPayments(ctx context.Context) ([]*domain.Payment, error)

	Transaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	Transactions(ctx context.Context, orderID *uuid.UUID) ([]*domain.Transaction, error)

	// Save persists a unit of work atomically, comparing and bumping the
	// version token of every involved row. A stale token fails the whole
	// batch with storage.ErrConcurrencyConflict.
	Save(ctx context.Context, uow *storage.UnitOfWork) error

	// SavePaymentStatus overwrites only the payment's status fields. It is
	// the best-effort escape hatch of the worker's failure path and does not
	// compare versions.
	SavePaymentStatus(ctx context.Context, p *domain.Payment) error
}

// Queue hands freshly created payments to the processing worker.
type Queue interface {
	Enqueue(ctx context.Context, p *domain.Payment) error
	Dequeue(ctx context.Context) (*domain.Payment, error)
}
