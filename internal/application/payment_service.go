package application

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ordertrace/internal/domain"
)

// PaymentDetail is a payment with its order resolved by id for read
// endpoints. Transactions are already carried by the payment itself.
type PaymentDetail struct {
	*domain.Payment
	Order *domain.Order `json:"order,omitempty"`
}

type PaymentService struct {
	log   *slog.Logger
	store Store
	queue Queue
}

func NewPaymentService(log *slog.Logger, store Store, queue Queue) *PaymentService {
	return &PaymentService{log: log, store: store, queue: queue}
}

// Create persists a payment in PaymentProcessing and enqueues it for the
// worker before returning. The order must exist and must not already have a
// payment; the storage layer enforces the latter as a uniqueness constraint.
func (s *PaymentService) Create(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (*domain.Payment, error) {
	p, err := domain.NewPayment(orderID, amount)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Order(ctx, orderID); err != nil {
		return nil, err
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, p); err != nil {
		// Persisted but not queued; the worker's recovery pass picks it up
		// on the next start.
		s.log.Error("enqueue failed after create", "payment_id", p.ID, "err", err)
		return nil, err
	}

	s.log.Info("payment created and enqueued", "payment_id", p.ID, "order_id", orderID)
	return p, nil
}

func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (*PaymentDetail, error) {
	p, err := s.store.Payment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, p)
}

func (s *PaymentService) List(ctx context.Context) ([]*PaymentDetail, error) {
	payments, err := s.store.Payments(ctx)
	if err != nil {
		return nil, err
	}
	details := make([]*PaymentDetail, 0, len(payments))
	for _, p := range payments {
		d, err := s.detail(ctx, p)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *PaymentService) Transactions(ctx context.Context, orderID *uuid.UUID) ([]*domain.Transaction, error) {
	return s.store.Transactions(ctx, orderID)
}

func (s *PaymentService) Transaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.store.Transaction(ctx, id)
}

func (s *PaymentService) detail(ctx context.Context, p *domain.Payment) (*PaymentDetail, error) {
	d := &PaymentDetail{Payment: p}
	o, err := s.store.Order(ctx, p.OrderID)
	if err == nil {
		d.Order = o
	}
	return d, nil
}
