package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ordertrace/internal/domain"
	"ordertrace/internal/storage"
)

// OrderDetail is an order with its payment (and that payment's transactions)
// resolved by id for read endpoints.
type OrderDetail struct {
	*domain.Order
	Payment *domain.Payment `json:"payment,omitempty"`
}

type OrderService struct {
	log   *slog.Logger
	store Store
}

func NewOrderService(log *slog.Logger, store Store) *OrderService {
	return &OrderService{log: log, store: store}
}

func (s *OrderService) Create(ctx context.Context, externalOrderID string, amount decimal.Decimal) (*domain.Order, error) {
	o, err := domain.NewOrder(externalOrderID, amount)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	s.log.Info("order created", "order_id", o.ID, "external_order_id", o.ExternalOrderID)
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*OrderDetail, error) {
	o, err := s.store.Order(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, o)
}

func (s *OrderService) List(ctx context.Context) ([]*OrderDetail, error) {
	orders, err := s.store.Orders(ctx)
	if err != nil {
		return nil, err
	}
	details := make([]*OrderDetail, 0, len(orders))
	for _, o := range orders {
		d, err := s.detail(ctx, o)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *OrderService) detail(ctx context.Context, o *domain.Order) (*OrderDetail, error) {
	d := &OrderDetail{Order: o}
	p, err := s.store.PaymentByOrder(ctx, o.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		d.Payment = p
	}
	return d, nil
}
