package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

const maxExternalOrderIDLen = 50

var maxAmount = decimal.RequireFromString("999999.99")

type Order struct {
	ID              uuid.UUID       `json:"id"`
	ExternalOrderID string          `json:"external_order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`

	// Version is the optimistic concurrency token; bumped on every save.
	Version int64 `json:"-"`
}

// NewOrder validates its input and returns an order in OrderPending.
func NewOrder(externalOrderID string, amount decimal.Decimal) (*Order, error) {
	if externalOrderID == "" {
		return nil, invalid("external_order_id", "must not be empty")
	}
	if len(externalOrderID) > maxExternalOrderIDLen {
		return nil, invalid("external_order_id", "must not exceed 50 characters")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return &Order{
		ID:              uuid.New(),
		ExternalOrderID: externalOrderID,
		Amount:          amount,
		Status:          OrderPending,
		CreatedAt:       time.Now().UTC(),
		Version:         1,
	}, nil
}

func (o *Order) MarkAsPaid() error {
	if o.Status != OrderPending {
		return &StateError{Entity: "order", From: string(o.Status), Op: "pay"}
	}
	o.Status = OrderPaid
	return nil
}

func (o *Order) MarkAsFailed() error {
	if o.Status == OrderPaid {
		return &StateError{Entity: "order", From: string(o.Status), Op: "fail"}
	}
	o.Status = OrderFailed
	return nil
}

func (o *Order) Cancel() error {
	if o.Status == OrderPaid || o.Status == OrderCancelled {
		return &StateError{Entity: "order", From: string(o.Status), Op: "cancel"}
	}
	o.Status = OrderCancelled
	return nil
}

func (o *Order) CanBeProcessed() bool {
	return o.Status == OrderPending
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	if amount.GreaterThan(maxAmount) {
		return invalid("amount", "must not exceed 999999.99")
	}
	if amount.Exponent() < -2 {
		return invalid("amount", "must have at most 2 decimal places")
	}
	return nil
}
