package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentProcessing PaymentStatus = "processing"
	PaymentApproved   PaymentStatus = "approved"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
)

// Payment aggregates every gateway attempt made for one order. It owns its
// transactions; the order is referenced by id only.
type Payment struct {
	ID      uuid.UUID       `json:"id"`
	OrderID uuid.UUID       `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Status  PaymentStatus   `json:"status"`

	// TransactionID is a display string for external correlation, not a key.
	TransactionID string     `json:"transaction_id"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	Transactions []*Transaction `json:"transactions"`

	Version int64 `json:"-"`
}

// NewPayment validates its input and returns a payment in PaymentProcessing.
func NewPayment(orderID uuid.UUID, amount decimal.Decimal) (*Payment, error) {
	if orderID == uuid.Nil {
		return nil, invalid("order_id", "must not be empty")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return &Payment{
		ID:            uuid.New(),
		OrderID:       orderID,
		Amount:        amount,
		Status:        PaymentProcessing,
		TransactionID: newTransactionID(),
		CreatedAt:     time.Now().UTC(),
		Version:       1,
	}, nil
}

func (p *Payment) Approve() error {
	if p.Status == PaymentApproved || p.Status == PaymentCancelled {
		return &StateError{Entity: "payment", From: string(p.Status), Op: "approve"}
	}
	p.Status = PaymentApproved
	p.complete()
	return nil
}

func (p *Payment) Fail() error {
	if p.Status == PaymentApproved || p.Status == PaymentCancelled {
		return &StateError{Entity: "payment", From: string(p.Status), Op: "fail"}
	}
	p.Status = PaymentFailed
	p.complete()
	return nil
}

func (p *Payment) Cancel() error {
	if p.Status == PaymentApproved || p.Status == PaymentCancelled {
		return &StateError{Entity: "payment", From: string(p.Status), Op: "cancel"}
	}
	p.Status = PaymentCancelled
	p.complete()
	return nil
}

// AddTransaction appends an attempt record, preserving insertion order.
func (p *Payment) AddTransaction(t *Transaction) error {
	if t == nil {
		return invalid("transaction", "must not be nil")
	}
	if t.PaymentID != p.ID {
		return ErrWrongPayment
	}
	p.Transactions = append(p.Transactions, t)
	return nil
}

func (p *Payment) IsProcessing() bool {
	return p.Status == PaymentProcessing
}

func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentApproved || p.Status == PaymentFailed
}

func (p *Payment) complete() {
	now := time.Now().UTC()
	p.CompletedAt = &now
}

// newTransactionID yields display ids such as TXN-20260114093045-8F04D2AB.
func newTransactionID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TXN-%s-%s", time.Now().UTC().Format("20060102150405"), suffix)
}
