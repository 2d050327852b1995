// Package memory is a mutex-guarded implementation of the persistence
// gateway. It backs unit tests and STORE=memory development runs; the
// postgres store is the production implementation.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"ordertrace/internal/domain"
	"ordertrace/internal/storage"
)

type Store struct {
	mu sync.RWMutex

	orders           map[uuid.UUID]*domain.Order
	ordersByExternal map[string]uuid.UUID
	orderSeq         []uuid.UUID

	payments       map[uuid.UUID]*domain.Payment
	paymentByOrder map[uuid.UUID]uuid.UUID
	paymentSeq     []uuid.UUID

	transactions map[uuid.UUID]*domain.Transaction
	txSeq        []uuid.UUID
}

func NewStore() *Store {
	return &Store{
		orders:           make(map[uuid.UUID]*domain.Order),
		ordersByExternal: make(map[string]uuid.UUID),
		payments:         make(map[uuid.UUID]*domain.Payment),
		paymentByOrder:   make(map[uuid.UUID]uuid.UUID),
		transactions:     make(map[uuid.UUID]*domain.Transaction),
	}
}

func (s *Store) CreateOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ordersByExternal[o.ExternalOrderID]; ok {
		return storage.ErrConflict
	}
	s.orders[o.ID] = cloneOrder(o)
	s.ordersByExternal[o.ExternalOrderID] = o.ID
	s.orderSeq = append(s.orderSeq, o.ID)
	return nil
}

func (s *Store) Order(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) Orders(_ context.Context) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Order, 0, len(s.orderSeq))
	for _, id := range s.orderSeq {
		out = append(out, cloneOrder(s.orders[id]))
	}
	return out, nil
}

func (s *Store) CreatePayment(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[p.OrderID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.paymentByOrder[p.OrderID]; ok {
		return storage.ErrConflict
	}
	s.payments[p.ID] = clonePaymentRow(p)
	s.paymentByOrder[p.OrderID] = p.ID
	s.paymentSeq = append(s.paymentSeq, p.ID)
	return nil
}

func (s *Store) Payment(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paymentLocked(id)
}

func (s *Store) PaymentByOrder(_ context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.paymentByOrder[orderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.paymentLocked(id)
}

func (s *Store) Payments(_ context.Context) ([]*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Payment, 0, len(s.paymentSeq))
	for _, id := range s.paymentSeq {
		p, err := s.paymentLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) ProcessingPayments(_ context.Context) ([]*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Payment
	for _, id := range s.paymentSeq {
		if s.payments[id].Status != domain.PaymentProcessing {
			continue
		}
		p, err := s.paymentLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) Transaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *tx
	return &c, nil
}

func (s *Store) Transactions(_ context.Context, orderID *uuid.UUID) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var paymentID uuid.UUID
	if orderID != nil {
		id, ok := s.paymentByOrder[*orderID]
		if !ok {
			return []*domain.Transaction{}, nil
		}
		paymentID = id
	}
	out := make([]*domain.Transaction, 0, len(s.txSeq))
	for _, id := range s.txSeq {
		tx := s.transactions[id]
		if orderID != nil && tx.PaymentID != paymentID {
			continue
		}
		c := *tx
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) Save(_ context.Context, uow *storage.UnitOfWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var curPayment *domain.Payment
	if uow.Payment != nil {
		cur, ok := s.payments[uow.Payment.ID]
		if !ok {
			return storage.ErrNotFound
		}
		if cur.Version != uow.Payment.Version {
			return storage.ErrConcurrencyConflict
		}
		curPayment = cur
	}
	var curOrder *domain.Order
	if uow.Order != nil {
		cur, ok := s.orders[uow.Order.ID]
		if !ok {
			return storage.ErrNotFound
		}
		if cur.Version != uow.Order.Version {
			return storage.ErrConcurrencyConflict
		}
		curOrder = cur
	}

	if uow.Payment != nil {
		uow.Payment.Version++
		*curPayment = *clonePaymentRow(uow.Payment)
	}
	if uow.Order != nil {
		uow.Order.Version++
		*curOrder = *cloneOrder(uow.Order)
	}
	for _, tx := range uow.NewTransactions {
		c := *tx
		s.transactions[tx.ID] = &c
		s.txSeq = append(s.txSeq, tx.ID)
	}
	return nil
}

func (s *Store) SavePaymentStatus(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.payments[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cur.Status = p.Status
	cur.CompletedAt = p.CompletedAt
	cur.Version++
	p.Version = cur.Version
	return nil
}

func (s *Store) paymentLocked(id uuid.UUID) (*domain.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := clonePaymentRow(p)
	for _, txID := range s.txSeq {
		tx := s.transactions[txID]
		if tx.PaymentID != id {
			continue
		}
		t := *tx
		c.Transactions = append(c.Transactions, &t)
	}
	return c, nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	return &c
}

// clonePaymentRow copies the payment without its transaction list; reads
// reassemble the list from the transaction table.
func clonePaymentRow(p *domain.Payment) *domain.Payment {
	c := *p
	c.Transactions = nil
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
