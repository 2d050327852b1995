// Package storage defines the error kinds and the unit-of-work batch shared
// by the persistence implementations.
package storage

import (
	"errors"

	"ordertrace/internal/domain"
)

var (
	// ErrNotFound reports a missing order, payment or transaction.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a uniqueness violation, e.g. a second payment for
	// an order that already has one.
	ErrConflict = errors.New("conflict")

	// ErrConcurrencyConflict reports that a row changed since it was read.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// UnitOfWork is the atomic persistence batch for one worker iteration: the
// payment with its terminal status, the transactions appended during the
// iteration, and the order when its status changed. Order may be nil when the
// order was missing or its transition was rejected.
type UnitOfWork struct {
	Order           *domain.Order
	Payment         *domain.Payment
	NewTransactions []*domain.Transaction
}
