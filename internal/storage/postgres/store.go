// Package postgres implements the persistence gateway on pgx. Optimistic
// concurrency is an explicit version column on orders and payments, compared
// and bumped in the same UPDATE.
package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ordertrace/internal/domain"
	"ordertrace/internal/storage"
)

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id uuid PRIMARY KEY,
	external_order_id varchar(50) NOT NULL UNIQUE,
	amount numeric(18,2) NOT NULL,
	status text NOT NULL,
	created_at timestamptz NOT NULL,
	version bigint NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS payments (
	id uuid PRIMARY KEY,
	order_id uuid NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
	amount numeric(18,2) NOT NULL,
	status text NOT NULL,
	transaction_id varchar(100) NOT NULL,
	created_at timestamptz NOT NULL,
	completed_at timestamptz,
	version bigint NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS transactions (
	seq bigint GENERATED ALWAYS AS IDENTITY,
	id uuid PRIMARY KEY,
	payment_id uuid NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
	gateway varchar(50) NOT NULL,
	response_code varchar(10) NOT NULL,
	response_message varchar(200) NOT NULL,
	created_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_payment_id ON transactions (payment_id);
`

// EnsureSchema creates the tables on startup when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (id, external_order_id, amount, status, created_at, version)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.ID, o.ExternalOrderID, o.Amount, o.Status, o.CreatedAt, o.Version)
	return mapPgError(err)
}

func (s *Store) Order(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.scanOrder(ctx, `
		SELECT id, external_order_id, amount, status, created_at, version
		FROM orders WHERE id=$1`, id)
}

func (s *Store) Orders(ctx context.Context) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, external_order_id, amount, status, created_at, version
		FROM orders ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.ExternalOrderID, &o.Amount, &o.Status, &o.CreatedAt, &o.Version); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payments (id, order_id, amount, status, transaction_id, created_at, completed_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.OrderID, p.Amount, p.Status, p.TransactionID, p.CreatedAt, p.CompletedAt, p.Version)
	return mapPgError(err)
}

const paymentColumns = `id, order_id, amount, status, transaction_id, created_at, completed_at, version`

func (s *Store) Payment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.scanPayment(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
}

func (s *Store) PaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	return s.scanPayment(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id=$1`, orderID)
}

func (s *Store) Payments(ctx context.Context) ([]*domain.Payment, error) {
	return s.listPayments(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at, id`)
}

func (s *Store) ProcessingPayments(ctx context.Context) ([]*domain.Payment, error) {
	return s.listPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status=$1 ORDER BY created_at, id`, domain.PaymentProcessing)
}

func (s *Store) Transaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.pool.QueryRow(ctx, `
		SELECT id, payment_id, gateway, response_code, response_message, created_at
		FROM transactions WHERE id=$1`, id).
		Scan(&t.ID, &t.PaymentID, &t.Gateway, &t.ResponseCode, &t.ResponseMessage, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) Transactions(ctx context.Context, orderID *uuid.UUID) ([]*domain.Transaction, error) {
	q := `
		SELECT t.id, t.payment_id, t.gateway, t.response_code, t.response_message, t.created_at
		FROM transactions t`
	var args []any
	if orderID != nil {
		q += ` JOIN payments p ON p.id = t.payment_id WHERE p.order_id=$1`
		args = append(args, *orderID)
	}
	q += ` ORDER BY t.seq`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.PaymentID, &t.Gateway, &t.ResponseCode, &t.ResponseMessage, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *Store) Save(ctx context.Context, uow *storage.UnitOfWork) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if p := uow.Payment; p != nil {
		ct, err := tx.Exec(ctx, `
			UPDATE payments SET status=$2, completed_at=$3, version=version+1
			WHERE id=$1 AND version=$4`,
			p.ID, p.Status, p.CompletedAt, p.Version)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return storage.ErrConcurrencyConflict
		}
	}

	if len(uow.NewTransactions) > 0 {
		batch := &pgx.Batch{}
		for _, t := range uow.NewTransactions {
			batch.Queue(`
				INSERT INTO transactions (id, payment_id, gateway, response_code, response_message, created_at)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				t.ID, t.PaymentID, t.Gateway, t.ResponseCode, t.ResponseMessage, t.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	if o := uow.Order; o != nil {
		ct, err := tx.Exec(ctx, `
			UPDATE orders SET status=$2, version=version+1
			WHERE id=$1 AND version=$3`,
			o.ID, o.Status, o.Version)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return storage.ErrConcurrencyConflict
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if uow.Payment != nil {
		uow.Payment.Version++
	}
	if uow.Order != nil {
		uow.Order.Version++
	}
	return nil
}

func (s *Store) SavePaymentStatus(ctx context.Context, p *domain.Payment) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE payments SET status=$2, completed_at=$3, version=version+1
		WHERE id=$1`,
		p.ID, p.Status, p.CompletedAt)
	return err
}

func (s *Store) scanOrder(ctx context.Context, q string, args ...any) (*domain.Order, error) {
	var o domain.Order
	err := s.pool.QueryRow(ctx, q, args...).
		Scan(&o.ID, &o.ExternalOrderID, &o.Amount, &o.Status, &o.CreatedAt, &o.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) scanPayment(ctx context.Context, q string, args ...any) (*domain.Payment, error) {
	var p domain.Payment
	err := s.pool.QueryRow(ctx, q, args...).
		Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.TransactionID, &p.CreatedAt, &p.CompletedAt, &p.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadTransactions(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) listPayments(ctx context.Context, q string, args ...any) ([]*domain.Payment, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.TransactionID, &p.CreatedAt, &p.CompletedAt, &p.Version); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range out {
		if err := s.loadTransactions(ctx, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadTransactions(ctx context.Context, p *domain.Payment) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, payment_id, gateway, response_code, response_message, created_at
		FROM transactions WHERE payment_id=$1 ORDER BY seq`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.PaymentID, &t.Gateway, &t.ResponseCode, &t.ResponseMessage, &t.CreatedAt); err != nil {
			return err
		}
		p.Transactions = append(p.Transactions, &t)
	}
	return rows.Err()
}

// Postgres error codes for uniqueness and foreign key violations.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return storage.ErrConflict
		case foreignKeyViolation:
			return storage.ErrNotFound
		}
	}
	return err
}
