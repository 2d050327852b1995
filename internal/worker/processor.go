// Package worker runs the single payment-processing consumer: dequeue,
// gateway attempts, entity transitions, versioned persistence, notification.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ordertrace/internal/application"
	"ordertrace/internal/domain"
	"ordertrace/internal/gateway"
	"ordertrace/internal/storage"
	"ordertrace/pkg/retry"
)

// Gateway is the attempt engine the worker drives for each payment.
type Gateway interface {
	ProcessPayment(ctx context.Context, p *domain.Payment) (gateway.Result, error)
}

// Notifier receives the final payment after persistence. Failures are logged
// and never roll anything back.
type Notifier interface {
	NotifyPaymentProcessed(ctx context.Context, p *domain.Payment) error
}

type Processor struct {
	log      *slog.Logger
	queue    application.Queue
	gateway  Gateway
	store    application.Store
	notifier Notifier
	save     retry.Policy
	tracer   trace.Tracer
}

func New(log *slog.Logger, queue application.Queue, gw Gateway, store application.Store, notifier Notifier) *Processor {
	return &Processor{
		log:      log,
		queue:    queue,
		gateway:  gw,
		store:    store,
		notifier: notifier,
		save:     retry.Policy{MaxAttempts: 3, Base: 100 * time.Millisecond},
		tracer:   otel.Tracer("payment-worker"),
	}
}

// Run consumes payments until ctx is cancelled. A payment's failure never
// stops the loop; only shutdown does. Payments left in PaymentProcessing by
// a previous run are requeued first.
func (w *Processor) Run(ctx context.Context) error {
	w.recoverProcessing(ctx)
	w.log.Info("payment worker started")

	for {
		p, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.log.Info("payment worker stopping")
			return nil
		}

		pctx, span := w.tracer.Start(ctx, "ProcessPayment")
		span.SetAttributes(
			attribute.String("payment.id", p.ID.String()),
			attribute.String("payment.amount", p.Amount.String()),
		)

		if err := w.process(pctx, p); err != nil {
			if ctx.Err() != nil {
				// Shutdown mid-processing; the payment keeps its
				// last-persisted status and is requeued on restart.
				span.End()
				w.log.Info("payment worker stopping")
				return nil
			}
			w.log.Error("payment processing failed", "payment_id", p.ID, "err", err)
			w.failBestEffort(ctx, p)
		}
		span.End()
	}
}

func (w *Processor) process(ctx context.Context, p *domain.Payment) error {
	w.log.Info("processing payment", "payment_id", p.ID, "order_id", p.OrderID, "amount", p.Amount)

	res, err := w.gateway.ProcessPayment(ctx, p)
	if err != nil {
		return err
	}

	for i, tx := range res.Transactions {
		if err := p.AddTransaction(tx); err != nil {
			return err
		}
		w.log.Info("transaction recorded",
			"transaction_id", tx.ID, "payment_id", p.ID, "attempt", i+1,
			"response_code", tx.ResponseCode, "response_message", tx.ResponseMessage)
	}

	if res.Approved {
		if err := p.Approve(); err != nil {
			return err
		}
		w.log.Info("payment approved", "payment_id", p.ID, "attempts", res.Attempts())
	} else {
		if err := p.Fail(); err != nil {
			return err
		}
		w.log.Warn("payment failed", "payment_id", p.ID, "attempts", res.Attempts())
	}

	uow := &storage.UnitOfWork{Payment: p, NewTransactions: res.Transactions}
	w.applyOrderStatus(ctx, p, uow)

	if err := w.saveWithRetry(ctx, uow); err != nil {
		return err
	}

	if err := w.notifier.NotifyPaymentProcessed(ctx, p); err != nil {
		w.log.Error("notification failed", "payment_id", p.ID, "err", err)
	}

	w.log.Info("payment processed", "payment_id", p.ID, "status", p.Status)
	return nil
}

// applyOrderStatus propagates the payment's terminal status to its order. A
// missing order or a rejected transition is recoverable: it is logged and
// the order is simply left out of the unit of work.
func (w *Processor) applyOrderStatus(ctx context.Context, p *domain.Payment, uow *storage.UnitOfWork) {
	o, err := w.store.Order(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			w.log.Warn("order not found for payment", "order_id", p.OrderID, "payment_id", p.ID)
		} else {
			w.log.Error("order lookup failed", "order_id", p.OrderID, "err", err)
		}
		return
	}

	var terr error
	switch p.Status {
	case domain.PaymentApproved:
		terr = o.MarkAsPaid()
	case domain.PaymentFailed:
		terr = o.MarkAsFailed()
	case domain.PaymentCancelled:
		terr = o.Cancel()
	}
	if terr != nil {
		w.log.Warn("order transition rejected",
			"order_id", o.ID, "order_status", o.Status, "payment_status", p.Status, "err", terr)
		return
	}

	w.log.Info("order status updated", "order_id", o.ID, "status", o.Status)
	uow.Order = o
}

// saveWithRetry persists the unit of work, retrying concurrency conflicts
// with linear backoff. Conflicted attempts refresh the version tokens before
// trying again; exhaustion fails this unit of work only.
func (w *Processor) saveWithRetry(ctx context.Context, uow *storage.UnitOfWork) error {
	retryable := func(err error) bool {
		return errors.Is(err, storage.ErrConcurrencyConflict)
	}
	return w.save.Do(ctx, retryable, func(attempt int) error {
		if attempt > 1 {
			w.log.Warn("concurrency conflict on save",
				"payment_id", uow.Payment.ID, "attempt", attempt, "max_attempts", w.save.MaxAttempts)
			w.refreshVersions(ctx, uow)
		}
		return w.store.Save(ctx, uow)
	})
}

func (w *Processor) refreshVersions(ctx context.Context, uow *storage.UnitOfWork) {
	if uow.Payment != nil {
		if cur, err := w.store.Payment(ctx, uow.Payment.ID); err == nil {
			uow.Payment.Version = cur.Version
		}
	}
	if uow.Order != nil {
		if cur, err := w.store.Order(ctx, uow.Order.ID); err == nil {
			uow.Order.Version = cur.Version
		}
	}
}

// failBestEffort marks the in-memory payment failed and saves only that
// status. Both steps may themselves fail (e.g. the payment was already
// approved); such errors are logged and swallowed.
func (w *Processor) failBestEffort(ctx context.Context, p *domain.Payment) {
	ctx = context.WithoutCancel(ctx)
	if err := p.Fail(); err != nil {
		w.log.Error("could not mark payment failed", "payment_id", p.ID, "err", err)
		return
	}
	if err := w.store.SavePaymentStatus(ctx, p); err != nil {
		w.log.Error("could not save failed payment status", "payment_id", p.ID, "err", err)
	}
}

// recoverProcessing requeues payments a previous run left in
// PaymentProcessing, so a crash never strands a payment.
func (w *Processor) recoverProcessing(ctx context.Context) {
	payments, err := w.store.ProcessingPayments(ctx)
	if err != nil {
		w.log.Error("recovery scan failed", "err", err)
		return
	}
	for _, p := range payments {
		if err := w.queue.Enqueue(ctx, p); err != nil {
			w.log.Error("recovery enqueue failed", "payment_id", p.ID, "err", err)
			return
		}
		w.log.Info("requeued in-flight payment", "payment_id", p.ID)
	}
}
