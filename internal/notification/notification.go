// Package notification delivers the final payment outcome to interested
// parties. Delivery is best-effort: the worker logs failures and moves on.
package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"ordertrace/internal/domain"
	"ordertrace/pkg/tracing"
)

// Producer abstracts the kafka writer for tests.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type paymentProcessedEvent struct {
	PaymentID     uuid.UUID            `json:"payment_id"`
	OrderID       uuid.UUID            `json:"order_id"`
	Status        domain.PaymentStatus `json:"status"`
	Amount        decimal.Decimal      `json:"amount"`
	TransactionID string               `json:"transaction_id"`
	Attempts      int                  `json:"attempts"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
}

// KafkaNotifier publishes payment.processed events, keyed by payment id so
// one payment's events stay in partition order.
type KafkaNotifier struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewKafkaNotifier(log *slog.Logger, producer Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{log: log, producer: producer, topic: topic}
}

func (n *KafkaNotifier) NotifyPaymentProcessed(ctx context.Context, p *domain.Payment) error {
	event := paymentProcessedEvent{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		Status:        p.Status,
		Amount:        p.Amount,
		TransactionID: p.TransactionID,
		Attempts:      len(p.Transactions),
		CompletedAt:   p.CompletedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte("payment.processed")}}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	msg := kafka.Message{
		Topic:   n.topic,
		Key:     []byte(p.ID.String()),
		Value:   payload,
		Headers: headers,
	}
	if err := n.producer.WriteMessages(ctx, msg); err != nil {
		n.log.Error("notification publish failed", "payment_id", p.ID, "err", err)
		return err
	}
	n.log.Info("notification published", "payment_id", p.ID, "status", p.Status)
	return nil
}

// LogNotifier is the no-broker fallback: the outcome only hits the log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyPaymentProcessed(_ context.Context, p *domain.Payment) error {
	n.log.Info("notification sent", "payment_id", p.ID, "status", p.Status)
	return nil
}
