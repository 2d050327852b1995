package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordertrace/internal/domain"
)

type fakeProducer struct {
	msgs []kafka.Message
	err  error
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func approvedPayment(t *testing.T) *domain.Payment {
	t.Helper()
	amount, err := decimal.NewFromString("100.00")
	require.NoError(t, err)
	o, err := domain.NewOrder("ORD-1", amount)
	require.NoError(t, err)
	p, err := domain.NewPayment(o.ID, amount)
	require.NoError(t, err)
	tx, err := domain.NewTransaction(p.ID, "MockGateway", "00", "Approved")
	require.NoError(t, err)
	require.NoError(t, p.AddTransaction(tx))
	require.NoError(t, p.Approve())
	return p
}

func TestKafkaNotifier_PublishesProcessedEvent(t *testing.T) {
	producer := &fakeProducer{}
	n := NewKafkaNotifier(discard(), producer, "payment.events")
	p := approvedPayment(t)

	require.NoError(t, n.NotifyPaymentProcessed(context.Background(), p))
	require.Len(t, producer.msgs, 1)

	msg := producer.msgs[0]
	assert.Equal(t, "payment.events", msg.Topic)
	assert.Equal(t, p.ID.String(), string(msg.Key))

	var event paymentProcessedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, p.ID, event.PaymentID)
	assert.Equal(t, p.OrderID, event.OrderID)
	assert.Equal(t, domain.PaymentApproved, event.Status)
	assert.Equal(t, p.TransactionID, event.TransactionID)
	assert.Equal(t, 1, event.Attempts)
	require.NotNil(t, event.CompletedAt)

	require.NotEmpty(t, msg.Headers)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "payment.processed", string(msg.Headers[0].Value))
}

func TestKafkaNotifier_PublishError(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	n := NewKafkaNotifier(discard(), producer, "payment.events")

	err := n.NotifyPaymentProcessed(context.Background(), approvedPayment(t))
	require.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(discard())
	require.NoError(t, n.NotifyPaymentProcessed(context.Background(), approvedPayment(t)))
}
