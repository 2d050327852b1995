package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	maxGatewayLen         = 50
	maxResponseCodeLen    = 10
	maxResponseMessageLen = 200

	approvedResponseCode = "00"
)

// Transaction is the immutable record of a single gateway authorization
// attempt. It is never mutated after creation.
type Transaction struct {
	ID              uuid.UUID `json:"id"`
	PaymentID       uuid.UUID `json:"payment_id"`
	Gateway         string    `json:"gateway"`
	ResponseCode    string    `json:"response_code"`
	ResponseMessage string    `json:"response_message"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewTransaction(paymentID uuid.UUID, gateway, responseCode, responseMessage string) (*Transaction, error) {
	if paymentID == uuid.Nil {
		return nil, invalid("payment_id", "must not be empty")
	}
	if gateway == "" {
		return nil, invalid("gateway", "must not be empty")
	}
	if len(gateway) > maxGatewayLen {
		return nil, invalid("gateway", "must not exceed 50 characters")
	}
	if responseCode == "" {
		return nil, invalid("response_code", "must not be empty")
	}
	if len(responseCode) > maxResponseCodeLen {
		return nil, invalid("response_code", "must not exceed 10 characters")
	}
	if responseMessage == "" {
		return nil, invalid("response_message", "must not be empty")
	}
	if len(responseMessage) > maxResponseMessageLen {
		return nil, invalid("response_message", "must not exceed 200 characters")
	}
	return &Transaction{
		ID:              uuid.New(),
		PaymentID:       paymentID,
		Gateway:         gateway,
		ResponseCode:    responseCode,
		ResponseMessage: responseMessage,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

func (t *Transaction) IsApproved() bool {
	return t.ResponseCode == approvedResponseCode
}

func (t *Transaction) IsFailed() bool {
	return !t.IsApproved()
}
