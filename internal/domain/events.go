package domain

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventTypeAccountCreated       = "account.created"
	EventTypeAccountStatusChanged = "account.status_changed"
	EventTypeTransactionCompleted = "transaction.completed"
	EventTypeTransactionFailed    = "transaction.failed"
)

// Aggregate types
const (
	AggregateTypeAccount     = "account"
	AggregateTypeTransaction = "transaction"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionEvent payload for transaction.completed and transaction.failed.
type TransactionEvent struct {
	TransactionID        string `json:"transaction_id"`
	Kind                 string `json:"kind"`
	Status               string `json:"status"`
	Amount               string `json:"amount"`
	Currency             string `json:"currency"`
	SourceAccountID      string `json:"source_account_id,omitempty"`
	DestinationAccountID string `json:"destination_account_id,omitempty"`
	Reason               string `json:"reason,omitempty"`
}

// AccountCreatedEvent payload
type AccountCreatedEvent struct {
	AccountID   string `json:"account_id"`
	UserID      string `json:"user_id"`
	AccountType string `json:"account_type"`
	Currency    string `json:"currency"`
}

// AccountStatusChangedEvent payload
type AccountStatusChangedEvent struct {
	AccountID string `json:"account_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// NewTransactionEvent builds the outbox payload for a transaction that reached a
// terminal status.
func NewTransactionEvent(t *Transaction, reason string) TransactionEvent {
	ev := TransactionEvent{
		TransactionID: t.ID,
		Kind:          string(t.Kind),
		Status:        string(t.Status),
		Amount:        t.Amount.String(),
		Currency:      t.Currency,
		Reason:        reason,
	}
	if t.SourceAccountID != nil {
		ev.SourceAccountID = *t.SourceAccountID
	}
	if t.DestinationAccountID != nil {
		ev.DestinationAccountID = *t.DestinationAccountID
	}
	return ev
}

// EventPayload converts a typed payload into the generic map stored in the outbox.
func EventPayload(v any) map[string]any {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"error": "failed to marshal payload"}
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return map[string]any{"error": "failed to unmarshal payload"}
	}

	return result
}
