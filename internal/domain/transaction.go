package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind identifies what a transaction moves.
type TransactionKind string

const (
	TransactionKindTransfer   TransactionKind = "transfer"
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
)

// TransactionStatus is the processing state of a transaction.
// pending moves to exactly one of completed or failed, never back.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed:
		return true
	case TransactionStatusPending:
		return false
	}
	return true
}

// Transaction is the record of a requested money movement.
type Transaction struct {
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ID                   string
	Kind                 TransactionKind
	Status               TransactionStatus
	Amount               decimal.Decimal
	Currency             string
	SourceAccountID      *string
	DestinationAccountID *string
	Description          string
}

// Validate checks the shape of the transaction for its kind.
func (t *Transaction) Validate() error {
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}

	switch t.Kind {
	case TransactionKindDeposit:
		if t.SourceAccountID != nil || t.DestinationAccountID == nil {
			return fmt.Errorf("%w: deposit needs a destination only", ErrInvalidTransaction)
		}
	case TransactionKindWithdrawal:
		if t.SourceAccountID == nil || t.DestinationAccountID != nil {
			return fmt.Errorf("%w: withdrawal needs a source only", ErrInvalidTransaction)
		}
	case TransactionKindTransfer:
		if t.SourceAccountID == nil || t.DestinationAccountID == nil {
			return fmt.Errorf("%w: transfer needs source and destination", ErrInvalidTransaction)
		}
		if *t.SourceAccountID == *t.DestinationAccountID {
			return ErrSameAccount
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, t.Kind)
	}

	return nil
}

// Complete moves a pending transaction to completed.
func (t *Transaction) Complete(at time.Time) error {
	return t.transition(TransactionStatusCompleted, at)
}

// Fail moves a pending transaction to failed.
func (t *Transaction) Fail(at time.Time) error {
	return t.transition(TransactionStatusFailed, at)
}

func (t *Transaction) transition(to TransactionStatus, at time.Time) error {
	if t.Status != TransactionStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}

	t.Status = to
	t.UpdatedAt = at

	return nil
}

// TransactionError reports a failure that happened after the transaction record
// was persisted. The record keeps TransactionID for audit.
type TransactionError struct {
	TransactionID string
	Err           error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.TransactionID, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
