package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind is the side of a posting.
type EntryKind string

const (
	EntryKindDebit  EntryKind = "debit"
	EntryKindCredit EntryKind = "credit"
)

// Entry is a single immutable posting against one account for one transaction.
// Amount is always positive; the sign comes from Kind.
type Entry struct {
	CreatedAt     time.Time
	ID            string
	AccountID     string
	TransactionID string
	Kind          EntryKind
	Amount        decimal.Decimal
	Currency      string
}

// SignedAmount returns the entry's contribution to its account balance:
// credits add, debits subtract.
func (e *Entry) SignedAmount() (decimal.Decimal, error) {
	switch e.Kind {
	case EntryKindCredit:
		return e.Amount, nil
	case EntryKindDebit:
		return e.Amount.Neg(), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q on entry %s", ErrUnknownEntryKind, e.Kind, e.ID)
}
