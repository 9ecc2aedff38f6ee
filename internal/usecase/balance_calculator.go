package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/entryledger/internal/domain"
)

// BalanceCalculator derives account balances from postings.
type BalanceCalculator struct {
	ledger LedgerStore
}

// NewBalanceCalculator creates a new BalanceCalculator.
func NewBalanceCalculator(ledger LedgerStore) *BalanceCalculator {
	return &BalanceCalculator{ledger: ledger}
}

// BalanceOf returns sum(credits) - sum(debits) for the account.
// For a sufficiency check uow must be the unit of work holding the account's lease,
// otherwise the result is not serialized against concurrent writers.
func (c *BalanceCalculator) BalanceOf(ctx context.Context, uow UnitOfWork, accountID string) (decimal.Decimal, error) {
	entries, err := c.ledger.EntriesFor(ctx, uow, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	return FoldBalance(entries)
}

// FoldBalance sums the signed amounts of entries.
func FoldBalance(entries []*domain.Entry) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, e := range entries {
		signed, err := e.SignedAmount()
		if err != nil {
			return decimal.Zero, err
		}
		balance = balance.Add(signed)
	}

	return balance, nil
}
