package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// CheckConsistency scans committed state for ledger violations.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (*usecase.ConsistencyReport, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	report := &usecase.ConsistencyReport{}

	for id, t := range r.store.transactions {
		postings := r.store.byTx[id]
		switch t.Status {
		case domain.TransactionStatusFailed, domain.TransactionStatusPending:
			if len(postings) > 0 {
				report.FailedWithPostings = append(report.FailedWithPostings, id)
			}
		case domain.TransactionStatusCompleted:
			if !balanced(t, postings) {
				report.UnbalancedTransactions = append(report.UnbalancedTransactions, id)
			}
		}
	}

	for accountID, entries := range r.store.entries {
		account, ok := r.store.accounts[accountID]
		for _, e := range entries {
			if ok && e.Currency != account.Currency {
				report.CurrencyMismatches = append(report.CurrencyMismatches, e.ID)
			}
		}

		balance, err := usecase.FoldBalance(entries)
		if err != nil {
			return nil, err
		}
		if balance.IsNegative() {
			report.NegativeAccounts = append(report.NegativeAccounts, accountID)
		}
	}

	sort.Strings(report.UnbalancedTransactions)
	sort.Strings(report.NegativeAccounts)
	sort.Strings(report.FailedWithPostings)
	sort.Strings(report.CurrencyMismatches)

	return report, nil
}

// balanced checks that the postings match the amount on every side t names and
// that no posting exists on a side it does not name.
func balanced(t *domain.Transaction, postings []*domain.Entry) bool {
	credits, debits := decimal.Zero, decimal.Zero
	for _, e := range postings {
		switch e.Kind {
		case domain.EntryKindCredit:
			credits = credits.Add(e.Amount)
		case domain.EntryKindDebit:
			debits = debits.Add(e.Amount)
		default:
			return false
		}
	}

	wantCredits, wantDebits := decimal.Zero, decimal.Zero
	if t.DestinationAccountID != nil {
		wantCredits = t.Amount
	}
	if t.SourceAccountID != nil {
		wantDebits = t.Amount
	}

	return credits.Equal(wantCredits) && debits.Equal(wantDebits)
}
