package usecase

import (
	"context"
	"errors"
)

var (
	// ErrInconsistentLedger is returned when a consistency check finds violations.
	ErrInconsistentLedger = errors.New("ledger is inconsistent")
)

// ConsistencyReport lists every violation found by a ledger-wide check.
type ConsistencyReport struct {
	// UnbalancedTransactions are completed transactions whose postings do not
	// match their amount on each side they name.
	UnbalancedTransactions []string
	// NegativeAccounts are accounts whose derived balance is below zero.
	NegativeAccounts []string
	// FailedWithPostings are failed transactions that have postings.
	FailedWithPostings []string
	// CurrencyMismatches are postings whose currency differs from their account's.
	CurrencyMismatches []string
}

// Consistent reports whether no violation was found.
func (r *ConsistencyReport) Consistent() bool {
	return len(r.UnbalancedTransactions) == 0 &&
		len(r.NegativeAccounts) == 0 &&
		len(r.FailedWithPostings) == 0 &&
		len(r.CurrencyMismatches) == 0
}

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	ledgerRepo LedgerRepository
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(ledgerRepo LedgerRepository) *LedgerUseCase {
	return &LedgerUseCase{
		ledgerRepo: ledgerRepo,
	}
}

// CheckConsistency verifies conservation, non-negativity and the no-op-on-failure
// rule across the whole ledger. The report is returned even when it is not
// consistent, together with ErrInconsistentLedger.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	report, err := uc.ledgerRepo.CheckConsistency(ctx)
	if err != nil {
		return nil, storeError(err)
	}

	if !report.Consistent() {
		return report, ErrInconsistentLedger
	}

	return report, nil
}
