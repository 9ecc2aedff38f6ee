package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/entryledger/internal/infrastructure/postgres/generated"
	"github.com/iho/entryledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	queries *generated.Queries
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return newLedgerRepository(pool)
}

func newLedgerRepository(db generated.DBTX) *LedgerRepository {
	return &LedgerRepository{queries: generated.New(db)}
}

// CheckConsistency runs the ledger-wide invariant queries.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (*usecase.ConsistencyReport, error) {
	unbalanced, err := r.queries.GetUnbalancedTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("unbalanced transactions: %w", err)
	}

	negative, err := r.queries.GetNegativeAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("negative accounts: %w", err)
	}

	failed, err := r.queries.GetNonCompletedTransactionsWithEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed transactions with postings: %w", err)
	}

	mismatched, err := r.queries.GetCurrencyMismatchedEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("currency mismatches: %w", err)
	}

	return &usecase.ConsistencyReport{
		UnbalancedTransactions: unbalanced,
		NegativeAccounts:       negative,
		FailedWithPostings:     failed,
		CurrencyMismatches:     mismatched,
	}, nil
}
