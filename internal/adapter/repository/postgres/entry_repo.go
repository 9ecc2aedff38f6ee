package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/infrastructure/postgres/generated"
	"github.com/iho/entryledger/internal/usecase"
)

// EntryRepository implements usecase.LedgerStore over ledger_entries.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return newEntryRepository(pool)
}

func newEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{queries: generated.New(db)}
}

// Append inserts a posting inside the unit of work.
func (r *EntryRepository) Append(ctx context.Context, uow usecase.UnitOfWork, entry *domain.Entry) error {
	pgxTx, err := pgxTxOf(uow)
	if err != nil {
		return err
	}

	return generated.New(pgxTx).CreateLedgerEntry(ctx, generated.CreateLedgerEntryParams{
		ID:            entry.ID,
		AccountID:     entry.AccountID,
		TransactionID: entry.TransactionID,
		Kind:          string(entry.Kind),
		Amount:        decimalToNumeric(entry.Amount),
		Currency:      entry.Currency,
		CreatedAt:     timeToPgTimestamptz(entry.CreatedAt),
	})
}

// EntriesFor returns the account's postings ordered by created_at, id. With a
// unit of work the read sees its own uncommitted postings.
func (r *EntryRepository) EntriesFor(ctx context.Context, uow usecase.UnitOfWork, accountID string) ([]*domain.Entry, error) {
	queries := r.queries
	if uow != nil {
		pgxTx, err := pgxTxOf(uow)
		if err != nil {
			return nil, err
		}
		queries = generated.New(pgxTx)
	}

	rows, err := queries.GetLedgerEntriesByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return rowsToEntries(rows), nil
}

// EntriesForTransaction returns the postings written by one transaction.
func (r *EntryRepository) EntriesForTransaction(ctx context.Context, transactionID string) ([]*domain.Entry, error) {
	rows, err := r.queries.GetLedgerEntriesByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	return rowsToEntries(rows), nil
}

func rowsToEntries(rows []generated.LedgerEntry) []*domain.Entry {
	entries := make([]*domain.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &domain.Entry{
			ID:            row.ID,
			AccountID:     row.AccountID,
			TransactionID: row.TransactionID,
			Kind:          domain.EntryKind(row.Kind),
			Amount:        numericToDecimal(row.Amount),
			Currency:      row.Currency,
			CreatedAt:     row.CreatedAt.Time,
		})
	}

	return entries
}
