package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/infrastructure/postgres/generated"
	"github.com/iho/entryledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	queries *generated.Queries
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return newTransactionRepository(pool)
}

func newTransactionRepository(db generated.DBTX) *TransactionRepository {
	return &TransactionRepository{queries: generated.New(db)}
}

// Create inserts a transaction record.
func (r *TransactionRepository) Create(ctx context.Context, uow usecase.UnitOfWork, t *domain.Transaction) error {
	pgxTx, err := pgxTxOf(uow)
	if err != nil {
		return err
	}

	return generated.New(pgxTx).CreateTransaction(ctx, generated.CreateTransactionParams{
		ID:                   t.ID,
		Kind:                 string(t.Kind),
		Status:               string(t.Status),
		Amount:               decimalToNumeric(t.Amount),
		Currency:             t.Currency,
		SourceAccountID:      stringPtrToText(t.SourceAccountID),
		DestinationAccountID: stringPtrToText(t.DestinationAccountID),
		Description:          t.Description,
		CreatedAt:            timeToPgTimestamptz(t.CreatedAt),
		UpdatedAt:            timeToPgTimestamptz(t.UpdatedAt),
	})
}

// UpdateStatus moves a pending transaction to status. Any other starting status
// is rejected with domain.ErrInvalidTransition.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, uow usecase.UnitOfWork, id string, status domain.TransactionStatus, updatedAt time.Time) error {
	pgxTx, err := pgxTxOf(uow)
	if err != nil {
		return err
	}

	n, err := generated.New(pgxTx).UpdateTransactionStatus(ctx, generated.UpdateTransactionStatusParams{
		ID:        id,
		Status:    string(status),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s is not pending", domain.ErrInvalidTransition, id)
	}

	return nil
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row, err := r.queries.GetTransactionByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	return rowToTransaction(row), nil
}

// ListByAccount lists transactions naming the account, newest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	rows, err := r.queries.ListTransactionsByAccount(ctx, generated.ListTransactionsByAccountParams{
		AccountID: accountID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		return nil, err
	}

	transactions := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, rowToTransaction(row))
	}

	return transactions, nil
}

func rowToTransaction(row generated.Transaction) *domain.Transaction {
	return &domain.Transaction{
		ID:                   row.ID,
		Kind:                 domain.TransactionKind(row.Kind),
		Status:               domain.TransactionStatus(row.Status),
		Amount:               numericToDecimal(row.Amount),
		Currency:             row.Currency,
		SourceAccountID:      textToStringPtr(row.SourceAccountID),
		DestinationAccountID: textToStringPtr(row.DestinationAccountID),
		Description:          row.Description,
		CreatedAt:            row.CreatedAt.Time,
		UpdatedAt:            row.UpdatedAt.Time,
	}
}
