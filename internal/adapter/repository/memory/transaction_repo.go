package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// Create stages a transaction record.
func (r *TransactionRepository) Create(ctx context.Context, uow usecase.UnitOfWork, transaction *domain.Transaction) error {
	tx, err := unitOf(uow)
	if err != nil {
		return err
	}

	stored := *transaction
	tx.transactions = append(tx.transactions, &stored)

	return nil
}

// UpdateStatus stages a terminal status for a pending transaction.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, uow usecase.UnitOfWork, id string, status domain.TransactionStatus, updatedAt time.Time) error {
	tx, err := unitOf(uow)
	if err != nil {
		return err
	}

	if !status.IsTerminal() {
		return fmt.Errorf("%w: -> %s", domain.ErrInvalidTransition, status)
	}

	for _, staged := range tx.transactions {
		if staged.ID == id {
			if staged.Status != domain.TransactionStatusPending {
				return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, staged.Status, status)
			}
			staged.Status = status
			staged.UpdatedAt = updatedAt
			return nil
		}
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != domain.TransactionStatusPending {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, status)
	}

	tx.updates[id] = status
	tx.updatedAt[id] = updatedAt

	return nil
}

// GetByID retrieves a committed transaction.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, ok := r.store.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}

	transaction := *t
	return &transaction, nil
}

// ListByAccount lists committed transactions naming the account, newest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	var matched []*domain.Transaction
	for _, t := range r.store.transactions {
		if names(t, accountID) {
			c := *t
			matched = append(matched, &c)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	return page(matched, limit, offset), nil
}

func names(t *domain.Transaction, accountID string) bool {
	return (t.SourceAccountID != nil && *t.SourceAccountID == accountID) ||
		(t.DestinationAccountID != nil && *t.DestinationAccountID == accountID)
}
