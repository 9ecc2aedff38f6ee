package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
)

// AccountRepository implements usecase.AccountStore.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create stages a new account.
func (r *AccountRepository) Create(ctx context.Context, uow usecase.UnitOfWork, account *domain.Account) error {
	tx, err := unitOf(uow)
	if err != nil {
		return err
	}

	stored := *account
	tx.accounts = append(tx.accounts, &stored)

	return nil
}

// GetByID retrieves a committed account.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	account := *a
	return &account, nil
}

// GetByIDForUpdate leases the account for uow and returns its current state.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, uow usecase.UnitOfWork, id string) (*domain.Account, error) {
	tx, err := unitOf(uow)
	if err != nil {
		return nil, err
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}

	if err := tx.lease(ctx, id); err != nil {
		return nil, err
	}

	account, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, c := range tx.statusChanges {
		if c.id == id {
			account.Status = c.status
			account.UpdatedAt = c.updatedAt
		}
	}

	return account, nil
}

// UpdateStatus stages a status change. The caller must hold the account's lease.
func (r *AccountRepository) UpdateStatus(ctx context.Context, uow usecase.UnitOfWork, id string, status domain.AccountStatus, updatedAt time.Time) error {
	tx, err := unitOf(uow)
	if err != nil {
		return err
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}

	tx.statusChanges = append(tx.statusChanges, statusChange{id: id, status: status, updatedAt: updatedAt})

	return nil
}

// List lists committed accounts ordered by id.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := make([]string, 0, len(r.store.accounts))
	for id := range r.store.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	accounts := make([]*domain.Account, 0, limit)
	for _, id := range page(ids, limit, offset) {
		a := *r.store.accounts[id]
		accounts = append(accounts, &a)
	}

	return accounts, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}
