package memory

import (
	"context"
	"sort"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
)

// EntryRepository implements usecase.LedgerStore.
type EntryRepository struct {
	store *Store
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(store *Store) *EntryRepository {
	return &EntryRepository{store: store}
}

// Append stages a posting on uow.
func (r *EntryRepository) Append(ctx context.Context, uow usecase.UnitOfWork, entry *domain.Entry) error {
	tx, err := unitOf(uow)
	if err != nil {
		return err
	}

	stored := *entry
	tx.entries = append(tx.entries, &stored)

	return nil
}

// EntriesFor returns the account's committed postings plus, when uow is set, the
// ones staged on it.
func (r *EntryRepository) EntriesFor(ctx context.Context, uow usecase.UnitOfWork, accountID string) ([]*domain.Entry, error) {
	r.store.mu.RLock()
	committed := r.store.entries[accountID]
	entries := make([]*domain.Entry, 0, len(committed))
	for _, e := range committed {
		c := *e
		entries = append(entries, &c)
	}
	r.store.mu.RUnlock()

	if uow != nil {
		tx, err := unitOf(uow)
		if err != nil {
			return nil, err
		}
		for _, e := range tx.entries {
			if e.AccountID == accountID {
				c := *e
				entries = append(entries, &c)
			}
		}
	}

	sortEntries(entries)

	return entries, nil
}

// EntriesForTransaction returns the committed postings of one transaction.
func (r *EntryRepository) EntriesForTransaction(ctx context.Context, transactionID string) ([]*domain.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	committed := r.store.byTx[transactionID]
	entries := make([]*domain.Entry, 0, len(committed))
	for _, e := range committed {
		c := *e
		entries = append(entries, &c)
	}

	sortEntries(entries)

	return entries, nil
}

func sortEntries(entries []*domain.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
