// Package memory is an in-process store behind the same repository interfaces as
// the postgres adapter. Account leases are one-slot channels keyed by account id;
// writes are staged on the unit of work and applied atomically on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
)

// ErrForeignUnitOfWork is returned when a repository receives a unit of work
// that was not opened by this store.
var ErrForeignUnitOfWork = errors.New("unit of work does not belong to the memory store")

// ErrUnitOfWorkDone is returned when a finished unit of work is used again.
var ErrUnitOfWorkDone = errors.New("unit of work already finished")

// Store holds committed state.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	entries      map[string][]*domain.Entry // by account id, append order
	byTx         map[string][]*domain.Entry
	transactions map[string]*domain.Transaction
	outbox       map[string]*domain.OutboxEvent

	leases       *leaseTable
	leaseTimeout time.Duration
}

// NewStore creates an empty Store. Lease waits give up after leaseTimeout.
func NewStore(leaseTimeout time.Duration) *Store {
	if leaseTimeout <= 0 {
		leaseTimeout = usecase.DefaultLeaseTimeout
	}

	return &Store{
		accounts:     make(map[string]*domain.Account),
		entries:      make(map[string][]*domain.Entry),
		byTx:         make(map[string][]*domain.Entry),
		transactions: make(map[string]*domain.Transaction),
		outbox:       make(map[string]*domain.OutboxEvent),
		leases:       newLeaseTable(),
		leaseTimeout: leaseTimeout,
	}
}

// TxManager implements usecase.UnitOfWorkManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin opens a unit of work.
func (m *TxManager) Begin(ctx context.Context) (usecase.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{
		store:     m.store,
		held:      make(map[string]struct{}),
		updates:   make(map[string]domain.TransactionStatus),
		updatedAt: make(map[string]time.Time),
	}, nil
}

type statusChange struct {
	id        string
	status    domain.AccountStatus
	updatedAt time.Time
}

// Tx is a unit of work. It is not safe for concurrent use.
type Tx struct {
	store *Store
	held  map[string]struct{}
	order []string
	done  bool

	accounts      []*domain.Account
	statusChanges []statusChange
	entries       []*domain.Entry
	transactions  []*domain.Transaction
	updates       map[string]domain.TransactionStatus
	updatedAt     map[string]time.Time
	outbox        []*domain.OutboxEvent
}

// Commit applies every staged write at once and releases the held leases.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrUnitOfWorkDone
	}

	s := t.store
	s.mu.Lock()
	err := t.validate()
	if err == nil {
		t.apply()
	}
	s.mu.Unlock()

	t.finish()

	return err
}

// Rollback discards staged writes and releases the held leases.
// It is a no-op once the unit of work has finished.
func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return nil
	}

	t.finish()

	return nil
}

func (t *Tx) finish() {
	t.done = true
	for i := len(t.order) - 1; i >= 0; i-- {
		t.store.leases.release(t.order[i])
	}
	t.order = nil
	t.held = nil
}

// validate runs under the store write lock.
func (t *Tx) validate() error {
	s := t.store
	for _, a := range t.accounts {
		if _, ok := s.accounts[a.ID]; ok {
			return fmt.Errorf("account %s already exists", a.ID)
		}
	}
	for _, tx := range t.transactions {
		if _, ok := s.transactions[tx.ID]; ok {
			return fmt.Errorf("transaction %s already exists", tx.ID)
		}
	}
	for id, status := range t.updates {
		current, ok := s.transactions[id]
		if !ok {
			continue
		}
		if current.Status != domain.TransactionStatusPending {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, status)
		}
	}

	return nil
}

// apply runs under the store write lock.
func (t *Tx) apply() {
	s := t.store
	for _, a := range t.accounts {
		s.accounts[a.ID] = a
	}
	for _, c := range t.statusChanges {
		if a, ok := s.accounts[c.id]; ok {
			updated := *a
			updated.Status = c.status
			updated.UpdatedAt = c.updatedAt
			s.accounts[c.id] = &updated
		}
	}
	for _, tx := range t.transactions {
		s.transactions[tx.ID] = tx
	}
	for id, status := range t.updates {
		if tx, ok := s.transactions[id]; ok {
			updated := *tx
			updated.Status = status
			updated.UpdatedAt = t.updatedAt[id]
			s.transactions[id] = &updated
		}
	}
	for _, e := range t.entries {
		s.entries[e.AccountID] = append(s.entries[e.AccountID], e)
		s.byTx[e.TransactionID] = append(s.byTx[e.TransactionID], e)
	}
	for _, ev := range t.outbox {
		s.outbox[ev.ID] = ev
	}
}

// lease acquires the account's lease once per unit of work.
func (t *Tx) lease(ctx context.Context, id string) error {
	if _, ok := t.held[id]; ok {
		return nil
	}

	if err := t.store.leases.acquire(ctx, id, t.store.leaseTimeout); err != nil {
		return err
	}

	t.held[id] = struct{}{}
	t.order = append(t.order, id)

	return nil
}

func unitOf(uow usecase.UnitOfWork) (*Tx, error) {
	tx, ok := uow.(*Tx)
	if !ok {
		return nil, ErrForeignUnitOfWork
	}
	if tx.done {
		return nil, ErrUnitOfWorkDone
	}

	return tx, nil
}

// leaseTable grants one holder per account id at a time.
type leaseTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLeaseTable() *leaseTable {
	return &leaseTable{slots: make(map[string]chan struct{})}
}

func (l *leaseTable) slot(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[id] = ch
	}

	return ch
}

func (l *leaseTable) acquire(ctx context.Context, id string, timeout time.Duration) error {
	slot := l.slot(id)

	select {
	case slot <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: account %s: %w", domain.ErrLeaseTimeout, id, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: account %s after %s", domain.ErrLeaseTimeout, id, timeout)
	}
}

func (l *leaseTable) release(id string) {
	<-l.slot(id)
}
