package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/entryledger/internal/domain"
)

// AccountStore defines data access for accounts.
type AccountStore interface {
	Create(ctx context.Context, uow UnitOfWork, account *domain.Account) error
	// GetByID is a plain read without any lease.
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByIDForUpdate acquires the account's exclusive lease for the lifetime of uow
	// and then reads it. It blocks while another unit of work holds the lease.
	GetByIDForUpdate(ctx context.Context, uow UnitOfWork, id string) (*domain.Account, error)
	UpdateStatus(ctx context.Context, uow UnitOfWork, id string, status domain.AccountStatus, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// LedgerStore defines append-only access to postings.
type LedgerStore interface {
	// Append writes one posting inside uow. It is never committed on its own.
	Append(ctx context.Context, uow UnitOfWork, entry *domain.Entry) error
	// EntriesFor returns the account's postings ordered by timestamp then id.
	// A nil uow reads committed state only.
	EntriesFor(ctx context.Context, uow UnitOfWork, accountID string) ([]*domain.Entry, error)
	EntriesForTransaction(ctx context.Context, transactionID string) ([]*domain.Entry, error)
}

// TransactionRepository defines data access for transaction records.
type TransactionRepository interface {
	Create(ctx context.Context, uow UnitOfWork, transaction *domain.Transaction) error
	// UpdateStatus moves a pending record to a terminal status.
	UpdateStatus(ctx context.Context, uow UnitOfWork, id string, status domain.TransactionStatus, updatedAt time.Time) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error)
}

// LedgerRepository defines ledger-wide consistency queries.
type LedgerRepository interface {
	CheckConsistency(ctx context.Context) (*ConsistencyReport, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, uow UnitOfWork, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// UnitOfWork is one atomic set of reads and writes. Leases taken inside it are
// released by Commit or Rollback. Rollback after Commit is a no-op.
type UnitOfWork interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkManager opens units of work.
type UnitOfWorkManager interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// IDGenerator generates unique, totally ordered IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient store errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// MetricsRecorder receives coordinator measurements.
type MetricsRecorder interface {
	ObserveOperation(kind domain.TransactionKind, outcome string, amount decimal.Decimal, duration time.Duration)
	AccountCreated(currency string)
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet claims key with placeholder when it is unknown and returns
	// (false, nil, nil). When the key already exists it returns (true, value, nil).
	CheckAndSet(ctx context.Context, key string, placeholder []byte, ttl time.Duration) (bool, []byte, error)
	// Update replaces the value of a claimed key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release forgets key so the request can be retried.
	Release(ctx context.Context, key string) error
}
