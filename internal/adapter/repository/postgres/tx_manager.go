package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
)

// pgErrLockNotAvailable is raised when lock_timeout expires.
const pgErrLockNotAvailable = "55P03"

type pgxPool interface {
	Begin(context.Context) (pgx.Tx, error)
}

// TxManager implements usecase.UnitOfWorkManager.
type TxManager struct {
	pool         pgxPool
	leaseTimeout time.Duration
}

// NewTxManager creates a new TxManager. Row locks taken inside a unit of work wait
// at most leaseTimeout.
func NewTxManager(pool *pgxpool.Pool, leaseTimeout time.Duration) *TxManager {
	return newTxManagerWithPool(pool, leaseTimeout)
}

func newTxManagerWithPool(pool pgxPool, leaseTimeout time.Duration) *TxManager {
	if leaseTimeout <= 0 {
		leaseTimeout = usecase.DefaultLeaseTimeout
	}
	return &TxManager{pool: pool, leaseTimeout: leaseTimeout}
}

// Begin starts a new transaction and scopes lock_timeout to it.
func (m *TxManager) Begin(ctx context.Context) (usecase.UnitOfWork, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	// lock_timeout = 0 disables the limit, so never go below 1ms.
	ms := max(m.leaseTimeout.Milliseconds(), 1)
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
	if _, err := tx.Exec(ctx, stmt); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return mapError(t.tx.Commit(ctx))
}

// Rollback rolls back the transaction. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// PgxTx returns the underlying pgx.Tx.
func (t *Tx) PgxTx() pgx.Tx {
	return t.tx
}

func pgxTxOf(uow usecase.UnitOfWork) (pgx.Tx, error) {
	tx, ok := uow.(*Tx)
	if !ok {
		return nil, ErrForeignUnitOfWork
	}
	return tx.PgxTx(), nil
}

// ErrForeignUnitOfWork is returned when a repository receives a unit of work
// that was not opened by TxManager.
var ErrForeignUnitOfWork = errors.New("unit of work does not belong to the postgres store")

// mapError turns an expired lock wait into domain.ErrLeaseTimeout.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrLockNotAvailable {
		return fmt.Errorf("%w: %w", domain.ErrLeaseTimeout, err)
	}

	return err
}
