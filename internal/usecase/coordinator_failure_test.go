package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
	"github.com/iho/entryledger/internal/usecase/mocks"
)

type coordinatorMocks struct {
	uowManager   *mocks.MockUnitOfWorkManager
	uow          *mocks.MockUnitOfWork
	accounts     *mocks.MockAccountStore
	ledger       *mocks.MockLedgerStore
	transactions *mocks.MockTransactionRepository
	outbox       *mocks.MockOutboxRepository
	ids          *mocks.MockIDGenerator
	metrics      *mocks.MockMetricsRecorder
	retrier      *mocks.MockRetrier
}

func newCoordinatorMocks(t *testing.T) (*coordinatorMocks, *usecase.Coordinator) {
	ctrl := gomock.NewController(t)
	m := &coordinatorMocks{
		uowManager:   mocks.NewMockUnitOfWorkManager(ctrl),
		uow:          mocks.NewMockUnitOfWork(ctrl),
		accounts:     mocks.NewMockAccountStore(ctrl),
		ledger:       mocks.NewMockLedgerStore(ctrl),
		transactions: mocks.NewMockTransactionRepository(ctrl),
		outbox:       mocks.NewMockOutboxRepository(ctrl),
		ids:          mocks.NewMockIDGenerator(ctrl),
		metrics:      mocks.NewMockMetricsRecorder(ctrl),
		retrier:      mocks.NewMockRetrier(ctrl),
	}
	m.ids.EXPECT().Generate().Return("01J00000000000000000000000").AnyTimes()

	c := usecase.NewCoordinator(usecase.CoordinatorConfig{
		UnitOfWork:   m.uowManager,
		Accounts:     m.accounts,
		Ledger:       m.ledger,
		Transactions: m.transactions,
		Outbox:       m.outbox,
		IDGen:        m.ids,
		Metrics:      m.metrics,
	})

	return m, c
}

func activeUSD(id string) *domain.Account {
	return &domain.Account{ID: id, Currency: "USD", Status: domain.AccountStatusActive}
}

func TestCoordinator_AppendFailureRollsBack(t *testing.T) {
	m, c := newCoordinatorMocks(t)
	storeErr := errors.New("disk full")

	gomock.InOrder(
		m.uowManager.EXPECT().Begin(gomock.Any()).Return(m.uow, nil),
		m.accounts.EXPECT().GetByIDForUpdate(gomock.Any(), m.uow, "acc-1").Return(activeUSD("acc-1"), nil),
		m.transactions.EXPECT().Create(gomock.Any(), m.uow, gomock.Any()).Return(nil),
		m.ledger.EXPECT().Append(gomock.Any(), m.uow, gomock.Any()).Return(storeErr),
		m.uow.EXPECT().Rollback(gomock.Any()).Return(nil),
	)
	m.metrics.EXPECT().ObserveOperation(domain.TransactionKindDeposit, usecase.OutcomeError, gomock.Any(), gomock.Any())

	_, err := c.Deposit(context.Background(), usecase.DepositInput{
		Amount:               dec("10"),
		Currency:             "USD",
		DestinationAccountID: "acc-1",
	})
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.ErrorIs(t, err, storeErr)
}

func TestCoordinator_CommitFailureIsPersistenceFailure(t *testing.T) {
	m, c := newCoordinatorMocks(t)

	m.uowManager.EXPECT().Begin(gomock.Any()).Return(m.uow, nil)
	m.accounts.EXPECT().GetByIDForUpdate(gomock.Any(), m.uow, "acc-1").Return(activeUSD("acc-1"), nil)
	m.transactions.EXPECT().Create(gomock.Any(), m.uow, gomock.Any()).Return(nil)
	m.ledger.EXPECT().Append(gomock.Any(), m.uow, gomock.Any()).Return(nil)
	m.transactions.EXPECT().UpdateStatus(gomock.Any(), m.uow, gomock.Any(), domain.TransactionStatusCompleted, gomock.Any()).Return(nil)
	m.outbox.EXPECT().Create(gomock.Any(), m.uow, gomock.Any()).Return(nil)
	m.uow.EXPECT().Commit(gomock.Any()).Return(errors.New("connection reset"))
	m.uow.EXPECT().Rollback(gomock.Any()).Return(nil)
	m.metrics.EXPECT().ObserveOperation(domain.TransactionKindDeposit, usecase.OutcomeError, gomock.Any(), gomock.Any())

	_, err := c.Deposit(context.Background(), usecase.DepositInput{
		Amount:               dec("10"),
		Currency:             "USD",
		DestinationAccountID: "acc-1",
	})
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
}

func TestCoordinator_BeginFailure(t *testing.T) {
	m, c := newCoordinatorMocks(t)

	m.uowManager.EXPECT().Begin(gomock.Any()).Return(nil, errors.New("pool exhausted"))
	m.metrics.EXPECT().ObserveOperation(domain.TransactionKindWithdrawal, usecase.OutcomeError, gomock.Any(), gomock.Any())

	_, err := c.Withdraw(context.Background(), usecase.WithdrawInput{
		Amount:          dec("10"),
		Currency:        "USD",
		SourceAccountID: "acc-1",
	})
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
}

func TestCoordinator_TransferLeasesInAscendingOrder(t *testing.T) {
	m, c := newCoordinatorMocks(t)

	m.uowManager.EXPECT().Begin(gomock.Any()).Return(m.uow, nil)
	gomock.InOrder(
		m.accounts.EXPECT().GetByIDForUpdate(gomock.Any(), m.uow, "acc-a").Return(activeUSD("acc-a"), nil),
		m.accounts.EXPECT().GetByIDForUpdate(gomock.Any(), m.uow, "acc-z").Return(activeUSD("acc-z"), nil),
	)
	m.transactions.EXPECT().Create(gomock.Any(), m.uow, gomock.Any()).Return(nil)
	m.ledger.EXPECT().EntriesFor(gomock.Any(), m.uow, "acc-z").Return([]*domain.Entry{
		{Kind: domain.EntryKindCredit, Amount: dec("100")},
	}, nil)
	m.ledger.EXPECT().Append(gomock.Any(), m.uow, gomock.Any()).Return(nil).Times(2)
	m.transactions.EXPECT().UpdateStatus(gomock.Any(), m.uow, gomock.Any(), domain.TransactionStatusCompleted, gomock.Any()).Return(nil)
	m.outbox.EXPECT().Create(gomock.Any(), m.uow, gomock.Any()).Return(nil)
	m.uow.EXPECT().Commit(gomock.Any()).Return(nil)
	m.uow.EXPECT().Rollback(gomock.Any()).Return(nil)
	m.metrics.EXPECT().ObserveOperation(domain.TransactionKindTransfer, usecase.OutcomeCompleted, gomock.Any(), gomock.Any())

	// Source sorts after destination; leases still go a then z.
	tx, err := c.Transfer(context.Background(), usecase.TransferInput{
		Amount:               dec("40"),
		Currency:             "USD",
		SourceAccountID:      "acc-z",
		DestinationAccountID: "acc-a",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, tx.Status)
}

func TestCoordinator_SameAccountNeverTouchesStore(t *testing.T) {
	m, c := newCoordinatorMocks(t)
	m.metrics.EXPECT().ObserveOperation(domain.TransactionKindTransfer, usecase.OutcomeRejected, gomock.Any(), gomock.Any())

	_, err := c.Transfer(context.Background(), usecase.TransferInput{
		Amount:               dec("1"),
		Currency:             "USD",
		SourceAccountID:      "acc-1",
		DestinationAccountID: "acc-1",
	})
	require.ErrorIs(t, err, domain.ErrSameAccount)
}

func TestCoordinator_RetrierRerunsWholeUnit(t *testing.T) {
	m, _ := newCoordinatorMocks(t)
	c := usecase.NewCoordinator(usecase.CoordinatorConfig{
		UnitOfWork:   m.uowManager,
		Accounts:     m.accounts,
		Ledger:       m.ledger,
		Transactions: m.transactions,
		IDGen:        m.ids,
		Retrier:      m.retrier,
	})

	transient := errors.New("serialization failure")
	m.retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, op func() error) error {
		if err := op(); !errors.Is(err, transient) {
			return err
		}
		return op()
	})

	m.uowManager.EXPECT().Begin(gomock.Any()).Return(m.uow, nil).Times(2)
	m.accounts.EXPECT().GetByIDForUpdate(gomock.Any(), m.uow, "acc-1").Return(activeUSD("acc-1"), nil).Times(2)
	gomock.InOrder(
		m.transactions.EXPECT().Create(gomock.Any(), m.uow, gomock.Any()).Return(transient),
		m.transactions.EXPECT().Create(gomock.Any(), m.uow, gomock.Any()).Return(nil),
	)
	m.ledger.EXPECT().Append(gomock.Any(), m.uow, gomock.Any()).Return(nil)
	m.transactions.EXPECT().UpdateStatus(gomock.Any(), m.uow, gomock.Any(), domain.TransactionStatusCompleted, gomock.Any()).Return(nil)
	m.uow.EXPECT().Commit(gomock.Any()).Return(nil)
	m.uow.EXPECT().Rollback(gomock.Any()).Return(nil).Times(2)

	tx, err := c.Deposit(context.Background(), usecase.DepositInput{
		Amount:               dec("10"),
		Currency:             "USD",
		DestinationAccountID: "acc-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, tx.Status)
}
