package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/entryledger/internal/domain"
)

// CoordinatorConfig holds the collaborators of a Coordinator.
type CoordinatorConfig struct {
	UnitOfWork   UnitOfWorkManager
	Accounts     AccountStore
	Ledger       LedgerStore
	Transactions TransactionRepository
	Outbox       OutboxRepository
	IDGen        IDGenerator

	// Optional
	Retrier Retrier
	Metrics MetricsRecorder
	Logger  *zerolog.Logger
	Clock   func() time.Time
	Timeout time.Duration
}

// Coordinator executes deposits, withdrawals and transfers. Each operation runs as
// one unit of work that leases every involved account in ascending id order,
// records a pending transaction, writes its postings and moves it to a terminal
// status before committing.
type Coordinator struct {
	uow          UnitOfWorkManager
	accounts     AccountStore
	ledger       LedgerStore
	transactions TransactionRepository
	outbox       OutboxRepository
	idGen        IDGenerator
	balances     *BalanceCalculator
	retrier      Retrier
	metrics      MetricsRecorder
	logger       zerolog.Logger
	clock        func() time.Time
	timeout      time.Duration
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	c := &Coordinator{
		uow:          cfg.UnitOfWork,
		accounts:     cfg.Accounts,
		ledger:       cfg.Ledger,
		transactions: cfg.Transactions,
		outbox:       cfg.Outbox,
		idGen:        cfg.IDGen,
		balances:     NewBalanceCalculator(cfg.Ledger),
		retrier:      cfg.Retrier,
		metrics:      cfg.Metrics,
		logger:       zerolog.Nop(),
		clock:        cfg.Clock,
		timeout:      cfg.Timeout,
	}
	if cfg.Logger != nil {
		c.logger = cfg.Logger.With().Str("component", "coordinator").Logger()
	}
	if c.clock == nil {
		c.clock = func() time.Time { return time.Now().UTC() }
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTransactionTimeout
	}

	return c
}

// DepositInput represents input for a deposit.
type DepositInput struct {
	Amount               decimal.Decimal
	Currency             string
	DestinationAccountID string
	Description          string
}

// WithdrawInput represents input for a withdrawal.
type WithdrawInput struct {
	Amount          decimal.Decimal
	Currency        string
	SourceAccountID string
	Description     string
}

// TransferInput represents input for a transfer between two accounts.
type TransferInput struct {
	Amount               decimal.Decimal
	Currency             string
	SourceAccountID      string
	DestinationAccountID string
	Description          string
}

// Deposit credits external funds to an account.
func (c *Coordinator) Deposit(ctx context.Context, input DepositInput) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		Kind:                 domain.TransactionKindDeposit,
		Amount:               input.Amount,
		Currency:             input.Currency,
		DestinationAccountID: domain.StringPtr(input.DestinationAccountID),
		Description:          input.Description,
	}

	return c.execute(ctx, tx, func(ctx context.Context, uow UnitOfWork, tx *domain.Transaction) error {
		dest, err := c.lease(ctx, uow, input.DestinationAccountID)
		if err != nil {
			return err
		}

		if err := dest.ValidateForPosting(tx.Currency); err != nil {
			return err
		}

		if err := c.open(ctx, uow, tx); err != nil {
			return err
		}

		if err := c.post(ctx, uow, tx, dest.ID, domain.EntryKindCredit); err != nil {
			return err
		}

		return c.settle(ctx, uow, tx, domain.TransactionStatusCompleted, "")
	})
}

// Withdraw debits funds from an account to the outside world.
func (c *Coordinator) Withdraw(ctx context.Context, input WithdrawInput) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		Kind:            domain.TransactionKindWithdrawal,
		Amount:          input.Amount,
		Currency:        input.Currency,
		SourceAccountID: domain.StringPtr(input.SourceAccountID),
		Description:     input.Description,
	}

	return c.execute(ctx, tx, func(ctx context.Context, uow UnitOfWork, tx *domain.Transaction) error {
		src, err := c.lease(ctx, uow, input.SourceAccountID)
		if err != nil {
			return err
		}

		if err := src.ValidateForPosting(tx.Currency); err != nil {
			return err
		}

		if err := c.open(ctx, uow, tx); err != nil {
			return err
		}

		sufficient, err := c.covers(ctx, uow, src.ID, tx.Amount)
		if err != nil {
			return err
		}
		if !sufficient {
			return c.settle(ctx, uow, tx, domain.TransactionStatusFailed, domain.ErrInsufficientFunds.Error())
		}

		if err := c.post(ctx, uow, tx, src.ID, domain.EntryKindDebit); err != nil {
			return err
		}

		return c.settle(ctx, uow, tx, domain.TransactionStatusCompleted, "")
	})
}

// Transfer moves funds between two accounts of the same currency.
func (c *Coordinator) Transfer(ctx context.Context, input TransferInput) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		Kind:                 domain.TransactionKindTransfer,
		Amount:               input.Amount,
		Currency:             input.Currency,
		SourceAccountID:      domain.StringPtr(input.SourceAccountID),
		DestinationAccountID: domain.StringPtr(input.DestinationAccountID),
		Description:          input.Description,
	}

	return c.execute(ctx, tx, func(ctx context.Context, uow UnitOfWork, tx *domain.Transaction) error {
		// 1. Lease both accounts in ascending id order (DEADLOCK PREVENTION)
		ids := []string{input.SourceAccountID, input.DestinationAccountID}
		sort.Strings(ids)

		leased := make(map[string]*domain.Account, len(ids))
		for _, id := range ids {
			account, err := c.lease(ctx, uow, id)
			if err != nil {
				return err
			}
			if account.Status != domain.AccountStatusActive {
				return fmt.Errorf("%w: %s", domain.ErrInactiveAccount, id)
			}
			leased[id] = account
		}

		src := leased[input.SourceAccountID]
		dest := leased[input.DestinationAccountID]

		// 2. Both sides must be in the transaction's currency
		if err := src.ValidateForPosting(tx.Currency); err != nil {
			return err
		}
		if err := dest.ValidateForPosting(tx.Currency); err != nil {
			return err
		}

		// 3. Record intent, then check funds under the lease
		if err := c.open(ctx, uow, tx); err != nil {
			return err
		}

		sufficient, err := c.covers(ctx, uow, src.ID, tx.Amount)
		if err != nil {
			return err
		}
		if !sufficient {
			return c.settle(ctx, uow, tx, domain.TransactionStatusFailed, domain.ErrInsufficientFunds.Error())
		}

		// 4. Paired postings
		if err := c.post(ctx, uow, tx, src.ID, domain.EntryKindDebit); err != nil {
			return err
		}
		if err := c.post(ctx, uow, tx, dest.ID, domain.EntryKindCredit); err != nil {
			return err
		}

		return c.settle(ctx, uow, tx, domain.TransactionStatusCompleted, "")
	})
}

type unitFunc func(ctx context.Context, uow UnitOfWork, tx *domain.Transaction) error

// execute validates tx, runs fn inside a unit of work and commits it. A transaction
// that settled as failed is committed and reported as a *domain.TransactionError.
func (c *Coordinator) execute(ctx context.Context, tx *domain.Transaction, fn unitFunc) (*domain.Transaction, error) {
	start := time.Now()

	result, err := c.run(ctx, tx, fn)

	outcome := classifyOutcome(err)
	if c.metrics != nil {
		c.metrics.ObserveOperation(tx.Kind, outcome, tx.Amount, time.Since(start))
	}

	event := c.logger.Debug()
	if outcome == OutcomeError || outcome == OutcomeLeaseTimeout {
		event = c.logger.Error().Err(err)
	} else if err != nil {
		event = c.logger.Info().Err(err)
	}
	event.
		Str("kind", string(tx.Kind)).
		Str("outcome", outcome).
		Str("amount", tx.Amount.String()).
		Str("currency", tx.Currency).
		Dur("duration", time.Since(start)).
		Msg("transaction processed")

	return result, err
}

func (c *Coordinator) run(ctx context.Context, template *domain.Transaction, fn unitFunc) (*domain.Transaction, error) {
	if err := domain.ValidateCurrency(template.Currency); err != nil {
		return nil, err
	}
	if err := domain.ValidateDescription(template.Description); err != nil {
		return nil, err
	}
	if err := template.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result *domain.Transaction
	attempt := func() error {
		tx := *template
		if err := c.unit(ctx, &tx, fn); err != nil {
			return err
		}
		result = &tx
		return nil
	}

	var err error
	if c.retrier != nil {
		err = c.retrier.Retry(ctx, attempt)
	} else {
		err = attempt()
	}
	if err != nil {
		return nil, err
	}

	if result.Status == domain.TransactionStatusFailed {
		return nil, &domain.TransactionError{TransactionID: result.ID, Err: domain.ErrInsufficientFunds}
	}

	return result, nil
}

func (c *Coordinator) unit(ctx context.Context, tx *domain.Transaction, fn unitFunc) error {
	uow, err := c.uow.Begin(ctx)
	if err != nil {
		return storeError(err)
	}
	defer uow.Rollback(ctx)

	if err := fn(ctx, uow, tx); err != nil {
		return err
	}

	if err := uow.Commit(ctx); err != nil {
		return storeError(err)
	}

	return nil
}

func (c *Coordinator) lease(ctx context.Context, uow UnitOfWork, id string) (*domain.Account, error) {
	account, err := c.accounts.GetByIDForUpdate(ctx, uow, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		return nil, storeError(err)
	}

	return account, nil
}

// open assigns identity and records tx as pending.
func (c *Coordinator) open(ctx context.Context, uow UnitOfWork, tx *domain.Transaction) error {
	now := c.clock()
	tx.ID = c.idGen.Generate()
	tx.Status = domain.TransactionStatusPending
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if err := c.transactions.Create(ctx, uow, tx); err != nil {
		return storeError(err)
	}

	return nil
}

func (c *Coordinator) covers(ctx context.Context, uow UnitOfWork, accountID string, amount decimal.Decimal) (bool, error) {
	balance, err := c.balances.BalanceOf(ctx, uow, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEntryKind) {
			return false, err
		}
		return false, storeError(err)
	}

	return !balance.Sub(amount).IsNegative(), nil
}

func (c *Coordinator) post(ctx context.Context, uow UnitOfWork, tx *domain.Transaction, accountID string, kind domain.EntryKind) error {
	entry := &domain.Entry{
		ID:            c.idGen.Generate(),
		AccountID:     accountID,
		TransactionID: tx.ID,
		Kind:          kind,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		CreatedAt:     c.clock(),
	}

	if err := c.ledger.Append(ctx, uow, entry); err != nil {
		return storeError(err)
	}

	return nil
}

// settle moves tx to status and queues its outbox event in the same unit of work.
func (c *Coordinator) settle(ctx context.Context, uow UnitOfWork, tx *domain.Transaction, status domain.TransactionStatus, reason string) error {
	now := c.clock()

	var err error
	if status == domain.TransactionStatusCompleted {
		err = tx.Complete(now)
	} else {
		err = tx.Fail(now)
	}
	if err != nil {
		return err
	}

	if err := c.transactions.UpdateStatus(ctx, uow, tx.ID, tx.Status, now); err != nil {
		return storeError(err)
	}

	eventType := domain.EventTypeTransactionCompleted
	if status == domain.TransactionStatusFailed {
		eventType = domain.EventTypeTransactionFailed
	}

	return c.enqueue(ctx, uow, &domain.OutboxEvent{
		AggregateID:   tx.ID,
		AggregateType: domain.AggregateTypeTransaction,
		EventType:     eventType,
		Payload:       domain.EventPayload(domain.NewTransactionEvent(tx, reason)),
	})
}

func (c *Coordinator) enqueue(ctx context.Context, uow UnitOfWork, event *domain.OutboxEvent) error {
	if c.outbox == nil {
		return nil
	}

	event.ID = c.idGen.Generate()
	event.CreatedAt = c.clock()

	if err := c.outbox.Create(ctx, uow, event); err != nil {
		return storeError(err)
	}

	return nil
}

// GetTransaction returns a transaction together with its postings.
func (c *Coordinator) GetTransaction(ctx context.Context, id string) (*domain.Transaction, []*domain.Entry, error) {
	tx, err := c.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	entries, err := c.ledger.EntriesForTransaction(ctx, id)
	if err != nil {
		return nil, nil, storeError(err)
	}

	return tx, entries, nil
}

// ListTransactionsInput represents input for listing an account's transactions.
type ListTransactionsInput struct {
	AccountID string
	Limit     int
	Offset    int
}

// ListTransactions lists transactions naming the account, newest first.
func (c *Coordinator) ListTransactions(ctx context.Context, input ListTransactionsInput) ([]*domain.Transaction, error) {
	if _, err := c.accounts.GetByID(ctx, input.AccountID); err != nil {
		return nil, err
	}

	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	return c.transactions.ListByAccount(ctx, input.AccountID, limit, offset)
}

// storeError tags unexpected store failures with ErrPersistenceFailure while
// keeping the errors callers branch on untouched.
func storeError(err error) error {
	switch {
	case errors.Is(err, domain.ErrPersistenceFailure),
		errors.Is(err, domain.ErrLeaseTimeout),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return err
	}

	return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
}

func classifyOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, domain.ErrInsufficientFunds):
		return OutcomeFailed
	case errors.Is(err, domain.ErrLeaseTimeout):
		return OutcomeLeaseTimeout
	case errors.Is(err, domain.ErrPersistenceFailure):
		return OutcomeError
	}

	return OutcomeRejected
}
