package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/entryledger/internal/domain"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	uow      UnitOfWorkManager
	accounts AccountStore
	ledger   LedgerStore
	outbox   OutboxRepository
	idGen    IDGenerator
	balances *BalanceCalculator
	metrics  MetricsRecorder
	logger   zerolog.Logger
}

// NewAccountUseCase creates a new AccountUseCase. outbox and metrics may be nil.
func NewAccountUseCase(
	uow UnitOfWorkManager,
	accounts AccountStore,
	ledger LedgerStore,
	outbox OutboxRepository,
	idGen IDGenerator,
	metrics MetricsRecorder,
	logger zerolog.Logger,
) *AccountUseCase {
	return &AccountUseCase{
		uow:      uow,
		accounts: accounts,
		ledger:   ledger,
		outbox:   outbox,
		idGen:    idGen,
		balances: NewBalanceCalculator(ledger),
		metrics:  metrics,
		logger:   logger,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	UserID      string
	AccountType string
	Currency    string
}

// CreateAccount creates a new active account.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if err := domain.ValidateUserID(input.UserID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAccountType(input.AccountType); err != nil {
		return nil, err
	}
	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	account := &domain.Account{
		ID:          uc.idGen.Generate(),
		UserID:      input.UserID,
		AccountType: input.AccountType,
		Currency:    input.Currency,
		Status:      domain.AccountStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	uow, err := uc.uow.Begin(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	defer uow.Rollback(ctx)

	if err := uc.accounts.Create(ctx, uow, account); err != nil {
		return nil, storeError(err)
	}

	if err := uc.enqueue(ctx, uow, account.ID, domain.EventTypeAccountCreated, domain.AccountCreatedEvent{
		AccountID:   account.ID,
		UserID:      account.UserID,
		AccountType: account.AccountType,
		Currency:    account.Currency,
	}); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, storeError(err)
	}

	if uc.metrics != nil {
		uc.metrics.AccountCreated(account.Currency)
	}

	uc.logger.Info().
		Str("account_id", account.ID).
		Str("currency", account.Currency).
		Msg("account created")

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accounts.GetByID(ctx, id)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.accounts.List(ctx, limit, offset)
}

// GetBalance returns the balance derived from the account's committed postings.
func (uc *AccountUseCase) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	if _, err := uc.accounts.GetByID(ctx, id); err != nil {
		return decimal.Zero, err
	}

	return uc.balances.BalanceOf(ctx, nil, id)
}

// GetLedger returns the account's postings, oldest first.
func (uc *AccountUseCase) GetLedger(ctx context.Context, id string) ([]*domain.Entry, error) {
	if _, err := uc.accounts.GetByID(ctx, id); err != nil {
		return nil, err
	}

	return uc.ledger.EntriesFor(ctx, nil, id)
}

// SetAccountStatus freezes or unfreezes an account. The account lease is held while
// the status changes, so no operation can post against it mid-change.
func (uc *AccountUseCase) SetAccountStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.Account, error) {
	if !status.IsValid() {
		return nil, domain.ErrInvalidAccountStatus
	}

	uow, err := uc.uow.Begin(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	defer uow.Rollback(ctx)

	account, err := uc.accounts.GetByIDForUpdate(ctx, uow, id)
	if err != nil {
		return nil, storeError(err)
	}

	if account.Status == status {
		return account, nil
	}

	previous := account.Status
	now := time.Now().UTC()

	if err := uc.accounts.UpdateStatus(ctx, uow, id, status, now); err != nil {
		return nil, storeError(err)
	}

	if err := uc.enqueue(ctx, uow, id, domain.EventTypeAccountStatusChanged, domain.AccountStatusChangedEvent{
		AccountID: id,
		From:      string(previous),
		To:        string(status),
	}); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, storeError(err)
	}

	account.Status = status
	account.UpdatedAt = now

	uc.logger.Info().
		Str("account_id", id).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("account status changed")

	return account, nil
}

func (uc *AccountUseCase) enqueue(ctx context.Context, uow UnitOfWork, accountID, eventType string, payload any) error {
	if uc.outbox == nil {
		return nil
	}

	err := uc.outbox.Create(ctx, uow, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   accountID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     eventType,
		Payload:       domain.EventPayload(payload),
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return storeError(err)
	}

	return nil
}
