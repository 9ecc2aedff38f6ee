package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/entryledger/internal/usecase"
)

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	UserID      string `json:"user_id"`
	AccountType string `json:"account_type"`
	Currency    string `json:"currency"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		UserID:      r.UserID,
		AccountType: r.AccountType,
		Currency:    r.Currency,
	}
}

// DepositRequest represents a request to credit an account from outside the ledger.
type DepositRequest struct {
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	DestinationAccountID string          `json:"destination_account_id"`
	Description          string          `json:"description,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *DepositRequest) ToUseCaseInput() usecase.DepositInput {
	return usecase.DepositInput{
		Amount:               r.Amount,
		Currency:             r.Currency,
		DestinationAccountID: r.DestinationAccountID,
		Description:          r.Description,
	}
}

// WithdrawRequest represents a request to debit an account to outside the ledger.
type WithdrawRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	SourceAccountID string          `json:"source_account_id"`
	Description     string          `json:"description,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *WithdrawRequest) ToUseCaseInput() usecase.WithdrawInput {
	return usecase.WithdrawInput{
		Amount:          r.Amount,
		Currency:        r.Currency,
		SourceAccountID: r.SourceAccountID,
		Description:     r.Description,
	}
}

// TransferRequest represents a request to move funds between two accounts.
type TransferRequest struct {
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	SourceAccountID      string          `json:"source_account_id"`
	DestinationAccountID string          `json:"destination_account_id"`
	Description          string          `json:"description,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *TransferRequest) ToUseCaseInput() usecase.TransferInput {
	return usecase.TransferInput{
		Amount:               r.Amount,
		Currency:             r.Currency,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Description:          r.Description,
	}
}
