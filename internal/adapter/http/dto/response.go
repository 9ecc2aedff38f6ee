package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	AccountType string           `json:"account_type"`
	Currency    string           `json:"currency"`
	Status      string           `json:"status"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		AccountType: a.AccountType,
		Currency:    a.Currency,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// WithBalance attaches a derived balance to the response.
func (r *AccountResponse) WithBalance(balance decimal.Decimal) *AccountResponse {
	r.Balance = &balance
	return r
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse is a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// BalanceResponse is the derived balance of one account.
type BalanceResponse struct {
	AccountID string          `json:"account_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
}

// EntryResponse represents a posting in API responses.
type EntryResponse struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	TransactionID string          `json:"transaction_id"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:            e.ID,
		AccountID:     e.AccountID,
		TransactionID: e.TransactionID,
		Kind:          string(e.Kind),
		Amount:        e.Amount,
		Currency:      e.Currency,
		CreatedAt:     e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// LedgerResponse lists the postings of one account, oldest first.
type LedgerResponse struct {
	AccountID string           `json:"account_id"`
	Entries   []*EntryResponse `json:"entries"`
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID                   string           `json:"id"`
	Kind                 string           `json:"kind"`
	Status               string           `json:"status"`
	Amount               decimal.Decimal  `json:"amount"`
	Currency             string           `json:"currency"`
	SourceAccountID      *string          `json:"source_account_id,omitempty"`
	DestinationAccountID *string          `json:"destination_account_id,omitempty"`
	Description          string           `json:"description,omitempty"`
	Entries              []*EntryResponse `json:"entries,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// TransactionFromDomain converts domain transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                   t.ID,
		Kind:                 string(t.Kind),
		Status:               string(t.Status),
		Amount:               t.Amount,
		Currency:             t.Currency,
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
		Description:          t.Description,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txs []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txs))
	for i, t := range txs {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// ConsistencyResponse is the result of a reconciliation run.
type ConsistencyResponse struct {
	Consistent             bool     `json:"consistent"`
	UnbalancedTransactions []string `json:"unbalanced_transactions"`
	NegativeAccounts       []string `json:"negative_accounts"`
	FailedWithPostings     []string `json:"failed_with_postings"`
	CurrencyMismatches     []string `json:"currency_mismatches"`
}

// ConsistencyFromReport converts a reconciliation report to response.
func ConsistencyFromReport(r *usecase.ConsistencyReport) *ConsistencyResponse {
	return &ConsistencyResponse{
		Consistent:             r.Consistent(),
		UnbalancedTransactions: nonNil(r.UnbalancedTransactions),
		NegativeAccounts:       nonNil(r.NegativeAccounts),
		FailedWithPostings:     nonNil(r.FailedWithPostings),
		CurrencyMismatches:     nonNil(r.CurrencyMismatches),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}
