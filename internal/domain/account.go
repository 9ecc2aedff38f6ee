package domain

import "time"

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
)

// IsValid reports whether s is a known account status.
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusActive, AccountStatusFrozen:
		return true
	}
	return false
}

// Account represents a ledger account. Its balance is never stored: it is derived
// from the account's postings.
type Account struct {
	ID          string
	UserID      string
	AccountType string
	Currency    string
	Status      AccountStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateForPosting checks that postings in currency may be written to the account.
func (a *Account) ValidateForPosting(currency string) error {
	if a.Status != AccountStatusActive {
		return ErrInactiveAccount
	}

	if a.Currency != currency {
		return ErrCurrencyMismatch
	}

	return nil
}
